package awssign

import (
	"strings"

	"github.com/palantir/stacktrace"
)

const upperhex = "0123456789ABCDEF"

// IsRFC3986Unreserved indicates whether the specified byte falls in the
// RFC 3986 range of unreserved characters: %2D ('-'), %2E ('.'),
// %30-%39 ('0'-'9'), %41-%5A ('A'-'Z'), %5F ('_'), %61-%7A ('a'-'z'),
// %7E ('~').
func IsRFC3986Unreserved(c byte) bool {
	return ((c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		c == '-' ||
		c == '.' ||
		c == '_' ||
		c == '~')
}

// EscapeRFC3986 percent-encodes a raw string for use as a canonical query
// string component. Every byte outside the RFC 3986 unreserved set is
// encoded, including '/', '+', and '%'; spaces become %20, never '+'.
func EscapeRFC3986(s string) string {
	result := strings.Builder{}
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if IsRFC3986Unreserved(c) {
			result.WriteByte(c)
		} else {
			result.WriteByte('%')
			result.WriteByte(upperhex[c>>4])
			result.WriteByte(upperhex[c&0xF])
		}
	}

	return result.String()
}

// unhex returns the value of an ASCII hex digit, or -1.
func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}

// NormalizeURIPathComponent normalizes a wire-form path component according
// to RFC 3986:
//
// * Unreserved characters are left alone.
//
// * Characters outside this range are percent-encoded.
//
// * Percent-encoded values are upper-cased ('%2a' becomes '%2A').
//
// * Plus signs ('+') are interpreted as encoded spaces and become '%20'.
//
// * Percent-encoded values in the unreserved range are decoded back to
// plain characters.
//
// If a percent-encoding is invalid, an error is returned.
func NormalizeURIPathComponent(pathComponent string) (string, error) {
	result := strings.Builder{}

	for i := 0; i < len(pathComponent); {
		c := pathComponent[i]

		switch {
		case IsRFC3986Unreserved(c):
			result.WriteByte(c)
			i++

		case c == '%':
			if i+3 > len(pathComponent) {
				return "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Failed to normalize URI path component: '%%' encoding "+
						"truncated at index %d: %#v", i, pathComponent)
			}

			hi := unhex(pathComponent[i+1])
			lo := unhex(pathComponent[i+2])
			if hi < 0 || lo < 0 {
				return "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Failed to normalize URI path component: invalid "+
						"hex-encoding sequence at index %d: %#v", i, pathComponent)
			}

			value := byte(hi<<4 | lo)
			if IsRFC3986Unreserved(value) {
				result.WriteByte(value)
			} else {
				result.WriteByte('%')
				result.WriteByte(upperhex[hi])
				result.WriteByte(upperhex[lo])
			}

			i += 3

		case c == '+':
			result.WriteString("%20")
			i++

		default:
			result.WriteByte('%')
			result.WriteByte(upperhex[c>>4])
			result.WriteByte(upperhex[c&0xF])
			i++
		}
	}

	return result.String(), nil
}

// decodeQueryComponent decodes a wire-form query component into its raw
// value: percent sequences are decoded and '+' becomes a space. If a
// percent-encoding is invalid, an error is returned.
func decodeQueryComponent(component string) (string, error) {
	result := strings.Builder{}
	result.Grow(len(component))

	for i := 0; i < len(component); {
		c := component[i]

		switch c {
		case '%':
			if i+3 > len(component) {
				return "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Failed to decode query component: '%%' encoding "+
						"truncated at index %d: %#v", i, component)
			}

			hi := unhex(component[i+1])
			lo := unhex(component[i+2])
			if hi < 0 || lo < 0 {
				return "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Failed to decode query component: invalid hex-encoding "+
						"sequence at index %d: %#v", i, component)
			}

			result.WriteByte(byte(hi<<4 | lo))
			i += 3

		case '+':
			result.WriteByte(' ')
			i++

		default:
			result.WriteByte(c)
			i++
		}
	}

	return result.String(), nil
}

// NormalizeQueryParameters converts a wire-form query string into a map of
// raw parameter names to their raw values, the shape
// Request.QueryParameters expects. Empty components are skipped; a
// component without '=' yields an empty value; repeated names accumulate
// their values in wire order.
//
// If a percent encoding is invalid, an error is returned.
func NormalizeQueryParameters(queryString string) (map[string][]string, error) {
	result := make(map[string][]string)

	if queryString == "" {
		return result, nil
	}

	for _, component := range strings.Split(queryString, "&") {
		if component == "" {
			// Empty component; skip it.
			continue
		}

		rawKey, rawValue, _ := strings.Cut(component, "=")

		key, err := decodeQueryComponent(rawKey)
		if err != nil {
			return nil, stacktrace.Propagate(
				err, "Invalid query string: failed to decode query "+
					"component: %#v", component)
		}

		value, err := decodeQueryComponent(rawValue)
		if err != nil {
			return nil, stacktrace.Propagate(
				err, "Invalid query string: failed to decode query "+
					"component: %#v", component)
		}

		result[key] = append(result[key], value)
	}

	return result, nil
}

// CanonicalizeURIPath normalizes a wire-form URI path, removing redundant
// slashes and relative path components.
//
// The uriPath must be absolute (start with "/") or empty (assumed to be
// "/"). A current-directory component (".") is removed. A parent-directory
// component ("..") removes itself and the preceding component; attempts to
// navigate above the root are an error.
//
// Each remaining component is normalized per NormalizeURIPathComponent;
// the "/" separators are never encoded.
func CanonicalizeURIPath(uriPath string) (string, error) {
	if uriPath == "" || uriPath == "/" {
		return "/", nil
	}

	if !strings.HasPrefix(uriPath, "/") {
		return "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Path is not absolute: %#v", uriPath)
	}

	// Splitting on "/" with empty components dropped collapses runs of
	// slashes in one pass; a trailing slash is significant and restored
	// at the end. A trailing "." or ".." segment leaves a trailing slash
	// behind when removed.
	trailingSlash := strings.HasSuffix(uriPath, "/") ||
		strings.HasSuffix(uriPath, "/.") ||
		strings.HasSuffix(uriPath, "/..")

	var components []string
	for _, raw := range strings.Split(uriPath, "/") {
		if raw == "" {
			continue
		}

		component, err := NormalizeURIPathComponent(raw)
		if err != nil {
			return "", stacktrace.Propagate(
				err, "Invalid path component: %#v", raw)
		}

		switch component {
		case ".":
			// Current directory; drop it.

		case "..":
			if len(components) == 0 {
				return "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Invalid URI path: relative path entry '..' navigates "+
						"above root: %#v", uriPath)
			}
			components = components[:len(components)-1]

		default:
			components = append(components, component)
		}
	}

	if len(components) == 0 {
		return "/", nil
	}

	canonical := "/" + strings.Join(components, "/")
	if trailingSlash {
		canonical += "/"
	}

	return canonical, nil
}
