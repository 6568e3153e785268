package awssign

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/palantir/stacktrace"
	"golang.org/x/text/encoding/htmlindex"
)

var methodToken = regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$`)
var multispace = regexp.MustCompile(`[ \t]+`)

// Request is a data structure describing the elements of the HTTP request
// to be signed. It is constructed by the caller and consumed by a single
// signing operation; nothing in it is mutated.
type Request struct {
	// The request method (GET, PUT, POST). Must be a non-empty HTTP
	// token.
	Method string

	// The host the request is addressed to, exactly as it will appear in
	// the Host header.
	Host string

	// The URI path being accessed, in wire form (possibly
	// percent-encoded). Must be empty or an absolute path starting with
	// "/".
	URIPath string

	// The query parameters, as raw (unencoded) keys mapped to one or
	// more raw values. Encoding and ordering are handled during
	// canonicalization.
	QueryParameters map[string][]string

	// The HTTP headers to cover with the signature, beyond the host and
	// date headers the signer injects itself. Keys may be in any case;
	// they are lower-cased during canonicalization.
	Headers map[string][]string

	// The request body, if any.
	Body []byte

	// UnsignedPayload marks a streaming or unknown-length payload: the
	// canonical request carries the UNSIGNED-PAYLOAD sentinel instead of
	// a body digest.
	UnsignedPayload bool
}

// validate checks the request's structural invariants. It fails with
// ErrCodeMalformedRequest before any canonicalization work.
func (r *Request) validate() error {
	if !methodToken.MatchString(r.Method) {
		return stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Invalid request: method is not a non-empty HTTP token: %#v",
			r.Method)
	}

	if r.Host == "" {
		return stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Invalid request: host is required")
	}

	_, err := r.normalizedHeaders()
	return err
}

// normalizedHeaders returns the request headers with lower-cased names.
// Two spellings of the same name are an error unless they carry identical
// values; header values must be valid UTF-8.
func (r *Request) normalizedHeaders() (map[string][]string, error) {
	result := make(map[string][]string, len(r.Headers))

	for name, values := range r.Headers {
		for _, value := range values {
			if !utf8.ValidString(value) {
				return nil, stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Invalid request: header %#v value is not valid UTF-8", name)
			}
		}

		lower := strings.ToLower(name)
		if existing, ok := result[lower]; ok {
			if strings.Join(existing, ",") != strings.Join(values, ",") {
				return nil, stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
					"Invalid request: header %#v duplicates another spelling "+
						"of the same name with a different value", name)
			}
			continue
		}

		result[lower] = values
	}

	return result, nil
}

// GetContentTypeAndCharset returns the content type and character set
// declared by the request.
//
// If no content-type header is present, an empty contentType and charset
// are returned. The charset defaults to utf-8 when the header names none.
func (r *Request) GetContentTypeAndCharset() (contentType string, charset string, err error) {
	headers, err := r.normalizedHeaders()
	if err != nil {
		return "", "", err
	}

	values, ok := headers[keyContentType]
	if !ok || len(values) == 0 {
		return "", "", nil
	}

	if len(values) > 1 {
		return "", "", stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Multiple values for Content-Type header: %#v", values)
	}

	parts := strings.Split(values[0], ";")
	contentType = strings.TrimSpace(parts[0])
	charset = "utf-8"

	for _, param := range parts[1:] {
		if name, value, found := strings.Cut(strings.TrimSpace(param), "="); found {
			if strings.ToLower(strings.TrimSpace(name)) == keyCharset {
				charset = strings.TrimSpace(value)
				break
			}
		}
	}

	return contentType, charset, nil
}

// GetCanonicalizedURIPath returns the canonicalized URI path for the
// request. The empty path canonicalizes to "/".
func (r *Request) GetCanonicalizedURIPath() (string, error) {
	return CanonicalizeURIPath(r.URIPath)
}

// GetCanonicalQueryString returns the canonical query string: every key
// and value percent-encoded independently, key/value pairs sorted by
// encoded key with ties broken by encoded value, joined with "&". A
// request with no query parameters yields an empty string.
//
// If the body is of type "application/x-www-form-urlencoded", its
// parameters are folded into the query string (decoded from the declared
// charset first) and the body itself is treated as empty, matching how
// AWS canonicalizes form POSTs.
//
// Any X-Amz-Signature parameter is excluded; the signature never covers
// itself.
func (r *Request) GetCanonicalQueryString() (string, error) {
	type queryPair struct {
		key   string
		value string
	}

	pairs := make([]queryPair, 0, len(r.QueryParameters))
	appendPairs := func(parameters map[string][]string) {
		for key, values := range parameters {
			if key == keyXAmzSignature {
				continue
			}
			encodedKey := EscapeRFC3986(key)
			for _, value := range values {
				pairs = append(pairs, queryPair{encodedKey, EscapeRFC3986(value)})
			}
		}
	}

	appendPairs(r.QueryParameters)

	formParameters, err := r.formBodyParameters()
	if err != nil {
		return "", err
	}
	appendPairs(formParameters)

	// Sorting must compare keys and values separately: sorting the joined
	// "key=value" strings would order a key after any longer key it is a
	// prefix of, since '=' compares greater than most encoded bytes.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, len(pairs))
	for i, pair := range pairs {
		encoded[i] = pair.key + "=" + pair.value
	}
	return strings.Join(encoded, "&"), nil
}

// formBodyParameters decodes an application/x-www-form-urlencoded body
// into raw query parameters, honoring the charset declared in the
// content-type header. Requests with any other content type yield nil.
func (r *Request) formBodyParameters() (url.Values, error) {
	contentType, charset, err := r.GetContentTypeAndCharset()
	if err != nil {
		return nil, err
	}

	if contentType != keyApplicationXWWWFormURLEncoded || len(r.Body) == 0 {
		return nil, nil
	}

	encoding, err := htmlindex.Get(charset)
	if err != nil {
		return nil, stacktrace.PropagateWithCode(err, ErrCodeMalformedRequest,
			"Unable to canonicalize query string: no decoder for charset %#v",
			charset)
	}

	utf8Body, err := encoding.NewDecoder().String(string(r.Body))
	if err != nil {
		return nil, stacktrace.PropagateWithCode(err, ErrCodeMalformedRequest,
			"Unable to canonicalize query string: failed to decode form body "+
				"using charset %#v", charset)
	}

	parameters, err := url.ParseQuery(utf8Body)
	if err != nil {
		return nil, stacktrace.PropagateWithCode(err, ErrCodeMalformedRequest,
			"Unable to canonicalize query string from form body: %#v", utf8Body)
	}

	return parameters, nil
}

// SignedHeader incorporates a header name and its canonicalized value.
type SignedHeader struct {
	// The lower-cased name of the header.
	Name string

	// The associated value: trimmed, internal whitespace runs collapsed,
	// multiple values joined with ",".
	Value string
}

// GetSignedHeaders returns the headers covered by the signature as a list
// sorted by name, since header order is significant in the signature
// calculation.
func (r *Request) GetSignedHeaders() ([]SignedHeader, error) {
	headers, err := r.normalizedHeaders()
	if err != nil {
		return nil, err
	}

	results := make([]SignedHeader, 0, len(headers))
	for name, values := range headers {
		canonical := make([]string, len(values))
		for i, value := range values {
			canonical[i] = strings.TrimSpace(multispace.ReplaceAllString(value, " "))
		}
		results = append(results, SignedHeader{name, strings.Join(canonical, ",")})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})

	return results, nil
}

// GetBodyDigest returns the payload hash for the canonical request: the
// SHA-256 hex digest of the body, or the UNSIGNED-PAYLOAD sentinel for
// streaming payloads. An empty body digests to EmptyStringSHA256.
func (r *Request) GetBodyDigest() string {
	if r.UnsignedPayload {
		return UnsignedPayload
	}

	digest := sha256.Sum256(r.Body)
	return hex.EncodeToString(digest[:])
}

// GetCanonicalRequest returns the AWS SigV4 canonical request. The process
// is outlined here:
// http://docs.aws.amazon.com/general/latest/gr/sigv4-create-canonical-request.html
//
// The canonical request is:
//
//	request_method + '\n' +
//	canonical_uri_path + '\n' +
//	canonical_query_string + '\n' +
//	canonical_headers + '\n' +
//	signed_headers + '\n' +
//	payload_hash
func (r *Request) GetCanonicalRequest() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	canonicalURIPath, err := r.GetCanonicalizedURIPath()
	if err != nil {
		return nil, stacktrace.Propagate(
			err, "Unable to get canonical request: failed to canonicalize "+
				"the URI path")
	}

	canonicalQueryString, err := r.GetCanonicalQueryString()
	if err != nil {
		return nil, stacktrace.Propagate(
			err, "Unable to get canonical request: failed to build the "+
				"canonical query string")
	}

	signedHeaders, err := r.GetSignedHeaders()
	if err != nil {
		return nil, stacktrace.Propagate(
			err, "Unable to get canonical request: failed to get the signed "+
				"headers")
	}

	contentType, _, err := r.GetContentTypeAndCharset()
	if err != nil {
		return nil, stacktrace.Propagate(
			err, "Unable to get canonical request: failed to get the "+
				"content-type header")
	}

	bodyDigest := r.GetBodyDigest()
	if contentType == keyApplicationXWWWFormURLEncoded && !r.UnsignedPayload {
		// The form body was folded into the query string; the payload
		// signs as empty.
		bodyDigest = EmptyStringSHA256
	}

	creq := strings.Builder{}
	creq.WriteString(r.Method)
	creq.WriteByte('\n')
	creq.WriteString(canonicalURIPath)
	creq.WriteByte('\n')
	creq.WriteString(canonicalQueryString)
	creq.WriteByte('\n')

	for _, header := range signedHeaders {
		creq.WriteString(header.Name)
		creq.WriteByte(':')
		creq.WriteString(header.Value)
		creq.WriteByte('\n')
	}
	creq.WriteByte('\n')

	for i, header := range signedHeaders {
		if i > 0 {
			creq.WriteByte(';')
		}
		creq.WriteString(header.Name)
	}
	creq.WriteByte('\n')

	creq.WriteString(bodyDigest)

	return []byte(creq.String()), nil
}

// GetStringToSign returns the string to sign for the request at the given
// timestamp and scope:
//
//	"AWS4-HMAC-SHA256" + '\n' +
//	amz_date + '\n' +
//	credential_scope + '\n' +
//	hex(sha256(canonical_request))
func (r *Request) GetStringToSign(amzDate string, scope SigningScope) (string, error) {
	creq, err := r.GetCanonicalRequest()
	if err != nil {
		return "", stacktrace.Propagate(
			err, "Unable to get string to sign: failed to get the canonical "+
				"request")
	}

	creqDigest := sha256.Sum256(creq)
	return SigningAlgorithm + "\n" +
		amzDate + "\n" +
		scope.CredentialScope() + "\n" +
		hex.EncodeToString(creqDigest[:]), nil
}
