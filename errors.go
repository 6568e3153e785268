package awssign

import (
	"github.com/palantir/stacktrace"
)

// Error codes attached to failures via stacktrace. Callers distinguish
// failure classes with stacktrace.GetCode; errors without one of these
// codes carry stacktrace.NoCode.
const (
	// ErrCodeMalformedRequest indicates a structurally invalid Request:
	// empty or non-token method, missing host, conflicting duplicate
	// header names, or a header value that is not valid UTF-8.
	ErrCodeMalformedRequest = stacktrace.ErrorCode(iota)

	// ErrCodeInvalidExpiry indicates a presigned-URL expiry outside the
	// range of 1 second through 7 days, or a presigned URL presented for
	// verification after its expiry.
	ErrCodeInvalidExpiry

	// ErrCodeCredentialsExpired indicates that the supplied temporary
	// credentials had already expired at the signing instant. No
	// cryptographic work is performed in this case.
	ErrCodeCredentialsExpired

	// ErrCodeSignatureMismatch indicates that a presigned URL's signature
	// does not match the signature recomputed from its own parameters.
	ErrCodeSignatureMismatch
)
