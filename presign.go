package awssign

import (
	"crypto/subtle"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kdutton/awssign/timeutil"
	"github.com/palantir/stacktrace"
)

const (
	// MinPresignExpiry and MaxPresignExpiry bound the lifetime of a
	// presigned URL: 1 second through 7 days.
	MinPresignExpiry = 1 * time.Second
	MaxPresignExpiry = 604800 * time.Second
)

// Presign signs the request into a self-contained URL: the signing
// parameters travel in the query string, and any holder of the URL can
// exercise the request until the expiry without further authentication.
//
// The request body is never hashed in this mode; the canonical request
// carries the UNSIGNED-PAYLOAD sentinel. expiresIn must be a whole number
// of seconds within [MinPresignExpiry, MaxPresignExpiry]; out-of-range
// values fail with ErrCodeInvalidExpiry and are never adjusted.
func (s *Signer) Presign(req *Request, signingTime time.Time, expiresIn time.Duration) (string, error) {
	if expiresIn < MinPresignExpiry || expiresIn > MaxPresignExpiry ||
		expiresIn%time.Second != 0 {
		return "", stacktrace.NewErrorWithCode(ErrCodeInvalidExpiry,
			"Invalid presign expiry %v: must be a whole number of seconds "+
				"between %v and %v", expiresIn, MinPresignExpiry, MaxPresignExpiry)
	}

	creds, err := s.provider.Credentials()
	if err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request: "+
			"failed to obtain credentials")
	}

	if err := creds.check(signingTime); err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}

	if err := req.validate(); err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}

	utc := signingTime.UTC()
	amzDate := utc.Format(timeutil.ISO8601CompactFormat)
	scope := SigningScope{
		DateStamp: utc.Format(timeutil.DateStampFormat),
		Region:    s.region,
		Service:   s.service,
	}

	signingReq, err := req.withHeaders(map[string][]string{keyHost: {req.Host}})
	if err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}

	signedHeaders, err := signingReq.GetSignedHeaders()
	if err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}
	signedHeaderNames := joinSignedHeaderNames(signedHeaders)

	// The signing parameters are injected before canonicalization; only
	// the signature itself is appended afterwards.
	parameters := make(map[string][]string, len(req.QueryParameters)+6)
	for key, values := range req.QueryParameters {
		parameters[key] = values
	}
	parameters[keyXAmzAlgorithm] = []string{SigningAlgorithm}
	parameters[keyXAmzCredential] = []string{creds.AccessKeyID + "/" + scope.CredentialScope()}
	parameters[keyXAmzDateParam] = []string{amzDate}
	parameters[keyXAmzExpires] = []string{strconv.FormatInt(int64(expiresIn/time.Second), 10)}
	parameters[keyXAmzSignedHeaders] = []string{signedHeaderNames}
	if creds.SessionToken != "" {
		parameters[keyXAmzSecurityToken] = []string{creds.SessionToken}
	}

	signingReq.QueryParameters = parameters
	signingReq.Body = nil
	signingReq.UnsignedPayload = true

	stringToSign, err := signingReq.GetStringToSign(amzDate, scope)
	if err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}

	signature := computeSignature(s.keyCache.get(creds.SecretAccessKey, scope), stringToSign)

	canonicalPath, err := signingReq.GetCanonicalizedURIPath()
	if err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}

	canonicalQuery, err := signingReq.GetCanonicalQueryString()
	if err != nil {
		return "", stacktrace.Propagate(err, "Unable to presign request")
	}

	return s.scheme + "://" + req.Host + canonicalPath +
		"?" + canonicalQuery +
		"&" + keyXAmzSignature + "=" + signature, nil
}

// VerifyPresignedURL recomputes the signature of a presigned URL from its
// own query parameters and checks it against the embedded one, using the
// signer's credentials provider, region, and service. headers supplies the
// values of any signed headers beyond host (usually nil).
//
// It fails with ErrCodeInvalidExpiry if the URL has expired at instant
// now, and with ErrCodeSignatureMismatch if the recomputed signature
// differs.
func (s *Signer) VerifyPresignedURL(method, rawURL string, headers map[string][]string, now time.Time) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return stacktrace.PropagateWithCode(err, ErrCodeMalformedRequest,
			"Unable to verify presigned URL: %#v", rawURL)
	}

	parameters, err := NormalizeQueryParameters(parsed.RawQuery)
	if err != nil {
		return stacktrace.Propagate(err,
			"Unable to verify presigned URL: invalid query string: %#v",
			parsed.RawQuery)
	}

	if algorithm := firstQueryValue(parameters, keyXAmzAlgorithm); algorithm != SigningAlgorithm {
		return stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Unable to verify presigned URL: unsupported algorithm %#v",
			algorithm)
	}

	signature := firstQueryValue(parameters, keyXAmzSignature)
	if signature == "" {
		return stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Unable to verify presigned URL: missing %s", keyXAmzSignature)
	}

	signingInstant, err := timeutil.ParseISO8601Timestamp(firstQueryValue(parameters, keyXAmzDateParam))
	if err != nil {
		return stacktrace.PropagateWithCode(err, ErrCodeMalformedRequest,
			"Unable to verify presigned URL: invalid %s", keyXAmzDateParam)
	}

	expirySeconds, err := strconv.ParseInt(firstQueryValue(parameters, keyXAmzExpires), 10, 64)
	if err != nil {
		return stacktrace.PropagateWithCode(err, ErrCodeInvalidExpiry,
			"Unable to verify presigned URL: invalid %s", keyXAmzExpires)
	}

	// Range-check the integer before converting: a large enough value
	// would overflow time.Duration and wrap into the valid range.
	if expirySeconds < int64(MinPresignExpiry/time.Second) ||
		expirySeconds > int64(MaxPresignExpiry/time.Second) {
		return stacktrace.NewErrorWithCode(ErrCodeInvalidExpiry,
			"Unable to verify presigned URL: expiry %ds out of range",
			expirySeconds)
	}
	expiry := time.Duration(expirySeconds) * time.Second

	if now.After(signingInstant.Add(expiry)) {
		return stacktrace.NewErrorWithCode(ErrCodeInvalidExpiry,
			"Presigned URL expired at %v", signingInstant.Add(expiry))
	}

	accessKeyID, requestScope, found := strings.Cut(firstQueryValue(parameters, keyXAmzCredential), "/")
	if !found {
		return stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
			"Unable to verify presigned URL: malformed %s", keyXAmzCredential)
	}

	scope := SigningScope{
		DateStamp: signingInstant.Format(timeutil.DateStampFormat),
		Region:    s.region,
		Service:   s.service,
	}
	if requestScope != scope.CredentialScope() {
		return stacktrace.NewErrorWithCode(ErrCodeSignatureMismatch,
			"Invalid credential scope: expected %#v instead of %#v",
			scope.CredentialScope(), requestScope)
	}

	creds, err := s.provider.Credentials()
	if err != nil {
		return stacktrace.Propagate(err, "Unable to verify presigned URL: "+
			"failed to obtain credentials")
	}
	if creds.AccessKeyID != accessKeyID {
		return stacktrace.NewErrorWithCode(ErrCodeSignatureMismatch,
			"Unknown access key %#v", accessKeyID)
	}

	verifyHeaders, err := signedHeaderValues(
		firstQueryValue(parameters, keyXAmzSignedHeaders), parsed.Host, headers)
	if err != nil {
		return err
	}

	verifyReq := &Request{
		Method:          method,
		Host:            parsed.Host,
		URIPath:         parsed.EscapedPath(),
		QueryParameters: parameters,
		Headers:         verifyHeaders,
		UnsignedPayload: true,
	}

	amzDate := signingInstant.Format(timeutil.ISO8601CompactFormat)
	stringToSign, err := verifyReq.GetStringToSign(amzDate, scope)
	if err != nil {
		return stacktrace.Propagate(err, "Unable to verify presigned URL")
	}

	expected := computeSignature(DeriveSigningKey(creds.SecretAccessKey, scope), stringToSign)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return stacktrace.NewErrorWithCode(ErrCodeSignatureMismatch,
			"Signature mismatch: expected %#v instead of %#v",
			expected, signature)
	}

	return nil
}

// firstQueryValue returns the first value of a query parameter, or "".
func firstQueryValue(parameters map[string][]string, key string) string {
	values := parameters[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// signedHeaderValues resolves the names in an X-Amz-SignedHeaders list
// against the host and the caller-supplied header values.
func signedHeaderValues(signedHeaders, host string, headers map[string][]string) (map[string][]string, error) {
	supplied := make(map[string][]string, len(headers))
	for name, values := range headers {
		supplied[strings.ToLower(name)] = values
	}

	result := make(map[string][]string)

	for _, name := range strings.Split(signedHeaders, ";") {
		if name == keyHost {
			result[keyHost] = []string{host}
			continue
		}

		values, ok := supplied[name]
		if !ok {
			return nil, stacktrace.NewErrorWithCode(ErrCodeMalformedRequest,
				"Unable to verify presigned URL: signed header %#v not "+
					"present in the request", name)
		}
		result[name] = values
	}

	return result, nil
}
