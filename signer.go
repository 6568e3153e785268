package awssign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kdutton/awssign/timeutil"
	"github.com/palantir/stacktrace"
)

const (
	// SigningAlgorithm is the fixed SigV4 algorithm identifier.
	SigningAlgorithm = "AWS4-HMAC-SHA256"

	// EmptyStringSHA256 is the SHA-256 hex digest of the empty string,
	// the payload hash of a request with no body.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// UnsignedPayload is the payload-hash sentinel for streaming or
	// presigned requests whose body is not covered by the signature.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	keyAWS4                          = "AWS4"
	keyAWS4Request                   = "aws4_request"
	keyApplicationXWWWFormURLEncoded = "application/x-www-form-urlencoded"
	keyCharset                       = "charset"
	keyContentType                   = "content-type"
	keyHost                          = "host"
	keyXAmzContentSHA256             = "x-amz-content-sha256"
	keyXAmzDate                      = "x-amz-date"
	keyXAmzSecurityTokenLower        = "x-amz-security-token"

	keyXAmzAlgorithm     = "X-Amz-Algorithm"
	keyXAmzCredential    = "X-Amz-Credential"
	keyXAmzDateParam     = "X-Amz-Date"
	keyXAmzExpires       = "X-Amz-Expires"
	keyXAmzSecurityToken = "X-Amz-Security-Token"
	keyXAmzSignature     = "X-Amz-Signature"
	keyXAmzSignedHeaders = "X-Amz-SignedHeaders"

	// HeaderAuthorization and friends are the canonical names of the
	// headers a header-mode signing result is attached under.
	HeaderAuthorization    = "Authorization"
	HeaderAmzDate          = "X-Amz-Date"
	HeaderAmzSecurityToken = "X-Amz-Security-Token"
	HeaderAmzContentSHA256 = "X-Amz-Content-Sha256"
)

// Signer signs requests for one region and service. It is stateless apart
// from a signing-key cache and safe for concurrent use.
type Signer struct {
	provider CredentialsProvider
	region   string
	service  string

	scheme            string
	signPayloadHeader bool

	keyCache *signingKeyCache
}

// SignerOption adjusts optional Signer behavior.
type SignerOption func(*Signer)

// WithScheme sets the URL scheme used for presigned URLs. The default is
// "https".
func WithScheme(scheme string) SignerOption {
	return func(s *Signer) {
		s.scheme = scheme
	}
}

// WithPayloadHashHeader makes header-mode signing include and sign the
// x-amz-content-sha256 header, as S3-style services require.
func WithPayloadHashHeader() SignerOption {
	return func(s *Signer) {
		s.signPayloadHeader = true
	}
}

// NewSigner returns a Signer drawing credentials from the given provider
// and scoping signatures to the given region and service.
func NewSigner(provider CredentialsProvider, region, service string, options ...SignerOption) (*Signer, error) {
	if provider == nil {
		return nil, stacktrace.NewError("A credentials provider is required")
	}
	if region == "" || service == "" {
		return nil, stacktrace.NewError(
			"Region and service are required: region=%#v service=%#v",
			region, service)
	}

	signer := &Signer{
		provider: provider,
		region:   region,
		service:  service,
		scheme:   "https",
		keyCache: newSigningKeyCache(),
	}

	for _, option := range options {
		option(signer)
	}

	return signer, nil
}

// SignedRequest is the result of header-mode signing: the header values
// the caller must merge into the outgoing request unchanged.
type SignedRequest struct {
	// The Authorization header value.
	Authorization string

	// The X-Amz-Date header value; it must match the instant the
	// signature was computed for.
	Date string

	// The X-Amz-Security-Token header value. Empty unless the
	// credentials are temporary.
	SecurityToken string

	// The X-Amz-Content-Sha256 header value. Empty unless the signer was
	// built with WithPayloadHashHeader.
	ContentSHA256 string

	// The semicolon-joined list of signed header names, as it appears in
	// the Authorization header.
	SignedHeaders string

	// The lowercase-hex signature, as it appears in the Authorization
	// header.
	Signature string
}

// Headers returns the headers to merge into the outgoing request.
func (sr *SignedRequest) Headers() map[string]string {
	headers := map[string]string{
		HeaderAuthorization: sr.Authorization,
		HeaderAmzDate:       sr.Date,
	}
	if sr.SecurityToken != "" {
		headers[HeaderAmzSecurityToken] = sr.SecurityToken
	}
	if sr.ContentSHA256 != "" {
		headers[HeaderAmzContentSHA256] = sr.ContentSHA256
	}
	return headers
}

// Sign signs the request for the given instant and returns the header
// values to attach to it. The same captured instant feeds both the
// X-Amz-Date header and the credential scope, so a date rollover between
// the two cannot occur.
func (s *Signer) Sign(req *Request, signingTime time.Time) (*SignedRequest, error) {
	creds, err := s.provider.Credentials()
	if err != nil {
		return nil, stacktrace.Propagate(err, "Unable to sign request: failed "+
			"to obtain credentials")
	}

	if err := creds.check(signingTime); err != nil {
		return nil, stacktrace.Propagate(err, "Unable to sign request")
	}

	if err := req.validate(); err != nil {
		return nil, stacktrace.Propagate(err, "Unable to sign request")
	}

	utc := signingTime.UTC()
	amzDate := utc.Format(timeutil.ISO8601CompactFormat)
	scope := SigningScope{
		DateStamp: utc.Format(timeutil.DateStampFormat),
		Region:    s.region,
		Service:   s.service,
	}

	signingHeaders := map[string][]string{
		keyHost:     {req.Host},
		keyXAmzDate: {amzDate},
	}
	if creds.SessionToken != "" {
		signingHeaders[keyXAmzSecurityTokenLower] = []string{creds.SessionToken}
	}

	result := &SignedRequest{Date: amzDate, SecurityToken: creds.SessionToken}

	if s.signPayloadHeader {
		contentType, _, err := req.GetContentTypeAndCharset()
		if err != nil {
			return nil, stacktrace.Propagate(err, "Unable to sign request")
		}

		bodyDigest := req.GetBodyDigest()
		if contentType == keyApplicationXWWWFormURLEncoded {
			bodyDigest = EmptyStringSHA256
		}

		signingHeaders[keyXAmzContentSHA256] = []string{bodyDigest}
		result.ContentSHA256 = bodyDigest
	}

	signingReq, err := req.withHeaders(signingHeaders)
	if err != nil {
		return nil, stacktrace.Propagate(err, "Unable to sign request")
	}

	stringToSign, err := signingReq.GetStringToSign(amzDate, scope)
	if err != nil {
		return nil, stacktrace.Propagate(err, "Unable to sign request")
	}

	signedHeaders, err := signingReq.GetSignedHeaders()
	if err != nil {
		return nil, stacktrace.Propagate(err, "Unable to sign request")
	}

	signingKey := s.keyCache.get(creds.SecretAccessKey, scope)

	result.SignedHeaders = joinSignedHeaderNames(signedHeaders)
	result.Signature = computeSignature(signingKey, stringToSign)
	result.Authorization = SigningAlgorithm +
		" Credential=" + creds.AccessKeyID + "/" + scope.CredentialScope() +
		", SignedHeaders=" + result.SignedHeaders +
		", Signature=" + result.Signature

	return result, nil
}

// withHeaders returns a copy of the request with additional headers
// merged in. The original request is never mutated.
func (r *Request) withHeaders(extra map[string][]string) (*Request, error) {
	headers, err := r.normalizedHeaders()
	if err != nil {
		return nil, err
	}

	for name, values := range extra {
		headers[name] = values
	}

	augmented := *r
	augmented.Headers = headers
	return &augmented, nil
}

func joinSignedHeaderNames(headers []SignedHeader) string {
	names := make([]string, len(headers))
	for i, header := range headers {
		names[i] = header.Name
	}
	return strings.Join(names, ";")
}

// computeSignature HMACs the string to sign with the derived signing key,
// producing the final lowercase-hex signature. Identical inputs always
// yield an identical signature.
func computeSignature(signingKey []byte, stringToSign string) string {
	mac := hmac.New(sha256.New, signingKey)
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}
