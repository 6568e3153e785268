// Package awssign signs outbound HTTP requests with AWS Signature Version 4
// (SigV4), the request-authentication scheme used by virtually all AWS APIs
// (http://docs.aws.amazon.com/general/latest/gr/signature-version-4.html).
//
// This is the client-side complement of a SigV4 verifying service: given a
// request description and a set of credentials, it produces either the
// Authorization/X-Amz-Date header values to attach to the outgoing request
// (Signer.Sign) or a self-contained presigned URL whose query string embeds
// the signing parameters (Signer.Presign).
//
// The signing pipeline is a linear sequence of pure transformations:
//
//  1. Canonicalize the request: normalized URI path, sorted and
//     percent-encoded query string, sorted lowercase headers, and the
//     SHA-256 hex digest of the payload.
//  2. Build the string to sign from the algorithm identifier, the request
//     timestamp, the credential scope (date/region/service/aws4_request),
//     and the SHA-256 hex digest of the canonical request.
//  3. Derive the signing key from the secret key through a four-step
//     HMAC-SHA256 chain keyed successively by date, region, service, and
//     the literal "aws4_request".
//  4. HMAC the string to sign with the derived key; the lowercase hex of
//     the result is the signature.
//
// Everything is computed fresh per call from one captured timestamp; the
// package holds no mutable state beyond an internal signing-key cache, so a
// single Signer may be used concurrently from any number of goroutines.
// Sending the signed request, acquiring credentials, and retrying on
// failure are the caller's concern.
package awssign
