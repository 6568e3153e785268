package awssign

import (
	"time"

	"github.com/palantir/stacktrace"
)

// Credentials is an immutable snapshot of an AWS credential set, valid for
// a single signing instant. How the values were obtained (environment,
// shared profile, STS role assumption) is outside this package's concern.
type Credentials struct {
	// The access key ID identifying the credential set.
	AccessKeyID string

	// The secret access key used to derive signing keys.
	SecretAccessKey string

	// The session token accompanying temporary credentials. Empty for
	// long-term credentials.
	SessionToken string

	// The instant the credentials expire. The zero value means the
	// credentials never expire.
	Expiration time.Time
}

// CredentialsProvider supplies a credential snapshot for a signing
// operation. Implementations resolving from environment variables, shared
// config files, or role assumption all look the same from here.
type CredentialsProvider interface {
	Credentials() (Credentials, error)
}

// StaticCredentialsProvider is a CredentialsProvider returning a fixed
// credential set.
type StaticCredentialsProvider struct {
	Value Credentials
}

// Credentials returns the fixed credential set.
func (p StaticCredentialsProvider) Credentials() (Credentials, error) {
	return p.Value, nil
}

// check validates the credential set for use at the given instant.
func (c Credentials) check(now time.Time) error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return stacktrace.NewError(
			"Invalid credentials: access key ID and secret access key are required")
	}

	if !c.Expiration.IsZero() && !now.Before(c.Expiration) {
		return stacktrace.NewErrorWithCode(ErrCodeCredentialsExpired,
			"Credentials expired at %v, before the signing instant %v",
			c.Expiration.UTC(), now.UTC())
	}

	return nil
}
