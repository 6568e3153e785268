package awssign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// SigningScope binds a derived signing key to a single UTC day, region,
// and service. Keys derived for the same scope and secret key are
// byte-identical for the whole day.
type SigningScope struct {
	// The UTC date of the signing instant, formatted YYYYMMDD.
	DateStamp string

	// The region the request is addressed to.
	Region string

	// The service being accessed.
	Service string
}

// CredentialScope returns the scope in its wire form:
// date/region/service/aws4_request.
func (s SigningScope) CredentialScope() string {
	return s.DateStamp + "/" + s.Region + "/" + s.Service + "/" + keyAWS4Request
}

func hmacSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

// DeriveSigningKey computes the scoped signing key from the secret key via
// the SigV4 HMAC-SHA256 chain:
//
//	kDate    = HMAC("AWS4" + secret, date_stamp)
//	kRegion  = HMAC(kDate, region)
//	kService = HMAC(kRegion, service)
//	kSigning = HMAC(kService, "aws4_request")
//
// The initial key is the literal bytes "AWS4" prepended to the secret key,
// not itself HMAC'd.
func DeriveSigningKey(secretKey string, scope SigningScope) []byte {
	kDate := hmacSHA256([]byte(keyAWS4+secretKey), scope.DateStamp)
	kRegion := hmacSHA256(kDate, scope.Region)
	kService := hmacSHA256(kRegion, scope.Service)
	return hmacSHA256(kService, keyAWS4Request)
}

// signingKeyCache memoizes derived signing keys. Entries are keyed by a
// fingerprint of the secret key plus the scope, so the raw secret never
// sits in a map key, and they stay valid only for the scope's UTC day:
// the first derivation on a new day evicts the previous day's entries.
type signingKeyCache struct {
	mu        sync.RWMutex
	dateStamp string
	keys      map[string][]byte
}

func newSigningKeyCache() *signingKeyCache {
	return &signingKeyCache{keys: make(map[string][]byte)}
}

func secretKeyFingerprint(secretKey string) string {
	digest := sha256.Sum256([]byte(secretKey))
	return hex.EncodeToString(digest[:])
}

// get returns the cached signing key for the secret key and scope, deriving
// and caching it on a miss.
func (c *signingKeyCache) get(secretKey string, scope SigningScope) []byte {
	cacheKey := secretKeyFingerprint(secretKey) + "/" + scope.CredentialScope()

	c.mu.RLock()
	key, ok := c.keys[cacheKey]
	c.mu.RUnlock()
	if ok {
		return key
	}

	key = DeriveSigningKey(secretKey, scope)

	c.mu.Lock()
	if c.dateStamp != scope.DateStamp {
		// UTC date rollover; yesterday's keys must not be served.
		c.keys = make(map[string][]byte)
		c.dateStamp = scope.DateStamp
	}
	c.keys[cacheKey] = key
	c.mu.Unlock()

	return key
}
