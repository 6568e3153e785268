package awssign

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"

func TestDeriveSigningKey(t *testing.T) {
	scope := SigningScope{DateStamp: "20150830", Region: "us-east-1", Service: "iam"}
	key := DeriveSigningKey(testSecretKey, scope)

	assert.Equal(t,
		"2c94c0cf5378ada6887f09bb697df8fc0affdb34ba1cdd5bda32b664bd55b73c",
		hex.EncodeToString(key))
	require.Len(t, key, 32)
}

func TestDeriveSigningKeyScopeSensitivity(t *testing.T) {
	base := SigningScope{DateStamp: "20150830", Region: "us-east-1", Service: "iam"}
	key := DeriveSigningKey(testSecretKey, base)

	variants := []SigningScope{
		{DateStamp: "20150831", Region: "us-east-1", Service: "iam"},
		{DateStamp: "20150830", Region: "us-west-2", Service: "iam"},
		{DateStamp: "20150830", Region: "us-east-1", Service: "s3"},
	}
	for _, scope := range variants {
		assert.NotEqual(t, key, DeriveSigningKey(testSecretKey, scope),
			"scope %v must derive a distinct key", scope)
	}

	assert.NotEqual(t, key, DeriveSigningKey("otherkey", base))
}

func TestCredentialScope(t *testing.T) {
	scope := SigningScope{DateStamp: "20150830", Region: "us-east-1", Service: "service"}
	assert.Equal(t, "20150830/us-east-1/service/aws4_request", scope.CredentialScope())
}

func TestSigningKeyCacheReturnsFreshDerivation(t *testing.T) {
	cache := newSigningKeyCache()
	scope := SigningScope{DateStamp: "20150830", Region: "us-east-1", Service: "iam"}

	cached := cache.get(testSecretKey, scope)
	assert.Equal(t, DeriveSigningKey(testSecretKey, scope), cached)

	// Second lookup is served from the cache and must be identical.
	assert.Equal(t, cached, cache.get(testSecretKey, scope))
	assert.Len(t, cache.keys, 1)
}

func TestSigningKeyCacheEvictsAcrossDateBoundary(t *testing.T) {
	cache := newSigningKeyCache()
	yesterday := SigningScope{DateStamp: "20150830", Region: "us-east-1", Service: "iam"}
	today := SigningScope{DateStamp: "20150831", Region: "us-east-1", Service: "iam"}

	cache.get(testSecretKey, yesterday)
	cache.get(testSecretKey, today)

	// Only today's key remains; yesterday's entry must not be served
	// after the UTC rollover.
	assert.Len(t, cache.keys, 1)
	assert.Equal(t, DeriveSigningKey(testSecretKey, today),
		cache.get(testSecretKey, today))
}

func TestSigningKeyCacheDistinguishesSecrets(t *testing.T) {
	cache := newSigningKeyCache()
	scope := SigningScope{DateStamp: "20150830", Region: "us-east-1", Service: "iam"}

	first := cache.get(testSecretKey, scope)
	second := cache.get("otherkey", scope)

	assert.NotEqual(t, first, second)
	assert.Len(t, cache.keys, 2)
}
