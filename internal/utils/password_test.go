package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pw123", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "pw123", hash)

	assert.True(t, VerifyPassword(hash, "pw123"))
	assert.False(t, VerifyPassword(hash, "pw124"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashPasswordIsSalted(t *testing.T) {
	h1, err := HashPassword("pw123", bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := HashPassword("pw123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ")
}

func TestVerifyPasswordFailsClosedOnMalformedDigest(t *testing.T) {
	for _, digest := range []string{"", "not-a-bcrypt-hash", "$2a$xx$garbage"} {
		assert.False(t, VerifyPassword(digest, "pw123"), "digest %q", digest)
		assert.True(t, MalformedDigest(digest), "digest %q", digest)
	}

	good, err := HashPassword("pw123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, MalformedDigest(good))
}
