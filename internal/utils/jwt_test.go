package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/task-tracker/internal/model"
)

const (
	testSecret   = "unit-test-secret"
	testIssuer   = "task-tracker"
	testAudience = "task-tracker-clients"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken(testSecret, testIssuer, testAudience, 42, "alice", model.RoleManager, 30)
	require.NoError(t, err)
	require.NotEmpty(t, at.Token)

	claims, err := ParseAccessToken(testSecret, testIssuer, testAudience, at.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, model.RoleManager, claims.Role)
}

func TestParseAccessTokenRejections(t *testing.T) {
	at, err := NewAccessToken(testSecret, testIssuer, testAudience, 1, "bob", model.RoleEmployee, 30)
	require.NoError(t, err)

	tests := []struct {
		name     string
		secret   string
		issuer   string
		audience string
		raw      string
	}{
		{"wrong secret", "other-secret", testIssuer, testAudience, at.Token},
		{"wrong issuer", testSecret, "someone-else", testAudience, at.Token},
		{"wrong audience", testSecret, testIssuer, "other-clients", at.Token},
		{"malformed", testSecret, testIssuer, testAudience, "not.a.jwt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.secret, tc.issuer, tc.audience, tc.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExpiredTokenOnlyPassesRelaxedParse(t *testing.T) {
	expired, err := NewAccessToken(testSecret, testIssuer, testAudience, 7, "carol", model.RoleAdmin, -1)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, testIssuer, testAudience, expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "normal validation must reject an expired token")

	claims, err := ParseExpiredAccessToken(testSecret, testIssuer, testAudience, expired.Token)
	require.NoError(t, err, "relaxed validation must accept an expired but otherwise valid token")
	assert.Equal(t, uint64(7), claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestRelaxedParseStillChecksEverythingElse(t *testing.T) {
	expired, err := NewAccessToken(testSecret, testIssuer, testAudience, 7, "carol", model.RoleAdmin, -1)
	require.NoError(t, err)

	_, err = ParseExpiredAccessToken("other-secret", testIssuer, testAudience, expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "bad signature")

	_, err = ParseExpiredAccessToken(testSecret, "someone-else", testAudience, expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	_, err = ParseExpiredAccessToken(testSecret, testIssuer, "other-clients", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong audience")
}

func TestNewRefreshToken(t *testing.T) {
	r1, err := NewRefreshToken(7)
	require.NoError(t, err)
	r2, err := NewRefreshToken(7)
	require.NoError(t, err)

	// 32 random bytes, hex encoded.
	assert.Len(t, r1.Raw, 64)
	assert.NotEqual(t, r1.Raw, r2.Raw)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), r1.Exp, time.Minute)

	// Digest is stable and differs from the raw value.
	assert.Equal(t, HashRefreshRaw(r1.Raw), HashRefreshRaw(r1.Raw))
	assert.NotEqual(t, r1.Raw, HashRefreshRaw(r1.Raw))
	assert.Len(t, HashRefreshRaw(r1.Raw), 64)
}
