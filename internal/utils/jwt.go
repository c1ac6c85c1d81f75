// Package utils provides token minting, token validation and password
// hashing helpers shared by the auth handlers and middleware.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/task-tracker/internal/model"
)

// ErrInvalidToken is the single error returned for every access-token
// rejection: bad signature, wrong issuer or audience, expired, malformed,
// unexpected signing method. Callers cannot distinguish the cause.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed HS256 JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is the opaque session-continuation credential. Raw goes
// back to the client; only its SHA-256 digest is stored server-side.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims are the identity fields carried by an access token.
type Claims struct {
	UserID   uint64
	Username string
	Role     model.Role
}

// NewAccessToken builds and signs an HS256 JWT. The claim set is
// sub (user id), name (username), role, iss, aud, iat and exp. The
// function is pure apart from reading the wall clock.
func NewAccessToken(secret, issuer, audience string, userID uint64, username string, role model.Role, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": username,
		"role": string(role),
		"iss":  issuer,
		"aud":  audience,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken fully validates a bearer token: HMAC signing method,
// signature, issuer, audience and expiry. On any failure it returns
// ErrInvalidToken.
func ParseAccessToken(secret, issuer, audience, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, hmacKeyFunc(secret),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
	)
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claimsFrom(tok)
}

// ParseExpiredAccessToken validates everything ParseAccessToken does
// except expiry. It exists solely so the refresh flow can recover the
// subject from an expired-but-otherwise-valid access token; signature,
// issuer and audience must still check out. Do not use it anywhere else.
func ParseExpiredAccessToken(secret, issuer, audience, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, hmacKeyFunc(secret), jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	// WithoutClaimsValidation skips issuer/audience along with expiry,
	// so those two are re-checked by hand.
	iss, err := tok.Claims.GetIssuer()
	if err != nil || iss != issuer {
		return Claims{}, ErrInvalidToken
	}
	aud, err := tok.Claims.GetAudience()
	if err != nil || !containsAudience(aud, audience) {
		return Claims{}, ErrInvalidToken
	}
	return claimsFrom(tok)
}

// NewRefreshToken mints an opaque random token: 32 bytes (256 bits) of
// crypto/rand output, hex encoded. ttlDays controls the absolute expiry.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(buf),
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hex digest of a raw refresh token.
// Only the digest is persisted, so a leaked users table cannot be used
// to continue sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func hmacKeyFunc(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func claimsFrom(tok *jwt.Token) (Claims, error) {
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var out Claims
	switch sub := mc["sub"].(type) {
	case float64:
		out.UserID = uint64(sub)
	default:
		return Claims{}, ErrInvalidToken
	}
	if name, ok := mc["name"].(string); ok {
		out.Username = name
	}
	roleStr, _ := mc["role"].(string)
	role, ok := model.ParseRole(roleStr)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	out.Role = role
	return out, nil
}
