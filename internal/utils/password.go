package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of plain using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MalformedDigest reports whether a stored hash is not a parseable
// bcrypt digest. Callers use it to log corrupt rows while still failing
// the verification like an ordinary bad password.
func MalformedDigest(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err != nil
}

// VerifyPassword compares a bcrypt hash against a plain password.
// A malformed or truncated stored hash fails closed: the comparison
// reports false rather than surfacing an error, so a corrupt digest can
// never abort a login attempt.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
