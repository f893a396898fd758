package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a valid bcrypt hash of a random string. When no account
// matches the requested username the login path still verifies the supplied
// password against this hash, so the response latency does not reveal
// whether the username exists.
const dummyHash = "$2b$12$LQv3c1yqBWVHxkd0LHAkCOYz6TtxMQJqhN8/X4.G6tHnCvWNeQvKy"

// HashPassword hashes a plaintext password with the given bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
// bcrypt's own comparison is constant-time over the digest.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// verifyCredential runs bcrypt verification for a login attempt. storedHash
// is nil when the account does not exist; the dummy hash is substituted so
// the work factor is paid either way, and the result is forced to false.
func verifyCredential(password string, storedHash *string) bool {
	if storedHash == nil {
		VerifyPassword(password, dummyHash)
		return false
	}
	return VerifyPassword(password, *storedHash)
}
