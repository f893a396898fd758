package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyPassword("correct-horse-battery", hash))
	assert.False(t, VerifyPassword("wrong-password", hash))
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword("pw", hash))
}

func TestVerifyCredentialMissingAccount(t *testing.T) {
	// A nil stored hash still runs bcrypt against the dummy hash and must
	// report failure, whatever the password.
	assert.False(t, verifyCredential("anything", nil))
	assert.False(t, verifyCredential("", nil))
}

func TestVerifyCredentialRealHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := string(hash)

	assert.True(t, verifyCredential("s3cret", &stored))
	assert.False(t, verifyCredential("nope", &stored))
}

func TestDummyHashIsValidBcrypt(t *testing.T) {
	// The dummy must be a well-formed hash so the comparison pays the full
	// work factor instead of bailing out on a parse error.
	err := bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte("probe"))
	assert.ErrorIs(t, err, bcrypt.ErrMismatchedHashAndPassword)
}
