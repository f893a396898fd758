package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "***", maskUsername(""))
	assert.Equal(t, "****", maskUsername("bob"))
	assert.Equal(t, "****", maskUsername("anna"))
	assert.Equal(t, "jo*****th", maskUsername("johnsmith"))
}

func TestHashIP(t *testing.T) {
	assert.Equal(t, "unknown", hashIP(""))

	hashed := hashIP("10.0.0.1")
	assert.Len(t, hashed, 12)
	assert.NotContains(t, hashed, ".")
	assert.False(t, strings.Contains(hashed, "10.0.0.1"))

	// Deterministic, so log lines from one source correlate.
	assert.Equal(t, hashed, hashIP("10.0.0.1"))
	assert.NotEqual(t, hashed, hashIP("10.0.0.2"))
}
