package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/authcore")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxLoginAttempts)
	assert.Equal(t, 20, cfg.MaxIPAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginAttemptWindow)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, 10*time.Minute, cfg.StaleSessionAfter)
	assert.Equal(t, 2*time.Minute, cfg.PresenceOfflineAfter)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionRetention)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/authcore")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("STALE_SESSION_THRESHOLD_SECONDS", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxLoginAttempts)
	assert.Equal(t, 45*time.Second, cfg.StaleSessionAfter)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/authcore")
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEnvIntOrDefaultIgnoresGarbage(t *testing.T) {
	t.Setenv("LOGIN_MAX_ATTEMPTS", "not-a-number")
	assert.Equal(t, 5, envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5))

	t.Setenv("LOGIN_MAX_ATTEMPTS", "-3")
	assert.Equal(t, 5, envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5))
}
