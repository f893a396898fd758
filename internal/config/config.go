package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once at process start and handed to constructors by
// value. There is no global settings accessor.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	AppEnv      string
	SentryDSN   string
	Debug       bool

	MaxLoginAttempts   int
	MaxIPAttempts      int
	LoginAttemptWindow time.Duration
	JWTExpiration      time.Duration
	StaleSessionAfter  time.Duration
	BcryptCost         int

	PresenceOfflineAfter  time.Duration
	SessionRetention      time.Duration
	LoginAttemptRetention time.Duration
	SweepInterval         time.Duration
	SweepBatchSize        int

	DBMaxConns        int
	DBMinConns        int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

// Load reads the configuration from the environment. DATABASE_URL and
// JWT_SECRET are required; everything else has a default.
func Load() (Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	if len(jwtSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return Config{
		DatabaseURL: databaseURL,
		JWTSecret:   jwtSecret,
		AppEnv:      envOrDefault("APP_ENV", "development"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Debug:       envBoolOrDefault("DEBUG", false),

		MaxLoginAttempts:   envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		MaxIPAttempts:      envIntOrDefault("LOGIN_MAX_IP_ATTEMPTS", 20),
		LoginAttemptWindow: envMinutesOrDefault("LOGIN_ATTEMPT_WINDOW_MINUTES", 15),
		JWTExpiration:      envHoursOrDefault("JWT_EXPIRATION_HOURS", 24),
		StaleSessionAfter:  envSecondsOrDefault("STALE_SESSION_THRESHOLD_SECONDS", 600),
		BcryptCost:         envIntOrDefault("BCRYPT_COST", 12),

		PresenceOfflineAfter:  envSecondsOrDefault("PRESENCE_OFFLINE_AFTER_SECONDS", 120),
		SessionRetention:      envDaysOrDefault("SESSION_RETENTION_DAYS", 7),
		LoginAttemptRetention: envDaysOrDefault("LOGIN_ATTEMPT_RETENTION_DAYS", 30),
		SweepInterval:         envSecondsOrDefault("SWEEP_INTERVAL_SECONDS", 60),
		SweepBatchSize:        envIntOrDefault("SWEEP_BATCH_SIZE", 500),

		DBMaxConns:        envIntOrDefault("DB_MAX_CONNS", 10),
		DBMinConns:        envIntOrDefault("DB_MIN_CONNS", 2),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
	}, nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
