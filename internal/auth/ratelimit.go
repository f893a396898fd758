package auth

import (
	"context"
	"fmt"
	"time"
)

// Rate-limit denial reasons. They are logged but never surfaced to the
// caller, which only ever sees CodeRateLimited.
const (
	reasonUsernameLimit = "username_limit"
	reasonIPLimit       = "ip_limit"
)

type RateLimitDecision struct {
	Allowed bool
	Reason  string
}

// RateLimiter gates logins with two independent sliding windows over the
// attempt ledger: failed attempts per username (stops brute force against
// one account across rotating IPs) and all attempts per IP (stops
// credential stuffing and enumeration from one source).
type RateLimiter struct {
	repo          *Repository
	maxAttempts   int
	maxIPAttempts int
	window        time.Duration
}

func NewRateLimiter(repo *Repository, maxAttempts, maxIPAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		repo:          repo,
		maxAttempts:   maxAttempts,
		maxIPAttempts: maxIPAttempts,
		window:        window,
	}
}

// Check counts both windows. The caller must already hold the advisory
// locks for the username and IP (LockLoginKeys) in the same transaction,
// otherwise concurrent attempts can read the same count and jointly slip
// past the threshold.
func (l *RateLimiter) Check(ctx context.Context, q Querier, username, ip string, now time.Time) (RateLimitDecision, error) {
	since := now.UTC().Add(-l.window)

	failures, err := l.repo.CountRecentFailures(ctx, q, username, since)
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limit username window: %w", err)
	}
	if failures >= l.maxAttempts {
		return RateLimitDecision{Reason: reasonUsernameLimit}, nil
	}

	attempts, err := l.repo.CountRecentAttempts(ctx, q, ip, since)
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limit ip window: %w", err)
	}
	if attempts >= l.maxIPAttempts {
		return RateLimitDecision{Reason: reasonIPLimit}, nil
	}

	return RateLimitDecision{Allowed: true}, nil
}
