package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecideReclaim(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 10 * time.Minute

	fresh := func(ip string) *Session {
		return &Session{
			IPAddress:      ip,
			ExpiresAt:      now.Add(time.Hour),
			IsActive:       true,
			LastActivityAt: now.Add(-time.Minute),
		}
	}
	stale := func(ip string) *Session {
		return &Session{
			IPAddress:      ip,
			ExpiresAt:      now.Add(time.Hour),
			IsActive:       true,
			LastActivityAt: now.Add(-2 * staleAfter),
		}
	}

	tests := []struct {
		name     string
		existing *Session
		ip       string
		force    bool
		want     ReclaimAction
	}{
		{"no session", nil, "1.1.1.1", false, ReclaimIssue},
		{"no session forced", nil, "1.1.1.1", true, ReclaimIssue},
		{"same ip", fresh("1.1.1.1"), "1.1.1.1", false, ReclaimTakeOver},
		{"same ip forced", fresh("1.1.1.1"), "1.1.1.1", true, ReclaimTakeOver},
		{"other ip fresh", fresh("1.1.1.1"), "2.2.2.2", false, ReclaimDeny},
		{"other ip fresh forced", fresh("1.1.1.1"), "2.2.2.2", true, ReclaimTakeOver},
		{"other ip stale", stale("1.1.1.1"), "2.2.2.2", false, ReclaimTakeOver},
		{"other ip stale forced", stale("1.1.1.1"), "2.2.2.2", true, ReclaimTakeOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decideReclaim(tt.existing, tt.ip, now, staleAfter, tt.force)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideReclaimIgnoresDeadSessions(t *testing.T) {
	now := time.Now().UTC()

	inactive := &Session{IPAddress: "1.1.1.1", ExpiresAt: now.Add(time.Hour), IsActive: false, LastActivityAt: now}
	expired := &Session{IPAddress: "1.1.1.1", ExpiresAt: now.Add(-time.Minute), IsActive: true, LastActivityAt: now}

	assert.Equal(t, ReclaimIssue, decideReclaim(inactive, "2.2.2.2", now, time.Minute, false))
	assert.Equal(t, ReclaimIssue, decideReclaim(expired, "2.2.2.2", now, time.Minute, false))
}

func TestDecideReclaimStaleBoundary(t *testing.T) {
	now := time.Now().UTC()
	staleAfter := 10 * time.Minute

	// Exactly at the threshold is still fresh; staleness requires strictly
	// more silence than the threshold.
	boundary := &Session{
		IPAddress:      "1.1.1.1",
		ExpiresAt:      now.Add(time.Hour),
		IsActive:       true,
		LastActivityAt: now.Add(-staleAfter),
	}
	assert.Equal(t, ReclaimDeny, decideReclaim(boundary, "2.2.2.2", now, staleAfter, false))
}
