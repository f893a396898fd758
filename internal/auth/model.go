package auth

import "time"

type User struct {
	ID                    string
	Username              string
	PasswordHash          string
	UserType              string
	IsActive              bool
	WorkCount             int
	WorkUsed              int
	SubscriptionExpiresAt *time.Time
	LastLoginAt           *time.Time
	LastLoginIP           *string
	LoginCount            int
	IsOnline              bool
	LastHeartbeat         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UnlimitedWork is the work_count sentinel meaning the account has no quota.
const UnlimitedWork = -1

type Session struct {
	ID             string
	UserID         string
	TokenJTI       string
	IPAddress      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IsActive       bool
	LastActivityAt time.Time
}

// Live reports whether the session is usable at the given instant.
func (s Session) Live(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

type LoginAttempt struct {
	ID          int64
	Username    string
	IPAddress   string
	AttemptedAt time.Time
	Success     bool
}
