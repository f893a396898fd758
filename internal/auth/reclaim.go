package auth

import "time"

// ReclaimAction is what the login path must do about an existing session.
type ReclaimAction int

const (
	// ReclaimIssue means no live session exists; issue a new one.
	ReclaimIssue ReclaimAction = iota
	// ReclaimTakeOver means deactivate the old session, then issue a new one.
	ReclaimTakeOver
	// ReclaimDeny means the login conflicts with a live session elsewhere.
	ReclaimDeny
)

// decideReclaim arbitrates a login against the user's current live session.
//
//	no live session            -> issue
//	same IP                    -> take over (re-auth from the same origin is not a conflict)
//	other IP, heartbeat stale  -> take over (crashed client reclaims without forcing)
//	other IP, heartbeat fresh  -> deny unless force
func decideReclaim(existing *Session, ip string, now time.Time, staleAfter time.Duration, force bool) ReclaimAction {
	if existing == nil || !existing.Live(now) {
		return ReclaimIssue
	}
	if force {
		return ReclaimTakeOver
	}
	if existing.IPAddress == ip {
		return ReclaimTakeOver
	}
	if now.Sub(existing.LastActivityAt) > staleAfter {
		return ReclaimTakeOver
	}
	return ReclaimDeny
}
