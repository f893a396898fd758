package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"authcore/internal/observability"
)

// storeTimeout bounds every operation's datastore work. A slow store
// fails the call closed instead of hanging it.
const storeTimeout = 5 * time.Second

// Service orchestrates the five public operations. Each one runs against
// the store inside a single transaction; policy denials are committed (the
// attempt ledger must keep its rows), only infrastructure failures roll
// back and escape as errors.
type Service struct {
	repo       *Repository
	tokens     *TokenIssuer
	limiter    *RateLimiter
	logger     *observability.Logger
	staleAfter time.Duration
}

func NewService(repo *Repository, tokens *TokenIssuer, limiter *RateLimiter, logger *observability.Logger, staleAfter time.Duration) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		limiter:    limiter,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// Login authenticates a user and issues a session-bound token. All
// credential failures collapse into EU001; only subscription expiry is a
// distinct, user-visible code.
func (s *Service) Login(ctx context.Context, username, password, ip string, force bool) (LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	username = strings.ToLower(strings.TrimSpace(username))
	now := time.Now().UTC()

	var result LoginResult
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.LockLoginKeys(ctx, tx, username, ip); err != nil {
			return err
		}

		decision, err := s.limiter.Check(ctx, tx, username, ip, now)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			if err := s.repo.RecordLoginAttempt(ctx, tx, username, ip, false, now); err != nil {
				return err
			}
			s.logger.Warn("login rate limited", map[string]any{
				"username": maskUsername(username),
				"ip_hash":  hashIP(ip),
				"reason":   decision.Reason,
			})
			observability.RateLimitDenials.WithLabelValues(decision.Reason).Inc()
			result = LoginResult{
				Status:  statusCode(CodeRateLimited),
				Message: "Too many login attempts. Please try again later.",
			}
			return nil
		}

		user, err := s.repo.GetUserByUsername(ctx, tx, username)
		var storedHash *string
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		} else {
			storedHash = &user.PasswordHash
		}

		// Verification always runs, against the dummy hash when the
		// account is missing, so latency does not betray existence.
		if !verifyCredential(password, storedHash) {
			if err := s.repo.RecordLoginAttempt(ctx, tx, username, ip, false, now); err != nil {
				return err
			}
			s.logger.Info("login failed", map[string]any{
				"username": maskUsername(username),
				"ip_hash":  hashIP(ip),
			})
			result = LoginResult{Status: statusCode(CodeInvalidCredentials)}
			return nil
		}

		if user.SubscriptionExpiresAt != nil && !user.SubscriptionExpiresAt.After(now) {
			if err := s.repo.RecordLoginAttempt(ctx, tx, username, ip, false, now); err != nil {
				return err
			}
			s.logger.Info("login failed, subscription expired", map[string]any{
				"username": maskUsername(username),
				"ip_hash":  hashIP(ip),
			})
			result = LoginResult{Status: statusCode(CodeSubscriptionExpired)}
			return nil
		}

		if !user.IsActive {
			if err := s.repo.RecordLoginAttempt(ctx, tx, username, ip, false, now); err != nil {
				return err
			}
			s.logger.Info("login failed, account disabled", map[string]any{
				"username": maskUsername(username),
				"ip_hash":  hashIP(ip),
			})
			result = LoginResult{Status: statusCode(CodeInvalidCredentials)}
			return nil
		}

		var existing *Session
		if session, err := s.repo.GetActiveSessionForUpdate(ctx, tx, user.ID, now); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		} else {
			existing = &session
		}

		switch decideReclaim(existing, ip, now, s.staleAfter, force) {
		case ReclaimDeny:
			s.logger.Info("login denied, session active elsewhere", map[string]any{
				"user_id": user.ID,
				"ip_hash": hashIP(ip),
			})
			result = LoginResult{Status: statusCode(CodeSessionConflict)}
			return nil
		case ReclaimTakeOver:
			// Old session goes inactive in the same transaction that
			// inserts its replacement, so at most one is ever live.
			if err := s.repo.DeactivateSession(ctx, tx, existing.ID); err != nil {
				return err
			}
		}

		token, jti, expiresAt, err := s.tokens.Issue(user.ID, ip)
		if err != nil {
			return err
		}
		if _, err := s.repo.CreateSession(ctx, tx, user.ID, jti, ip, now, expiresAt); err != nil {
			return err
		}
		if err := s.repo.UpdateUserLogin(ctx, tx, user.ID, ip, now); err != nil {
			return err
		}
		if err := s.repo.RecordLoginAttempt(ctx, tx, username, ip, true, now); err != nil {
			return err
		}

		s.logger.Info("login successful", map[string]any{
			"user_id":     user.ID,
			"ip_hash":     hashIP(ip),
			"login_count": user.LoginCount + 1,
		})
		lastLogin := now
		result = LoginResult{
			Status: statusOK(),
			Data: &LoginData{
				UserID:                user.ID,
				Username:              user.Username,
				UserType:              userTypeOrTrial(user.UserType),
				SubscriptionExpiresAt: user.SubscriptionExpiresAt,
				WorkCount:             user.WorkCount,
				WorkUsed:              user.WorkUsed,
				LastLoginAt:           &lastLogin,
				IP:                    ip,
				Token:                 token,
			},
		}
		return nil
	})
	if err != nil {
		observability.LoginOutcomes.WithLabelValues("error").Inc()
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	observability.LoginOutcomes.WithLabelValues(loginOutcomeLabel(result.Status)).Inc()
	return result, nil
}

// Logout revokes the session behind the token. The token must verify and
// belong to the requesting user; anything else is a plain failure.
func (s *Service) Logout(ctx context.Context, userID, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	claims, state := s.tokens.Validate(token)
	if state != TokenValid {
		s.logger.Warn("logout with unusable token", map[string]any{"user_id": userID})
		return false, nil
	}
	if claims.Subject != userID {
		s.logger.Warn("logout user mismatch", map[string]any{"user_id": userID})
		return false, nil
	}

	revoked, err := s.repo.DeactivateSessionByJTI(ctx, s.repo.Pool(), claims.ID)
	if err != nil {
		return false, fmt.Errorf("logout: %w", err)
	}
	if revoked {
		s.logger.Info("logout successful", map[string]any{"user_id": userID})
	}
	return revoked, nil
}

// CheckSession is the heartbeat: it re-validates token, IP binding and the
// backing session row, then advances the activity clocks. Expired, invalid
// and missing all look the same to the caller.
func (s *Service) CheckSession(ctx context.Context, userID, token, ip string, currentTask, appVersion *string) (CheckSessionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	claims, state := s.tokens.Validate(token)
	if state != TokenValid {
		observability.SessionHeartbeats.WithLabelValues("denied").Inc()
		return CheckSessionResult{Status: statusCode(CodeSessionConflict)}, nil
	}
	if claims.Subject != userID {
		s.logger.Warn("session check user mismatch", map[string]any{"user_id": userID})
		observability.SessionHeartbeats.WithLabelValues("denied").Inc()
		return CheckSessionResult{Status: statusCode(CodeSessionConflict)}, nil
	}
	if claims.IP != ip {
		s.logger.Warn("session check ip mismatch", map[string]any{
			"token_ip_hash":   hashIP(claims.IP),
			"request_ip_hash": hashIP(ip),
		})
		observability.SessionHeartbeats.WithLabelValues("denied").Inc()
		return CheckSessionResult{Status: statusCode(CodeSessionConflict)}, nil
	}

	now := time.Now().UTC()
	var result CheckSessionResult
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		session, err := s.repo.GetActiveSessionByJTI(ctx, tx, claims.ID, now)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				result = CheckSessionResult{Status: statusCode(CodeSessionConflict)}
				return nil
			}
			return err
		}
		if err := s.repo.TouchSession(ctx, tx, session.ID, now); err != nil {
			return err
		}
		if err := s.repo.UpdateUserHeartbeat(ctx, tx, userID, now, currentTask, appVersion); err != nil {
			return err
		}
		result = CheckSessionResult{Status: statusOK()}
		return nil
	})
	if err != nil {
		observability.SessionHeartbeats.WithLabelValues("error").Inc()
		return CheckSessionResult{}, fmt.Errorf("check session: %w", err)
	}
	if result.Status.OK {
		observability.SessionHeartbeats.WithLabelValues("ok").Inc()
	} else {
		observability.SessionHeartbeats.WithLabelValues("denied").Inc()
	}
	return result, nil
}

// CheckWorkAvailable reports the user's quota. work_count of -1 means
// unlimited and always reports remaining -1.
func (s *Service) CheckWorkAvailable(ctx context.Context, userID, token string) (WorkAvailability, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	authorized, err := s.authorizeQuotaCall(ctx, userID, token)
	if err != nil {
		return WorkAvailability{}, fmt.Errorf("check work available: %w", err)
	}
	if !authorized {
		return WorkAvailability{}, nil
	}

	user, err := s.repo.GetUserByID(ctx, s.repo.Pool(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return WorkAvailability{}, nil
		}
		return WorkAvailability{}, fmt.Errorf("check work available: %w", err)
	}

	availability := WorkAvailability{
		Success:   true,
		WorkCount: user.WorkCount,
		WorkUsed:  user.WorkUsed,
	}
	if user.WorkCount == UnlimitedWork {
		availability.CanWork = true
		availability.Remaining = UnlimitedWork
	} else {
		availability.Remaining = max(0, user.WorkCount-user.WorkUsed)
		availability.CanWork = availability.Remaining > 0
	}
	return availability, nil
}

// UseWork spends one work unit. The decrement is a single conditional
// update, so concurrent calls cannot jointly overshoot the quota.
func (s *Service) UseWork(ctx context.Context, userID, token string) (UseWorkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	claims, state := s.tokens.Validate(token)
	if state != TokenValid {
		return UseWorkResult{Message: "Invalid token"}, nil
	}
	if claims.Subject != userID {
		return UseWorkResult{Message: "Token mismatch"}, nil
	}

	now := time.Now().UTC()
	var result UseWorkResult
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		// A revoked-but-cached client must not keep spending quota.
		if _, err := s.repo.GetActiveSessionByJTI(ctx, tx, claims.ID, now); err != nil {
			if errors.Is(err, ErrNotFound) {
				result = UseWorkResult{Message: "Session expired or revoked"}
				return nil
			}
			return err
		}

		workCount, workUsed, granted, err := s.repo.ConsumeWork(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				result = UseWorkResult{Message: "User not found"}
				return nil
			}
			return err
		}
		if !granted {
			remaining := 0
			used := workUsed
			result = UseWorkResult{
				Message:   "No remaining work count",
				Remaining: &remaining,
				Used:      &used,
			}
			return nil
		}

		remaining := UnlimitedWork
		if workCount != UnlimitedWork {
			remaining = max(0, workCount-workUsed)
		}
		used := workUsed
		s.logger.Info("work used", map[string]any{
			"user_id":   userID,
			"used":      used,
			"remaining": remaining,
		})
		observability.WorkUnitsConsumed.Inc()
		result = UseWorkResult{
			Success:   true,
			Message:   "Work count updated",
			Remaining: &remaining,
			Used:      &used,
		}
		return nil
	})
	if err != nil {
		return UseWorkResult{}, fmt.Errorf("use work: %w", err)
	}
	return result, nil
}

// authorizeQuotaCall applies the same token + live-session gate as every
// other protected call.
func (s *Service) authorizeQuotaCall(ctx context.Context, userID, token string) (bool, error) {
	claims, state := s.tokens.Validate(token)
	if state != TokenValid || claims.Subject != userID {
		return false, nil
	}
	if _, err := s.repo.GetActiveSessionByJTI(ctx, s.repo.Pool(), claims.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func loginOutcomeLabel(status Status) string {
	if status.OK {
		return "success"
	}
	return string(status.Code)
}

func userTypeOrTrial(userType string) string {
	if userType == "" {
		return "trial"
	}
	return userType
}
