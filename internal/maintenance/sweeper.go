package maintenance

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"authcore/internal/auth"
	"authcore/internal/observability"
)

// SweepResult reports what one pass cleaned up.
type SweepResult struct {
	MarkedOffline        int64 `json:"marked_offline"`
	DeletedSessions      int64 `json:"deleted_sessions"`
	DeletedLoginAttempts int64 `json:"deleted_login_attempts"`
}

// Sweeper is the periodic collaborator around the auth core: it marks
// silent users offline and trims session and attempt rows past retention.
// The request path itself never deletes anything.
type Sweeper struct {
	repo   *auth.Repository
	logger *observability.Logger

	presenceOfflineAfter  time.Duration
	sessionRetention      time.Duration
	loginAttemptRetention time.Duration
	batchSize             int
}

func NewSweeper(repo *auth.Repository, logger *observability.Logger, presenceOfflineAfter, sessionRetention, loginAttemptRetention time.Duration, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 500
	}
	if presenceOfflineAfter <= 0 {
		presenceOfflineAfter = 2 * time.Minute
	}
	if sessionRetention <= 0 {
		sessionRetention = 7 * 24 * time.Hour
	}
	if loginAttemptRetention <= 0 {
		loginAttemptRetention = 30 * 24 * time.Hour
	}
	return &Sweeper{
		repo:                  repo,
		logger:                logger,
		presenceOfflineAfter:  presenceOfflineAfter,
		sessionRetention:      sessionRetention,
		loginAttemptRetention: loginAttemptRetention,
		batchSize:             batchSize,
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	now := time.Now().UTC()

	markedOffline, err := s.repo.MarkStaleUsersOffline(ctx, now.Add(-s.presenceOfflineAfter))
	if err != nil {
		return SweepResult{}, err
	}

	deletedSessions, err := s.repo.DeleteStaleSessions(ctx, now.Add(-s.sessionRetention), s.batchSize)
	if err != nil {
		return SweepResult{}, err
	}
	observability.SweepDeletions.WithLabelValues("sessions").Add(float64(deletedSessions))

	deletedAttempts, err := s.repo.DeleteOldLoginAttempts(ctx, now.Add(-s.loginAttemptRetention), s.batchSize)
	if err != nil {
		return SweepResult{}, err
	}
	observability.SweepDeletions.WithLabelValues("login_attempts").Add(float64(deletedAttempts))

	result := SweepResult{
		MarkedOffline:        markedOffline,
		DeletedSessions:      deletedSessions,
		DeletedLoginAttempts: deletedAttempts,
	}
	s.logger.Info("sweep completed", map[string]any{
		"marked_offline":         result.MarkedOffline,
		"deleted_sessions":       result.DeletedSessions,
		"deleted_login_attempts": result.DeletedLoginAttempts,
	})
	return result, nil
}

// Run sweeps on the given interval until the context is cancelled. A
// failed pass is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				sentry.CaptureException(err)
				s.logger.Error("sweep failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
