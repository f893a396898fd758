package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a row the operation needs does not exist.
var ErrNotFound = errors.New("not found")

// Querier is the subset of pgx shared by pools and transactions. Repository
// methods take it explicitly so a caller can scope them to one transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Querier that can open transactions (pgxpool.Pool in production,
// a pgxmock pool in tests).
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying handle for reads that need no transaction.
func (r *Repository) Pool() Querier { return r.db }

// InTx runs fn inside a transaction, committing on nil and rolling back
// otherwise. Rollback after commit is a no-op.
func (r *Repository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LockLoginKeys takes transaction-scoped advisory locks on the username and
// IP. Every login for the same username or IP serializes on these, which
// makes the window count plus the subsequent attempt insert one atomic unit.
// Username first, then IP, so concurrent logins cannot deadlock.
func (r *Repository) LockLoginKeys(ctx context.Context, q Querier, username, ip string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('login:user:' || $1, 0))`, username); err != nil {
		return fmt.Errorf("lock username key: %w", err)
	}
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('login:ip:' || $1, 0))`, ip); err != nil {
		return fmt.Errorf("lock ip key: %w", err)
	}
	return nil
}

func (r *Repository) CountRecentFailures(ctx context.Context, q Querier, username string, since time.Time) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE username = $1 AND attempted_at > $2 AND success = FALSE
	`, username, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return count, nil
}

func (r *Repository) CountRecentAttempts(ctx context.Context, q Querier, ip string, since time.Time) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE ip_address = $1 AND attempted_at > $2
	`, ip, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ip attempts: %w", err)
	}
	return count, nil
}

// RecordLoginAttempt appends to the attempt ledger. Rows are never updated.
func (r *Repository) RecordLoginAttempt(ctx context.Context, q Querier, username, ip string, success bool, now time.Time) error {
	_, err := q.Exec(ctx, `
		INSERT INTO login_attempts (username, ip_address, attempted_at, success)
		VALUES ($1, $2, $3, $4)
	`, username, ip, now.UTC(), success)
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, q Querier, username string) (User, error) {
	return r.scanUser(q.QueryRow(ctx, `
		SELECT id, username, password_hash, user_type, is_active,
		       work_count, work_used, subscription_expires_at,
		       last_login_at, last_login_ip, login_count,
		       is_online, last_heartbeat, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username))
}

func (r *Repository) GetUserByID(ctx context.Context, q Querier, id string) (User, error) {
	return r.scanUser(q.QueryRow(ctx, `
		SELECT id, username, password_hash, user_type, is_active,
		       work_count, work_used, subscription_expires_at,
		       last_login_at, last_login_ip, login_count,
		       is_online, last_heartbeat, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id))
}

func (r *Repository) scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.UserType, &user.IsActive,
		&user.WorkCount, &user.WorkUsed, &user.SubscriptionExpiresAt,
		&user.LastLoginAt, &user.LastLoginIP, &user.LoginCount,
		&user.IsOnline, &user.LastHeartbeat, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// GetActiveSessionForUpdate loads the user's live session under a row lock,
// so reclaim arbitration and the replacement insert are serialized per user.
func (r *Repository) GetActiveSessionForUpdate(ctx context.Context, q Querier, userID string, now time.Time) (Session, error) {
	var session Session
	err := q.QueryRow(ctx, `
		SELECT id, user_id, token_jti, ip_address, created_at, expires_at, is_active, last_activity_at
		FROM sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, userID, now.UTC()).Scan(
		&session.ID, &session.UserID, &session.TokenJTI, &session.IPAddress,
		&session.CreatedAt, &session.ExpiresAt, &session.IsActive, &session.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("lock active session: %w", err)
	}
	return session, nil
}

func (r *Repository) GetActiveSessionByJTI(ctx context.Context, q Querier, jti string, now time.Time) (Session, error) {
	var session Session
	err := q.QueryRow(ctx, `
		SELECT id, user_id, token_jti, ip_address, created_at, expires_at, is_active, last_activity_at
		FROM sessions
		WHERE token_jti = $1 AND is_active = TRUE AND expires_at > $2
	`, jti, now.UTC()).Scan(
		&session.ID, &session.UserID, &session.TokenJTI, &session.IPAddress,
		&session.CreatedAt, &session.ExpiresAt, &session.IsActive, &session.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("query session by jti: %w", err)
	}
	return session, nil
}

func (r *Repository) DeactivateSession(ctx context.Context, q Querier, sessionID string) error {
	_, err := q.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE
		WHERE id = $1
	`, sessionID)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// DeactivateSessionByJTI flips the live session for a jti and reports
// whether a row actually changed.
func (r *Repository) DeactivateSessionByJTI(ctx context.Context, q Querier, jti string) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE
		WHERE token_jti = $1 AND is_active = TRUE
	`, jti)
	if err != nil {
		return false, fmt.Errorf("deactivate session by jti: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) CreateSession(ctx context.Context, q Querier, userID, jti, ip string, now, expiresAt time.Time) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	session := Session{
		ID:             id.String(),
		UserID:         userID,
		TokenJTI:       jti,
		IPAddress:      ip,
		CreatedAt:      now.UTC(),
		ExpiresAt:      expiresAt.UTC(),
		IsActive:       true,
		LastActivityAt: now.UTC(),
	}

	_, err = q.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token_jti, ip_address, created_at, expires_at, is_active, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $5)
	`, session.ID, userID, jti, ip, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// TouchSession advances the heartbeat clock on a session.
func (r *Repository) TouchSession(ctx context.Context, q Querier, sessionID string, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE sessions
		SET last_activity_at = $2
		WHERE id = $1
	`, sessionID, now.UTC())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *Repository) UpdateUserLogin(ctx context.Context, q Querier, userID, ip string, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE users
		SET last_login_at = $2, last_login_ip = $3, login_count = login_count + 1, updated_at = $2
		WHERE id = $1
	`, userID, now.UTC(), ip)
	if err != nil {
		return fmt.Errorf("update user login: %w", err)
	}
	return nil
}

// UpdateUserHeartbeat records presence on the account row. currentTask and
// appVersion are only written when the client sent them.
func (r *Repository) UpdateUserHeartbeat(ctx context.Context, q Querier, userID string, now time.Time, currentTask, appVersion *string) error {
	_, err := q.Exec(ctx, `
		UPDATE users
		SET last_heartbeat = $2,
		    is_online = TRUE,
		    current_task = COALESCE($3, current_task),
		    app_version = COALESCE($4, app_version)
		WHERE id = $1
	`, userID, now.UTC(), currentTask, appVersion)
	if err != nil {
		return fmt.Errorf("update user heartbeat: %w", err)
	}
	return nil
}

// ConsumeWork spends one work unit if any remain. The guard and the
// increment are one statement, so two concurrent calls cannot both pass a
// remaining==1 check. Returns the post-update counters and whether the
// unit was granted; when denied the counters reflect the untouched row.
func (r *Repository) ConsumeWork(ctx context.Context, q Querier, userID string) (workCount, workUsed int, granted bool, err error) {
	err = q.QueryRow(ctx, `
		UPDATE users
		SET work_used = work_used + 1, updated_at = NOW()
		WHERE id = $1 AND (work_count = -1 OR work_used < work_count)
		RETURNING work_count, work_used
	`, userID).Scan(&workCount, &workUsed)
	if err == nil {
		return workCount, workUsed, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, fmt.Errorf("consume work: %w", err)
	}

	// Either the quota is exhausted or the user is gone; read back to tell.
	err = q.QueryRow(ctx, `
		SELECT work_count, work_used FROM users WHERE id = $1
	`, userID).Scan(&workCount, &workUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, ErrNotFound
		}
		return 0, 0, false, fmt.Errorf("read work counters: %w", err)
	}
	return workCount, workUsed, false, nil
}

// MarkStaleUsersOffline clears the online flag for users whose last
// heartbeat is older than the threshold. Used by the presence sweep.
func (r *Repository) MarkStaleUsersOffline(ctx context.Context, threshold time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET is_online = FALSE
		WHERE is_online = TRUE AND (last_heartbeat IS NULL OR last_heartbeat < $1)
	`, threshold.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark stale users offline: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStaleSessions removes long-expired and long-deactivated session
// rows in bounded batches. The request path never deletes sessions.
func (r *Repository) DeleteStaleSessions(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		WITH stale AS (
			SELECT id
			FROM sessions
			WHERE expires_at < $1 OR (is_active = FALSE AND created_at < $1)
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM sessions s
		USING stale
		WHERE s.id = stale.id
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldLoginAttempts trims the attempt ledger past the retention window.
func (r *Repository) DeleteOldLoginAttempts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		WITH stale AS (
			SELECT id
			FROM login_attempts
			WHERE attempted_at < $1
			ORDER BY attempted_at ASC
			LIMIT $2
		)
		DELETE FROM login_attempts t
		USING stale
		WHERE t.id = stale.id
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
