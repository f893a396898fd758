package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestConsumeWorkGranted(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"work_count", "work_used"}).AddRow(5, 5))

	workCount, workUsed, granted, err := repo.ConsumeWork(context.Background(), mock, "user-1")
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 5, workCount)
	assert.Equal(t, 5, workUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeWorkExhausted(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("user-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT work_count, work_used FROM users`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"work_count", "work_used"}).AddRow(5, 5))

	workCount, workUsed, granted, err := repo.ConsumeWork(context.Background(), mock, "user-1")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 5, workCount)
	assert.Equal(t, 5, workUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeWorkUserMissing(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT work_count, work_used FROM users`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, _, _, err := repo.ConsumeWork(context.Background(), mock, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRecentFailures(t *testing.T) {
	mock, repo := newMockRepo(t)
	since := time.Now().UTC().Add(-15 * time.Minute)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("alice", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountRecentFailures(context.Background(), mock, "alice", since)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`FROM users\s+WHERE username`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByUsername(context.Background(), mock, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateSessionByJTI(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE sessions`).
		WithArgs("jti-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	revoked, err := repo.DeactivateSessionByJTI(context.Background(), mock, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mock.ExpectExec(`UPDATE sessions`).
		WithArgs("jti-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	revoked, err = repo.DeactivateSessionByJTI(context.Background(), mock, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.InTx(context.Background(), func(tx pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxCommits(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
