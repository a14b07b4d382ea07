package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/verdant/internal/domain"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

func newSessionTestFixture(t *testing.T) (*SessionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewSessionRepository(mock)
	return repo, mock
}

func sampleSession() *domain.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Session{
		ID:           31,
		UserID:       7,
		RefreshToken: "refresh-token-abc",
		AccessToken:  "access-token-abc",
		UserAgent:    "Mozilla/5.0",
		IPAddress:    "203.0.113.7",
		DeviceInfo:   domain.DeviceInfo{Browser: "Chrome", OS: "macOS", Desktop: true},
		IsActive:     true,
		ExpiresAt:    now.Add(168 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func sessionColumnNames() []string {
	return []string{
		"id", "user_id", "refresh_token", "access_token", "user_agent",
		"ip_address", "device_info", "is_active", "expires_at",
		"created_at", "updated_at",
	}
}

func sessionRow(s *domain.Session) *pgxmock.Rows {
	return pgxmock.NewRows(sessionColumnNames()).AddRow(
		s.ID, s.UserID, s.RefreshToken, s.AccessToken, s.UserAgent,
		s.IPAddress, []byte(`{"browser":"Chrome","os":"macOS","desktop":true}`),
		s.IsActive, s.ExpiresAt, s.CreatedAt, s.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestSessionRepository_Create_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC()
	s := sampleSession()
	s.ID = 0

	mock.ExpectQuery("INSERT INTO sessions").
		WithArgs(s.UserID, s.RefreshToken, s.AccessToken, s.UserAgent,
			s.IPAddress, pgxmock.AnyArg(), s.IsActive, s.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(31), now, now))

	err := repo.Create(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, int64(31), s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Create_DuplicateRefreshToken(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	s := sampleSession()

	mock.ExpectQuery("INSERT INTO sessions").
		WithArgs(s.UserID, s.RefreshToken, s.AccessToken, s.UserAgent,
			s.IPAddress, pgxmock.AnyArg(), s.IsActive, s.ExpiresAt).
		WillReturnError(fmt.Errorf("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "expected ErrConflict, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetActiveByRefreshToken
// ---------------------------------------------------------------------------

func TestSessionRepository_GetActiveByRefreshToken_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	s := sampleSession()

	// The expired-row delete runs before the select.
	mock.ExpectExec("DELETE FROM sessions WHERE refresh_token = .+ AND expires_at").
		WithArgs(s.RefreshToken).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE refresh_token = .+ AND is_active = TRUE AND expires_at > NOW").
		WithArgs(s.RefreshToken).
		WillReturnRows(sessionRow(s))

	got, err := repo.GetActiveByRefreshToken(context.Background(), s.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, "Chrome", got.DeviceInfo.Browser)
	assert.True(t, got.DeviceInfo.Desktop)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetActiveByRefreshToken_ExpiredRowDeleted(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	// The row was past its expiry: the delete removes it and the select
	// then finds nothing.
	mock.ExpectExec("DELETE FROM sessions WHERE refresh_token = .+ AND expires_at").
		WithArgs("expired-token").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE refresh_token = .+ AND is_active = TRUE AND expires_at > NOW").
		WithArgs("expired-token").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetActiveByRefreshToken(context.Background(), "expired-token")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetActiveByRefreshToken_Unknown(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM sessions WHERE refresh_token = .+ AND expires_at").
		WithArgs("unknown-token").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE refresh_token = .+ AND is_active = TRUE AND expires_at > NOW").
		WithArgs("unknown-token").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetActiveByRefreshToken(context.Background(), "unknown-token")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetActiveByAccessToken / GetByID / ListActiveByUserID
// ---------------------------------------------------------------------------

func TestSessionRepository_GetActiveByAccessToken_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	s := sampleSession()

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE user_id = .+ AND access_token =").
		WithArgs(s.UserID, s.AccessToken).
		WillReturnRows(sessionRow(s))

	got, err := repo.GetActiveByAccessToken(context.Background(), s.UserID, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id =").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), 404)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListActiveByUserID_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	s := sampleSession()

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE user_id = .+ ORDER BY updated_at DESC").
		WithArgs(s.UserID).
		WillReturnRows(sessionRow(s))

	sessions, err := repo.ListActiveByUserID(context.Background(), s.UserID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID, sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListActiveByUserID_Empty(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE user_id =").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()))

	sessions, err := repo.ListActiveByUserID(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// RotateTokens
// ---------------------------------------------------------------------------

func TestSessionRepository_RotateTokens_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE sessions SET access_token = .+, refresh_token =").
		WithArgs("new-access", "new-refresh", pgxmock.AnyArg(), int64(31), "old-refresh").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.RotateTokens(context.Background(), 31, "old-refresh", "new-access", "new-refresh")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_RotateTokens_GuardMismatch(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	// Row exists but another refresh already swapped the guard token, so
	// zero rows match.
	mock.ExpectExec("UPDATE sessions SET access_token = .+, refresh_token =").
		WithArgs("new-access", "new-refresh", pgxmock.AnyArg(), int64(31), "already-rotated").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.RotateTokens(context.Background(), 31, "already-rotated", "new-access", "new-refresh")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_RotateTokens_RefreshTokenCollision(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE sessions SET access_token = .+, refresh_token =").
		WithArgs("new-access", "colliding-refresh", pgxmock.AnyArg(), int64(31), "old-refresh").
		WillReturnError(fmt.Errorf("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.RotateTokens(context.Background(), 31, "old-refresh", "new-access", "colliding-refresh")
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "expected ErrConflict, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Deactivate / DeactivateAllByUserID / Delete
// ---------------------------------------------------------------------------

func TestSessionRepository_Deactivate_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").
		WithArgs(pgxmock.AnyArg(), int64(31)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Deactivate(context.Background(), 31)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Deactivate_NotFound(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").
		WithArgs(pgxmock.AnyArg(), int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Deactivate(context.Background(), 404)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeactivateAllByUserID_WithException(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").
		WithArgs(pgxmock.AnyArg(), int64(7), "keep-this-refresh").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	err := repo.DeactivateAllByUserID(context.Background(), 7, "keep-this-refresh")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeactivateAllByUserID_NoException(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").
		WithArgs(pgxmock.AnyArg(), int64(7), "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	err := repo.DeactivateAllByUserID(context.Background(), 7, "")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM sessions WHERE id =").
		WithArgs(int64(404)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), 404)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// SweepExpired
// ---------------------------------------------------------------------------

func TestSessionRepository_SweepExpired_CountsRows(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := repo.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_SweepExpired_NothingToDo(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	n, err := repo.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
