package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/pkg/database"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

const sessionColumns = `id, user_id, refresh_token, access_token, user_agent, ip_address, device_info, is_active, expires_at, created_at, updated_at`

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	deviceInfo, err := json.Marshal(s.DeviceInfo)
	if err != nil {
		return fmt.Errorf("marshal device info: %w", err)
	}

	query := `
		INSERT INTO sessions (user_id, refresh_token, access_token, user_agent, ip_address, device_info, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		s.UserID,
		s.RefreshToken,
		s.AccessToken,
		s.UserAgent,
		s.IPAddress,
		deviceInfo,
		s.IsActive,
		s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("refresh token already in use")
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetActiveByRefreshToken returns the active session holding the given
// refresh token. An expired row is deleted on sight and reported as not
// found; the select repeats the expiry filter so a row lapsing between the
// two statements is never returned as usable.
func (r *SessionRepository) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE refresh_token = $1 AND expires_at <= NOW()`,
		refreshToken,
	)
	if err != nil {
		return nil, fmt.Errorf("delete expired session: %w", err)
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE refresh_token = $1 AND is_active = TRUE AND expires_at > NOW()`

	return r.scanSession(ctx, query, refreshToken)
}

// GetActiveByAccessToken returns the user's active unexpired session holding
// the given access token.
func (r *SessionRepository) GetActiveByAccessToken(ctx context.Context, userID int64, accessToken string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND access_token = $2 AND is_active = TRUE AND expires_at > NOW()`

	return r.scanSession(ctx, query, userID, accessToken)
}

// GetByID retrieves a session by its ID regardless of state.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1`

	return r.scanSession(ctx, query, id)
}

// ListActiveByUserID returns the user's active unexpired sessions, most
// recently used first.
func (r *SessionRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return sessions, nil
}

// RotateTokens swaps the session's token pair in place, compare-and-swap
// guarded by the refresh token the caller presented. When the guard no longer
// matches the row (a concurrent refresh won), zero rows are updated and not
// found is returned.
func (r *SessionRepository) RotateTokens(ctx context.Context, id int64, oldRefreshToken, newAccessToken, newRefreshToken string) error {
	query := `
		UPDATE sessions
		SET access_token = $1, refresh_token = $2, updated_at = $3
		WHERE id = $4 AND refresh_token = $5`

	ct, err := r.db.Exec(ctx, query,
		newAccessToken,
		newRefreshToken,
		time.Now().UTC(),
		id,
		oldRefreshToken,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("refresh token already in use")
		}
		return fmt.Errorf("rotate session tokens: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Deactivate marks a session inactive, keeping the row for audit.
func (r *SessionRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE sessions SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", id)
	}

	return nil
}

// DeactivateAllByUserID marks all of the user's sessions inactive except the
// one holding exceptRefreshToken. An empty token deactivates everything.
func (r *SessionRepository) DeactivateAllByUserID(ctx context.Context, userID int64, exceptRefreshToken string) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, updated_at = $1
		WHERE user_id = $2 AND ($3 = '' OR refresh_token <> $3)`

	_, err := r.db.Exec(ctx, query, time.Now().UTC(), userID, exceptRefreshToken)
	if err != nil {
		return fmt.Errorf("deactivate user sessions: %w", err)
	}

	return nil
}

// Delete removes a session row.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", id)
	}

	return nil
}

// SweepExpired removes every session past its expiry. An empty sweep is not
// an error.
func (r *SessionRepository) SweepExpired(ctx context.Context) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}

	return ct.RowsAffected(), nil
}

// scanSession executes a query expected to return a single session row.
func (r *SessionRepository) scanSession(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, query, args...)
	s, err := scanSessionFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func scanSessionRow(rows pgx.Rows) (*domain.Session, error) {
	s, err := scanSessionFrom(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return s, nil
}

func scanSessionFrom(scan func(dest ...any) error) (*domain.Session, error) {
	var (
		s          domain.Session
		deviceInfo []byte
	)
	if err := scan(
		&s.ID,
		&s.UserID,
		&s.RefreshToken,
		&s.AccessToken,
		&s.UserAgent,
		&s.IPAddress,
		&deviceInfo,
		&s.IsActive,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(deviceInfo) > 0 {
		if err := json.Unmarshal(deviceInfo, &s.DeviceInfo); err != nil {
			return nil, fmt.Errorf("unmarshal device info: %w", err)
		}
	}

	return &s, nil
}
