package repository

import (
	"context"

	"github.com/verdantlabs/verdant/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user and fills in its generated ID and timestamps.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns a page of users and the total count.
	List(ctx context.Context, limit, offset int) ([]domain.User, int64, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user from the store by their identifier.
	Delete(ctx context.Context, id int64) error
}

// SessionRepository defines the interface for per-device session persistence.
type SessionRepository interface {
	// Create inserts a new session row and fills in its generated ID.
	Create(ctx context.Context, session *domain.Session) error

	// GetActiveByRefreshToken retrieves the active session holding the given
	// refresh token. Rows found past their expiry are deleted and reported
	// as not found.
	GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)

	// GetActiveByAccessToken retrieves the user's active session holding the
	// given access token, if any.
	GetActiveByAccessToken(ctx context.Context, userID int64, accessToken string) (*domain.Session, error)

	// ListActiveByUserID returns the user's active unexpired sessions ordered
	// by most recent use.
	ListActiveByUserID(ctx context.Context, userID int64) ([]domain.Session, error)

	// GetByID retrieves a session by its identifier regardless of state.
	GetByID(ctx context.Context, id int64) (*domain.Session, error)

	// RotateTokens swaps the session's token pair in place, guarded by the
	// refresh token value the caller presented. Returns not found when the
	// guard no longer matches.
	RotateTokens(ctx context.Context, id int64, oldRefreshToken, newAccessToken, newRefreshToken string) error

	// Deactivate marks a session inactive without removing the row.
	Deactivate(ctx context.Context, id int64) error

	// DeactivateAllByUserID marks all of the user's sessions inactive except
	// the one holding exceptRefreshToken. An empty token excludes nothing.
	DeactivateAllByUserID(ctx context.Context, userID int64, exceptRefreshToken string) error

	// Delete removes a session row.
	Delete(ctx context.Context, id int64) error

	// SweepExpired removes all sessions past their expiry and returns the
	// number of rows removed.
	SweepExpired(ctx context.Context) (int64, error)
}

// PlantRepository defines the interface for plant persistence operations.
type PlantRepository interface {
	// Create inserts a new plant and fills in its generated ID and timestamps.
	Create(ctx context.Context, plant *domain.Plant) error

	// GetByID retrieves a plant by its identifier, including its note IDs.
	GetByID(ctx context.Context, id int64) (*domain.Plant, error)

	// ListByUserID returns all plants owned by the given user.
	ListByUserID(ctx context.Context, userID int64) ([]domain.Plant, error)

	// Update modifies an existing plant in the store.
	Update(ctx context.Context, plant *domain.Plant) error

	// Delete removes a plant from the store by its identifier.
	Delete(ctx context.Context, id int64) error
}

// NoteRepository defines the interface for note persistence operations.
type NoteRepository interface {
	// Create inserts a new note and fills in its generated ID and timestamps.
	Create(ctx context.Context, note *domain.Note) error

	// GetByID retrieves a note by its identifier.
	GetByID(ctx context.Context, id int64) (*domain.Note, error)

	// ListByPlantID returns all notes anchored to the given plant.
	ListByPlantID(ctx context.Context, plantID int64) ([]domain.Note, error)

	// ListByUserID returns all notes owned by the given user.
	ListByUserID(ctx context.Context, userID int64) ([]domain.Note, error)

	// Update modifies an existing note in the store.
	Update(ctx context.Context, note *domain.Note) error

	// Delete removes a note from the store by its identifier.
	Delete(ctx context.Context, id int64) error
}
