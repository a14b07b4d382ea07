package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/pkg/database"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

// NoteRepository implements repository.NoteRepository using PostgreSQL.
type NoteRepository struct {
	db database.DBTX
}

// NewNoteRepository creates a new PostgreSQL-backed note repository.
func NewNoteRepository(db database.DBTX) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a new note into the database.
func (r *NoteRepository) Create(ctx context.Context, n *domain.Note) error {
	query := `
		INSERT INTO notes (user_id, plant_id, title, content, day)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		n.UserID,
		n.PlantID,
		n.Title,
		n.Content,
		n.Day,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	return nil
}

// GetByID retrieves a note by its ID.
func (r *NoteRepository) GetByID(ctx context.Context, id int64) (*domain.Note, error) {
	query := `
		SELECT id, user_id, plant_id, title, content, day, created_at, updated_at
		FROM notes
		WHERE id = $1`

	var n domain.Note
	err := r.db.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.UserID,
		&n.PlantID,
		&n.Title,
		&n.Content,
		&n.Day,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}

	return &n, nil
}

// ListByPlantID returns all notes anchored to the given plant.
func (r *NoteRepository) ListByPlantID(ctx context.Context, plantID int64) ([]domain.Note, error) {
	query := `
		SELECT id, user_id, plant_id, title, content, day, created_at, updated_at
		FROM notes
		WHERE plant_id = $1
		ORDER BY created_at`

	return r.listNotes(ctx, query, plantID)
}

// ListByUserID returns all notes owned by the given user.
func (r *NoteRepository) ListByUserID(ctx context.Context, userID int64) ([]domain.Note, error) {
	query := `
		SELECT id, user_id, plant_id, title, content, day, created_at, updated_at
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return r.listNotes(ctx, query, userID)
}

// Update modifies an existing note in the database.
func (r *NoteRepository) Update(ctx context.Context, n *domain.Note) error {
	n.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE notes
		SET plant_id = $1, title = $2, content = $3, day = $4, updated_at = $5
		WHERE id = $6`

	ct, err := r.db.Exec(ctx, query,
		n.PlantID,
		n.Title,
		n.Content,
		n.Day,
		n.UpdatedAt,
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", n.ID)
	}

	return nil
}

// Delete removes a note from the database by its ID.
func (r *NoteRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", id)
	}

	return nil
}

func (r *NoteRepository) listNotes(ctx context.Context, query string, args ...any) ([]domain.Note, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.PlantID,
			&n.Title,
			&n.Content,
			&n.Day,
			&n.CreatedAt,
			&n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}

	return notes, nil
}
