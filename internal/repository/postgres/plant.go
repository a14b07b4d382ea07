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

// PlantRepository implements repository.PlantRepository using PostgreSQL.
type PlantRepository struct {
	db database.DBTX
}

// NewPlantRepository creates a new PostgreSQL-backed plant repository.
func NewPlantRepository(db database.DBTX) *PlantRepository {
	return &PlantRepository{db: db}
}

// Create inserts a new plant into the database.
func (r *PlantRepository) Create(ctx context.Context, p *domain.Plant) error {
	query := `
		INSERT INTO plants (user_id, name, description, image)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.UserID,
		p.Name,
		p.Description,
		p.Image,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plant: %w", err)
	}

	if p.NoteIDs == nil {
		p.NoteIDs = []int64{}
	}

	return nil
}

// GetByID retrieves a plant by its ID, including the IDs of its notes.
func (r *PlantRepository) GetByID(ctx context.Context, id int64) (*domain.Plant, error) {
	query := `
		SELECT id, user_id, name, description, image, created_at, updated_at
		FROM plants
		WHERE id = $1`

	var p domain.Plant
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.Image,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan plant: %w", err)
	}

	noteIDs, err := r.noteIDs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.NoteIDs = noteIDs

	return &p, nil
}

// ListByUserID returns all plants owned by the given user.
func (r *PlantRepository) ListByUserID(ctx context.Context, userID int64) ([]domain.Plant, error) {
	query := `
		SELECT id, user_id, name, description, image, created_at, updated_at
		FROM plants
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	plants := []domain.Plant{}
	for rows.Next() {
		var p domain.Plant
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Name,
			&p.Description,
			&p.Image,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plant row: %w", err)
		}
		plants = append(plants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plant rows: %w", err)
	}

	for i := range plants {
		noteIDs, err := r.noteIDs(ctx, plants[i].ID)
		if err != nil {
			return nil, err
		}
		plants[i].NoteIDs = noteIDs
	}

	return plants, nil
}

// Update modifies an existing plant in the database.
func (r *PlantRepository) Update(ctx context.Context, p *domain.Plant) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE plants
		SET name = $1, description = $2, image = $3, updated_at = $4
		WHERE id = $5`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Description,
		p.Image,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update plant: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("plant", p.ID)
	}

	return nil
}

// Delete removes a plant from the database by its ID.
func (r *PlantRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM plants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plant: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("plant", id)
	}

	return nil
}

// noteIDs returns the IDs of all notes anchored to the plant.
func (r *PlantRepository) noteIDs(ctx context.Context, plantID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM notes WHERE plant_id = $1 ORDER BY created_at`,
		plantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list plant note ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan note id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note ids: %w", err)
	}

	return ids, nil
}
