package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/repository"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

// CreateNoteInput holds the parameters for creating a note.
type CreateNoteInput struct {
	Title   string
	Content string
	PlantID *int64
	Day     *time.Time
}

// NoteService implements journal note CRUD with per-user ownership checks.
type NoteService struct {
	noteRepo  repository.NoteRepository
	plantRepo repository.PlantRepository
	logger    *slog.Logger
}

// NewNoteService creates a new note service.
func NewNoteService(noteRepo repository.NoteRepository, plantRepo repository.PlantRepository, logger *slog.Logger) *NoteService {
	return &NoteService{
		noteRepo:  noteRepo,
		plantRepo: plantRepo,
		logger:    logger,
	}
}

// Create adds a note. Every note must be anchored to a plant, a day, or both;
// a plant anchor must point at one of the caller's own plants.
func (s *NoteService) Create(ctx context.Context, userID int64, input CreateNoteInput) (*domain.Note, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.PlantID == nil && input.Day == nil {
		return nil, apperrors.InvalidInput("plant_id or day is required")
	}

	if input.PlantID != nil {
		if err := s.checkPlantOwnership(ctx, userID, *input.PlantID); err != nil {
			return nil, err
		}
	}

	note := &domain.Note{
		UserID:  userID,
		PlantID: input.PlantID,
		Title:   input.Title,
		Content: input.Content,
		Day:     input.Day,
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.InfoContext(ctx, "note created",
		slog.Int64("note_id", note.ID),
		slog.Int64("user_id", userID),
	)

	return note, nil
}

// Get retrieves one of the user's notes.
func (s *NoteService) Get(ctx context.Context, userID, noteID int64) (*domain.Note, error) {
	return s.owned(ctx, userID, noteID)
}

// List returns all of the user's notes.
func (s *NoteService) List(ctx context.Context, userID int64) ([]domain.Note, error) {
	notes, err := s.noteRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// ListByPlant returns the notes anchored to one of the user's plants.
func (s *NoteService) ListByPlant(ctx context.Context, userID, plantID int64) ([]domain.Note, error) {
	if err := s.checkPlantOwnership(ctx, userID, plantID); err != nil {
		return nil, err
	}

	notes, err := s.noteRepo.ListByPlantID(ctx, plantID)
	if err != nil {
		return nil, fmt.Errorf("list plant notes: %w", err)
	}
	return notes, nil
}

// Update applies a partial update to one of the user's notes.
func (s *NoteService) Update(ctx context.Context, userID, noteID int64, patch domain.NotePatch) (*domain.Note, error) {
	if patch.Empty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	note, err := s.owned(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, apperrors.InvalidInput("title must not be empty")
		}
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.PlantID != nil {
		if err := s.checkPlantOwnership(ctx, userID, *patch.PlantID); err != nil {
			return nil, err
		}
		note.PlantID = patch.PlantID
	}
	if patch.Day != nil {
		note.Day = patch.Day
	}

	if !note.Anchored() {
		return nil, apperrors.InvalidInput("plant_id or day is required")
	}

	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, err
	}

	return note, nil
}

// Delete removes one of the user's notes.
func (s *NoteService) Delete(ctx context.Context, userID, noteID int64) error {
	if _, err := s.owned(ctx, userID, noteID); err != nil {
		return err
	}

	if err := s.noteRepo.Delete(ctx, noteID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "note deleted",
		slog.Int64("note_id", noteID),
		slog.Int64("user_id", userID),
	)

	return nil
}

func (s *NoteService) owned(ctx context.Context, userID, noteID int64) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("note", noteID)
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	if note.UserID != userID {
		return nil, apperrors.Forbidden("you do not own this note")
	}
	return note, nil
}

func (s *NoteService) checkPlantOwnership(ctx context.Context, userID, plantID int64) error {
	plant, err := s.plantRepo.GetByID(ctx, plantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("plant", plantID)
		}
		return fmt.Errorf("get plant: %w", err)
	}
	if plant.UserID != userID {
		return apperrors.Forbidden("you do not own this plant")
	}
	return nil
}
