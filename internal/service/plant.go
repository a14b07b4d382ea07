package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/imagestore"
	"github.com/verdantlabs/verdant/internal/repository"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

// CreatePlantInput holds the parameters for creating a plant.
type CreatePlantInput struct {
	Name        string
	Description string
}

// PlantService implements plant CRUD with per-user ownership checks.
type PlantService struct {
	plantRepo repository.PlantRepository
	images    *imagestore.Store
	logger    *slog.Logger
}

// NewPlantService creates a new plant service.
func NewPlantService(plantRepo repository.PlantRepository, images *imagestore.Store, logger *slog.Logger) *PlantService {
	return &PlantService{
		plantRepo: plantRepo,
		images:    images,
		logger:    logger,
	}
}

// Create adds a plant owned by the given user.
func (s *PlantService) Create(ctx context.Context, userID int64, input CreatePlantInput) (*domain.Plant, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	plant := &domain.Plant{
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
	}

	if err := s.plantRepo.Create(ctx, plant); err != nil {
		return nil, fmt.Errorf("create plant: %w", err)
	}

	s.logger.InfoContext(ctx, "plant created",
		slog.Int64("plant_id", plant.ID),
		slog.Int64("user_id", userID),
	)

	return plant, nil
}

// Get retrieves one of the user's plants. A plant owned by someone else is
// forbidden rather than hidden, matching the update and delete paths.
func (s *PlantService) Get(ctx context.Context, userID, plantID int64) (*domain.Plant, error) {
	return s.owned(ctx, userID, plantID)
}

// List returns all plants owned by the user.
func (s *PlantService) List(ctx context.Context, userID int64) ([]domain.Plant, error) {
	plants, err := s.plantRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	return plants, nil
}

// Update applies a partial update to one of the user's plants.
func (s *PlantService) Update(ctx context.Context, userID, plantID int64, patch domain.PlantPatch) (*domain.Plant, error) {
	if patch.Empty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	plant, err := s.owned(ctx, userID, plantID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		plant.Name = *patch.Name
	}
	if patch.Description != nil {
		plant.Description = *patch.Description
	}

	if err := s.plantRepo.Update(ctx, plant); err != nil {
		return nil, err
	}

	return plant, nil
}

// Delete removes one of the user's plants along with its stored image.
func (s *PlantService) Delete(ctx context.Context, userID, plantID int64) error {
	plant, err := s.owned(ctx, userID, plantID)
	if err != nil {
		return err
	}

	if err := s.plantRepo.Delete(ctx, plantID); err != nil {
		return err
	}

	if plant.Image != "" {
		if err := s.images.Remove(plantID, plant.Image); err != nil {
			s.logger.WarnContext(ctx, "failed to remove plant image",
				slog.Int64("plant_id", plantID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "plant deleted",
		slog.Int64("plant_id", plantID),
		slog.Int64("user_id", userID),
	)

	return nil
}

// SetImage stores an uploaded image for the plant, replacing any previous one.
func (s *PlantService) SetImage(ctx context.Context, userID, plantID int64, filename string, r io.Reader) (*domain.Plant, error) {
	plant, err := s.owned(ctx, userID, plantID)
	if err != nil {
		return nil, err
	}

	stored, err := s.images.Save(plantID, filename, r)
	if err != nil {
		return nil, err
	}

	if plant.Image != "" && plant.Image != stored {
		if err := s.images.Remove(plantID, plant.Image); err != nil {
			s.logger.WarnContext(ctx, "failed to remove previous plant image",
				slog.Int64("plant_id", plantID),
				slog.String("error", err.Error()),
			)
		}
	}

	plant.Image = stored
	if err := s.plantRepo.Update(ctx, plant); err != nil {
		return nil, err
	}

	return plant, nil
}

// ImagePath resolves the on-disk path of the plant's image.
func (s *PlantService) ImagePath(ctx context.Context, userID, plantID int64) (string, error) {
	plant, err := s.owned(ctx, userID, plantID)
	if err != nil {
		return "", err
	}
	if plant.Image == "" {
		return "", apperrors.NotFound("plant image", plantID)
	}
	return s.images.Path(plantID, plant.Image), nil
}

// owned fetches a plant and enforces that the caller owns it.
func (s *PlantService) owned(ctx context.Context, userID, plantID int64) (*domain.Plant, error) {
	plant, err := s.plantRepo.GetByID(ctx, plantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("plant", plantID)
		}
		return nil, fmt.Errorf("get plant: %w", err)
	}
	if plant.UserID != userID {
		return nil, apperrors.Forbidden("you do not own this plant")
	}
	return plant, nil
}
