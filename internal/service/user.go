package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/event"
	"github.com/verdantlabs/verdant/internal/repository"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/pagination"
)

// UserService implements profile and admin user management.
type UserService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	producer    *event.Producer
	logger      *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		producer:    producer,
		logger:      logger,
	}
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns a page of users. Admin only, enforced at the route.
func (s *UserService) List(ctx context.Context, params pagination.Params) (pagination.Result[domain.User], error) {
	users, total, err := s.userRepo.List(ctx, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[domain.User]{}, fmt.Errorf("list users: %w", err)
	}
	return pagination.NewResult(users, int(total), params), nil
}

// Update applies a partial update to the user. Role and active-state changes
// are restricted to admin callers; a password change re-hashes and drops all
// of the user's other sessions.
func (s *UserService) Update(ctx context.Context, id int64, patch domain.UserPatch, callerRole string) (*domain.User, error) {
	if patch.Empty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Role != nil || patch.IsActive != nil {
		if callerRole != domain.RoleAdmin {
			return nil, apperrors.Forbidden("only admins may change role or active state")
		}
	}

	if patch.Email != nil {
		if *patch.Email == "" {
			return nil, apperrors.InvalidInput("email must not be empty")
		}
		user.Email = *patch.Email
	}
	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if patch.Role != nil {
		if !domain.IsValidRole(*patch.Role) {
			return nil, apperrors.InvalidInput("invalid role")
		}
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}

	passwordChanged := false
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
		passwordChanged = true
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if passwordChanged {
		if err := s.sessionRepo.DeactivateAllByUserID(ctx, user.ID, ""); err != nil {
			s.logger.ErrorContext(ctx, "failed to drop sessions after password change",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishUserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user updated", slog.Int64("user_id", user.ID))

	return user, nil
}

// Delete removes the user account and, through cascading deletes, all of its
// sessions, plants, and notes.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", id)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if err := s.producer.PublishUserDeleted(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deleted", slog.Int64("user_id", id))

	return nil
}
