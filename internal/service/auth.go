package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/verdantlabs/verdant/internal/auth"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/event"
	"github.com/verdantlabs/verdant/internal/repository"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// msgInvalidSession is the single message returned for a refresh against a
// missing, inactive, or expired session. One message for all three keeps the
// endpoint from leaking which case the caller hit.
const msgInvalidSession = "invalid or expired session"

// ClientMeta is the request metadata captured when a session is created.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// AuthService implements registration, login, token refresh, and the session
// lifecycle around them.
type AuthService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      *auth.TokenManager
	producer    *event.Producer
	logger      *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens *auth.TokenManager,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		producer:    producer,
		logger:      logger,
	}
}

// Register creates a new account, opens its first session, and returns the
// user with a fresh token pair.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta ClientMeta) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        input.Email,
		PasswordHash: string(hashed),
		FullName:     input.FullName,
		Role:         domain.RoleUser,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Login authenticates credentials and opens a new session for the device.
func (s *AuthService) Login(ctx context.Context, input LoginInput, meta ClientMeta) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("account is deactivated")
	}

	tokens, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("ip", meta.IPAddress),
	)

	return user, tokens, nil
}

// Refresh rotates the session's token pair in place. The same uniform
// unauthorized outcome covers an unknown, inactive, or expired session, and
// the loser of a concurrent refresh race on the same session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, apperrors.Unauthorized("refresh token is required")
	}

	if _, err := s.tokens.Verify(refreshToken, auth.KindRefresh); err != nil {
		return nil, nil, apperrors.Unauthorized(tokenErrorMessage(err))
	}

	session, err := s.sessionRepo.GetActiveByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized(msgInvalidSession)
		}
		return nil, nil, fmt.Errorf("get session by refresh token: %w", err)
	}

	// Identity comes from the user row, not the old token, so a refresh
	// picks up email or role changes made since the last issue.
	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized(msgInvalidSession)
		}
		return nil, nil, fmt.Errorf("get user for refresh: %w", err)
	}
	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("account is deactivated")
	}

	newAccess, newRefresh, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.sessionRepo.RotateTokens(ctx, session.ID, refreshToken, newAccess, newRefresh); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// A concurrent refresh already rotated this session.
			return nil, nil, apperrors.Unauthorized(msgInvalidSession)
		}
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "session refreshed",
		slog.Int64("user_id", user.ID),
		slog.Int64("session_id", session.ID),
	)

	return user, &domain.TokenPair{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}

// Logout deletes the session holding the presented access token. It always
// succeeds: logging out an already-dead session is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID int64, accessToken string) error {
	session, err := s.sessionRepo.GetActiveByAccessToken(ctx, userID, accessToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get session for logout: %w", err)
	}

	if err := s.sessionRepo.Delete(ctx, session.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("delete session on logout: %w", err)
	}

	if err := s.producer.PublishSessionRevoked(ctx, session.ID, userID, "logout"); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish session.revoked event",
			slog.Int64("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.Int64("user_id", userID),
		slog.Int64("session_id", session.ID),
	)

	return nil
}

// ListSessions returns the user's active sessions, most recently used first.
func (s *AuthService) ListSessions(ctx context.Context, userID int64) ([]domain.Session, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// TerminateSession deactivates one of the user's own sessions. A session
// belonging to someone else reads as not found.
func (s *AuthService) TerminateSession(ctx context.Context, userID, sessionID int64) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("session", sessionID)
		}
		return fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return apperrors.NotFound("session", sessionID)
	}

	if err := s.sessionRepo.Deactivate(ctx, sessionID); err != nil {
		return err
	}

	if err := s.producer.PublishSessionRevoked(ctx, sessionID, userID, "terminated"); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish session.revoked event",
			slog.Int64("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// TerminateOtherSessions deactivates every session of the user except the one
// holding the presented access token. It reports whether the current session
// could be resolved and therefore survived.
func (s *AuthService) TerminateOtherSessions(ctx context.Context, userID int64, accessToken string) (bool, error) {
	var except string
	current, err := s.sessionRepo.GetActiveByAccessToken(ctx, userID, accessToken)
	switch {
	case err == nil:
		except = current.RefreshToken
	case errors.Is(err, apperrors.ErrNotFound):
		// Current session unknown; everything gets deactivated.
	default:
		return false, fmt.Errorf("get current session: %w", err)
	}

	if err := s.sessionRepo.DeactivateAllByUserID(ctx, userID, except); err != nil {
		return false, err
	}

	if err := s.producer.PublishSessionRevoked(ctx, 0, userID, "terminate_others"); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish session.revoked event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "other sessions terminated",
		slog.Int64("user_id", userID),
		slog.Bool("current_kept", except != ""),
	)

	return except != "", nil
}

// Authenticate verifies an access token and resolves it to a live user. Both
// the guard middleware and the verify endpoint go through here, so a token
// whose embedded email or role no longer matches the account is rejected in
// one place.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return nil, apperrors.Unauthorized(tokenErrorMessage(err))
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("get user for token: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}
	if claims.Email() != user.Email || claims.Role != user.Role {
		return nil, apperrors.Unauthorized("stale credentials, re-authenticate")
	}

	return user, nil
}

// SweepExpiredSessions removes all expired session rows and returns the count.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.SweepExpired(ctx)
}

// openSession issues a fresh token pair and stores the session row for it.
func (s *AuthService) openSession(ctx context.Context, user *domain.User, meta ClientMeta) (*domain.TokenPair, error) {
	access, refresh, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		UserID:       user.ID,
		RefreshToken: refresh,
		AccessToken:  access,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
		DeviceInfo:   auth.ParseDevice(meta.UserAgent),
		IsActive:     true,
		ExpiresAt:    time.Now().UTC().Add(s.tokens.RefreshTTL()),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) issuePair(user *domain.User) (access, refresh string, err error) {
	identity := auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}

	access, err = s.tokens.IssueAccess(identity)
	if err != nil {
		return "", "", fmt.Errorf("issue access token: %w", err)
	}
	refresh, err = s.tokens.IssueRefresh(identity)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}

	return access, refresh, nil
}

// tokenErrorMessage maps each token failure kind to its own client-facing
// message so the guard's 401s stay distinguishable.
func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "session expired"
	case errors.Is(err, auth.ErrTokenWrongType):
		return "wrong token kind"
	case errors.Is(err, auth.ErrTokenSignature):
		return "tampered token"
	default:
		return "malformed token"
	}
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasLetter, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsLetter(ch):
			hasLetter = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one letter and one digit")
	}

	return nil
}
