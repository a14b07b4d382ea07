package http

import (
	"log/slog"
	"net/http"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/service"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/httputil"
	"github.com/verdantlabs/verdant/pkg/middleware"
	"github.com/verdantlabs/verdant/pkg/validator"
)

// AuthHandler handles HTTP requests for the auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}

	user, tokens, err := h.service.Register(r.Context(), input, clientMeta(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newTokenResponse(user, tokens))
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}

	user, tokens, err := h.service.Login(r.Context(), input, clientMeta(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newTokenResponse(user, tokens))
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticated(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// Verify handles GET /api/v1/auth/verify. It runs the same token-to-user
// resolution the guard uses and reports the outcome without side effects.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticated(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "token is valid",
		"user":    user,
	})
}

// Logout handles POST /api/v1/auth/logout. Logging out twice, or with a
// session that is already gone, still reports success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.service.Logout(r.Context(), userID, token); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) authenticated(r *http.Request) (*domain.User, error) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		return nil, apperrors.Unauthorized(err.Error())
	}
	return h.service.Authenticate(r.Context(), token)
}

// clientMeta captures the request metadata stored on new sessions.
func clientMeta(r *http.Request) service.ClientMeta {
	return service.ClientMeta{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
