package http

import (
	"log/slog"
	"net/http"

	"github.com/verdantlabs/verdant/internal/service"
	"github.com/verdantlabs/verdant/pkg/httputil"
	"github.com/verdantlabs/verdant/pkg/middleware"
)

// refreshTokenHeader carries the raw refresh token on the refresh endpoint.
const refreshTokenHeader = "X-Refresh-Token"

// SessionHandler handles HTTP requests for session management.
type SessionHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(svc *service.AuthService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: svc, logger: logger}
}

// Refresh handles POST /api/v1/sessions/refresh. The refresh token travels in
// its own header, never in the Authorization header.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.Header.Get(refreshTokenHeader)
	if refreshToken == "" {
		httputil.WriteDetail(w, http.StatusUnauthorized, "missing "+refreshTokenHeader+" header")
		return
	}

	user, tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newTokenResponse(user, tokens))
}

// List handles GET /api/v1/sessions/me
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	sessions, err := h.service.ListSessions(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Terminate handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	sessionID, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.TerminateSession(r.Context(), userID, sessionID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "session terminated"})
}

// TerminateOthers handles DELETE /api/v1/sessions/me/all. The reply says
// whether the current session could be identified and kept.
func (h *SessionHandler) TerminateOthers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}

	currentKept, err := h.service.TerminateOtherSessions(r.Context(), userID, token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	msg := "all sessions terminated"
	if currentKept {
		msg = "all other sessions terminated"
	}
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: msg})
}
