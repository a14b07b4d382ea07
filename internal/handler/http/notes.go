package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/service"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/httputil"
	"github.com/verdantlabs/verdant/pkg/middleware"
	"github.com/verdantlabs/verdant/pkg/validator"
)

// dayLayout is the wire format for the optional day anchor.
const dayLayout = "2006-01-02"

// NoteHandler handles HTTP requests for note endpoints.
type NoteHandler struct {
	service *service.NoteService
	logger  *slog.Logger
}

// NewNoteHandler creates a new note HTTP handler.
func NewNoteHandler(svc *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{service: svc, logger: logger}
}

// CreateNoteRequest is the JSON request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"max=10000"`
	PlantID *int64 `json:"plant_id" validate:"omitempty,gt=0"`
	Day     string `json:"day"`
}

// UpdateNoteRequest is the JSON request body for a partial note update.
type UpdateNoteRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content" validate:"omitempty,max=10000"`
	PlantID *int64  `json:"plant_id" validate:"omitempty,gt=0"`
	Day     *string `json:"day"`
}

// Create handles POST /api/v1/notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	day, err := parseDay(req.Day)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	note, err := h.service.Create(r.Context(), userID, service.CreateNoteInput{
		Title:   req.Title,
		Content: req.Content,
		PlantID: req.PlantID,
		Day:     day,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, note)
}

// List handles GET /api/v1/notes
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// ListByPlant handles GET /api/v1/notes/plant/{plantID}
func (h *NoteHandler) ListByPlant(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	plantID, err := pathID(r, "plantID")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	notes, err := h.service.ListByPlant(r.Context(), userID, plantID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// Get handles GET /api/v1/notes/{id}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	note, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, note)
}

// Update handles PATCH /api/v1/notes/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	patch := domain.NotePatch{
		Title:   req.Title,
		Content: req.Content,
		PlantID: req.PlantID,
	}
	if req.Day != nil {
		day, err := parseDay(*req.Day)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		patch.Day = day
	}

	note, err := h.service.Update(r.Context(), userID, id, patch)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, note)
}

// Delete handles DELETE /api/v1/notes/{id}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "note deleted"})
}

func parseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse(dayLayout, raw)
	if err != nil {
		return nil, apperrors.InvalidInput("day must be formatted as YYYY-MM-DD")
	}
	return &day, nil
}
