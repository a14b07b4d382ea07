package http

import (
	"log/slog"
	"net/http"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/service"
	"github.com/verdantlabs/verdant/pkg/httputil"
	"github.com/verdantlabs/verdant/pkg/middleware"
	"github.com/verdantlabs/verdant/pkg/validator"
)

// maxImageBytes caps plant image uploads.
const maxImageBytes = 10 << 20

// PlantHandler handles HTTP requests for plant endpoints.
type PlantHandler struct {
	service *service.PlantService
	logger  *slog.Logger
}

// NewPlantHandler creates a new plant HTTP handler.
func NewPlantHandler(svc *service.PlantService, logger *slog.Logger) *PlantHandler {
	return &PlantHandler{service: svc, logger: logger}
}

// CreatePlantRequest is the JSON request body for creating a plant.
type CreatePlantRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdatePlantRequest is the JSON request body for a partial plant update.
type UpdatePlantRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// Create handles POST /api/v1/plants
func (h *PlantHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req CreatePlantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	plant, err := h.service.Create(r.Context(), userID, service.CreatePlantInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, plant)
}

// List handles GET /api/v1/plants
func (h *PlantHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	plants, err := h.service.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

// Get handles GET /api/v1/plants/{id}
func (h *PlantHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	plant, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, plant)
}

// Update handles PATCH /api/v1/plants/{id}
func (h *PlantHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdatePlantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	plant, err := h.service.Update(r.Context(), userID, id, domain.PlantPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, plant)
}

// Delete handles DELETE /api/v1/plants/{id}
func (h *PlantHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "plant deleted"})
}

// SetImage handles PUT /api/v1/plants/{id}/image. The upload arrives as
// multipart form data under the "image" field.
func (h *PlantHandler) SetImage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httputil.WriteDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.WriteDetail(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	plant, err := h.service.SetImage(r.Context(), userID, id, header.Filename, file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, plant)
}

// GetImage handles GET /api/v1/plants/{id}/image
func (h *PlantHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	path, err := h.service.ImagePath(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.ServeFile(w, r, path)
}
