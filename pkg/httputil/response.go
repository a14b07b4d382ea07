package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/logger"
	"github.com/verdantlabs/verdant/pkg/validator"
)

// ErrorDetail is the standard error envelope. Detail is either a plain
// message string or, for validation failures, a map of field name to the
// list of human-readable violations for that field.
type ErrorDetail struct {
	Detail any `json:"detail"`
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes a `{"detail": message}` error response.
func WriteDetail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorDetail{Detail: message})
}

// WriteError writes a standardized error response based on the error type.
// AppErrors map to their own status and message; sentinel errors map to
// their conventional statuses; anything else is a 500 and gets logged with
// the request-scoped logger when one is mounted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status == http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "internal error",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteDetail(w, appErr.Status, appErr.Message)
		return
	}

	status := apperrors.HTTPStatus(err)
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		message = "unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		message = "forbidden"
	}

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteDetail(w, status, message)
}

// WriteValidationError writes a 422 with field-level violation lists in the
// detail envelope, mirroring the per-field error lists the API documents.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorDetail{Detail: valErr.Fields()})
		return
	}
	WriteDetail(w, http.StatusBadRequest, err.Error())
}
