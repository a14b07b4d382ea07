package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verdantlabs/verdant/internal/domain"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// TokenResponse is the success shape shared by register, login, and refresh.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         *domain.User `json:"user"`
}

func newTokenResponse(user *domain.User, tokens *domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "bearer",
		User:         user,
	}
}

// MessageResponse is the shape for plain confirmation replies.
type MessageResponse struct {
	Message string `json:"message"`
}

// decodeJSON bounds and decodes a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is required")
		}
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("invalid " + name)
	}
	return id, nil
}
