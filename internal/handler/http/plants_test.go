package http

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/imagestore"
	"github.com/verdantlabs/verdant/internal/service"
	apperrors "github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/middleware"
)

func plantTestRouter(t *testing.T, plantRepo *mockPlantRepo) *chi.Mux {
	t.Helper()

	images, err := imagestore.NewStore(t.TempDir(), handlerTestLogger())
	require.NoError(t, err)

	svc := service.NewPlantService(plantRepo, images, handlerTestLogger())
	handler := NewPlantHandler(svc, handlerTestLogger())

	return chiRouter(func(r chi.Router) {
		r.Route("/api/v1/plants", func(r chi.Router) {
			r.Use(middleware.Auth(fakeAuthenticator(7, domain.RoleUser)))
			r.Post("/", handler.Create)
			r.Get("/", handler.List)
			r.Get("/{id}", handler.Get)
			r.Patch("/{id}", handler.Update)
			r.Delete("/{id}", handler.Delete)
			r.Put("/{id}/image", handler.SetImage)
			r.Get("/{id}/image", handler.GetImage)
		})
	})
}

func ownedTestPlant() *domain.Plant {
	return &domain.Plant{ID: 3, UserID: 7, Name: "Monstera", NoteIDs: []int64{}}
}

// pngUpload builds a multipart body with a small PNG under the "image" field.
func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, img))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "monstera.png")
	require.NoError(t, err)
	_, err = part.Write(encoded.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// === Create ===

func TestPlantHandler_Create_Success(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Plant")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Plant).ID = 3
		}).
		Return(nil)

	payload := map[string]any{"name": "Monstera", "description": "living room window"}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/plants/", jsonBody(t, payload), bearer("any-token"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["id"])
	assert.Equal(t, "Monstera", body["name"])
}

func TestPlantHandler_Create_MissingName(t *testing.T) {
	router := plantTestRouter(t, new(mockPlantRepo))

	payload := map[string]any{"description": "no name"}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/plants/", jsonBody(t, payload), bearer("any-token"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	details, ok := detailOf(t, rec).(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "name")
}

// === Get ===

func TestPlantHandler_Get_Success(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(ownedTestPlant(), nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/plants/3", nil, bearer("any-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Monstera", decodeBody(t, rec)["name"])
}

func TestPlantHandler_Get_ForeignPlant(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	foreign := ownedTestPlant()
	foreign.UserID = 99
	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(foreign, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/plants/3", nil, bearer("any-token"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPlantHandler_Get_NotFound(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(nil, apperrors.ErrNotFound)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/plants/3", nil, bearer("any-token"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// === List ===

func TestPlantHandler_List_Success(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("ListByUserID", mock.Anything, int64(7)).
		Return([]domain.Plant{*ownedTestPlant()}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/plants/", nil, bearer("any-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	plants, ok := body["plants"].([]any)
	require.True(t, ok)
	assert.Len(t, plants, 1)
}

// === Update ===

func TestPlantHandler_Update_Success(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(ownedTestPlant(), nil)
	plantRepo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Plant")).Return(nil)

	payload := map[string]any{"name": "Monstera Deliciosa"}
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/plants/3", jsonBody(t, payload), bearer("any-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Monstera Deliciosa", decodeBody(t, rec)["name"])
}

func TestPlantHandler_Update_EmptyName(t *testing.T) {
	router := plantTestRouter(t, new(mockPlantRepo))

	payload := map[string]any{"name": ""}
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/plants/3", jsonBody(t, payload), bearer("any-token"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// === Delete ===

func TestPlantHandler_Delete_Success(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(ownedTestPlant(), nil)
	plantRepo.On("Delete", mock.Anything, int64(3)).Return(nil)

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/plants/3", nil, bearer("any-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plant deleted", decodeBody(t, rec)["message"])
}

// === Images ===

func TestPlantHandler_SetImage_Success(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(ownedTestPlant(), nil)
	plantRepo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Plant")).Return(nil)

	body, contentType := pngUpload(t)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/plants/3/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer any-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	imageName, ok := decodeBody(t, rec)["image"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, imageName)
}

func TestPlantHandler_SetImage_MissingFile(t *testing.T) {
	router := plantTestRouter(t, new(mockPlantRepo))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("caption", "not a file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/plants/3/image", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer any-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image file is required", detailOf(t, rec))
}

func TestPlantHandler_GetImage_NoImage(t *testing.T) {
	plantRepo := new(mockPlantRepo)
	router := plantTestRouter(t, plantRepo)

	plantRepo.On("GetByID", mock.Anything, int64(3)).Return(ownedTestPlant(), nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/plants/3/image", nil, bearer("any-token"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
