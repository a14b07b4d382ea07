package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/verdant/internal/auth"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/event"
	"github.com/verdantlabs/verdant/internal/service"
	pkgkafka "github.com/verdantlabs/verdant/pkg/kafka"
	"github.com/verdantlabs/verdant/pkg/middleware"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.User), args.Get(1).(int64), args.Error(2)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepo) GetActiveByAccessToken(ctx context.Context, userID int64, accessToken string) (*domain.Session, error) {
	args := m.Called(ctx, userID, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepo) ListActiveByUserID(ctx context.Context, userID int64) ([]domain.Session, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepo) RotateTokens(ctx context.Context, id int64, oldRefreshToken, newAccessToken, newRefreshToken string) error {
	args := m.Called(ctx, id, oldRefreshToken, newAccessToken, newRefreshToken)
	return args.Error(0)
}

func (m *mockSessionRepo) Deactivate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) DeactivateAllByUserID(ctx context.Context, userID int64, exceptRefreshToken string) error {
	args := m.Called(ctx, userID, exceptRefreshToken)
	return args.Error(0)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockPlantRepo struct {
	mock.Mock
}

func (m *mockPlantRepo) Create(ctx context.Context, plant *domain.Plant) error {
	args := m.Called(ctx, plant)
	return args.Error(0)
}

func (m *mockPlantRepo) GetByID(ctx context.Context, id int64) (*domain.Plant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plant), args.Error(1)
}

func (m *mockPlantRepo) ListByUserID(ctx context.Context, userID int64) ([]domain.Plant, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Plant), args.Error(1)
}

func (m *mockPlantRepo) Update(ctx context.Context, plant *domain.Plant) error {
	args := m.Called(ctx, plant)
	return args.Error(0)
}

func (m *mockPlantRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockNoteRepo struct {
	mock.Mock
}

func (m *mockNoteRepo) Create(ctx context.Context, note *domain.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *mockNoteRepo) GetByID(ctx context.Context, id int64) (*domain.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Note), args.Error(1)
}

func (m *mockNoteRepo) ListByPlantID(ctx context.Context, plantID int64) ([]domain.Note, error) {
	args := m.Called(ctx, plantID)
	return args.Get(0).([]domain.Note), args.Error(1)
}

func (m *mockNoteRepo) ListByUserID(ctx context.Context, userID int64) ([]domain.Note, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Note), args.Error(1)
}

func (m *mockNoteRepo) Update(ctx context.Context, note *domain.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *mockNoteRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// stubPublisher swallows domain events.
type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, _ string, _ *pkgkafka.Event) error {
	return nil
}

// ============================================================================
// Test Helpers
// ============================================================================

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func handlerTestTokens() *auth.TokenManager {
	return auth.NewTokenManager("handler-test-secret-key", 30*time.Minute, 168*time.Hour)
}

func handlerTestProducer() *event.Producer {
	return event.NewProducer(stubPublisher{}, handlerTestLogger())
}

func newAuthTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo) *service.AuthService {
	return service.NewAuthService(userRepo, sessionRepo, handlerTestTokens(), handlerTestProducer(), handlerTestLogger())
}

// fakeAuthenticator bypasses token verification and injects a fixed principal.
func fakeAuthenticator(userID int64, role string) middleware.Authenticator {
	return func(_ context.Context, _ string) (*middleware.Principal, error) {
		return &middleware.Principal{UserID: userID, Email: "flora@example.com", Role: role}, nil
	}
}

func testUser() *domain.User {
	return &domain.User{
		ID:       7,
		Email:    "flora@example.com",
		FullName: "Flora Green",
		Role:     domain.RoleUser,
		IsActive: true,
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func doRequest(t *testing.T, router http.Handler, method, target string, body *bytes.Buffer, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// decodeBody decodes the recorded JSON body into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// detailOf returns the "detail" field of an error response.
func detailOf(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	return decodeBody(t, rec)["detail"]
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// chiRouter mounts handlers under a fresh router for a single test.
func chiRouter(register func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	register(r)
	return r
}
