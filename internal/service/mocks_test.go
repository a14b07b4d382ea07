package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/verdantlabs/verdant/internal/auth"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/event"
	"github.com/verdantlabs/verdant/internal/imagestore"
	pkgkafka "github.com/verdantlabs/verdant/pkg/kafka"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.User), args.Get(1).(int64), args.Error(2)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Session Repository ---

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepository) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepository) GetActiveByAccessToken(ctx context.Context, userID int64, accessToken string) (*domain.Session, error) {
	args := m.Called(ctx, userID, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]domain.Session, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepository) RotateTokens(ctx context.Context, id int64, oldRefreshToken, newAccessToken, newRefreshToken string) error {
	args := m.Called(ctx, id, oldRefreshToken, newAccessToken, newRefreshToken)
	return args.Error(0)
}

func (m *mockSessionRepository) Deactivate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepository) DeactivateAllByUserID(ctx context.Context, userID int64, exceptRefreshToken string) error {
	args := m.Called(ctx, userID, exceptRefreshToken)
	return args.Error(0)
}

func (m *mockSessionRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepository) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Plant Repository ---

type mockPlantRepository struct {
	mock.Mock
}

func (m *mockPlantRepository) Create(ctx context.Context, plant *domain.Plant) error {
	args := m.Called(ctx, plant)
	return args.Error(0)
}

func (m *mockPlantRepository) GetByID(ctx context.Context, id int64) (*domain.Plant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plant), args.Error(1)
}

func (m *mockPlantRepository) ListByUserID(ctx context.Context, userID int64) ([]domain.Plant, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Plant), args.Error(1)
}

func (m *mockPlantRepository) Update(ctx context.Context, plant *domain.Plant) error {
	args := m.Called(ctx, plant)
	return args.Error(0)
}

func (m *mockPlantRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Note Repository ---

type mockNoteRepository struct {
	mock.Mock
}

func (m *mockNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *mockNoteRepository) GetByID(ctx context.Context, id int64) (*domain.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Note), args.Error(1)
}

func (m *mockNoteRepository) ListByPlantID(ctx context.Context, plantID int64) ([]domain.Note, error) {
	args := m.Called(ctx, plantID)
	return args.Get(0).([]domain.Note), args.Error(1)
}

func (m *mockNoteRepository) ListByUserID(ctx context.Context, userID int64) ([]domain.Note, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Note), args.Error(1)
}

func (m *mockNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *mockNoteRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Kafka Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, ev *pkgkafka.Event) error {
	args := m.Called(ctx, topic, ev)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(opts ...auth.Option) *auth.TokenManager {
	return auth.NewTokenManager("test-secret-key-for-service-tests", 30*time.Minute, 168*time.Hour, opts...)
}

func newTestProducer(pub *mockPublisher) *event.Producer {
	return event.NewProducer(pub, newTestLogger())
}

func newTestAuthService(userRepo *mockUserRepository, sessionRepo *mockSessionRepository, pub *mockPublisher) *AuthService {
	return NewAuthService(userRepo, sessionRepo, newTestTokens(), newTestProducer(pub), newTestLogger())
}

func newTestImageStore(t *testing.T) *imagestore.Store {
	t.Helper()
	store, err := imagestore.NewStore(t.TempDir(), newTestLogger())
	if err != nil {
		t.Fatalf("create image store: %v", err)
	}
	return store
}

func strPtr(s string) *string {
	return &s
}

func int64Ptr(n int64) *int64 {
	return &n
}

func boolPtr(b bool) *bool {
	return &b
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}
