package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/service"
	"github.com/verdantlabs/verdant/pkg/health"
	"github.com/verdantlabs/verdant/pkg/middleware"
)

// RouterDeps bundles everything the router wires together.
type RouterDeps struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Plants         *service.PlantService
	Notes          *service.NoteService
	Health         *health.Registry
	Redis          *redis.Client
	Logger         *slog.Logger
	CORS           CORSConfig
	LoginRateLimit int
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(deps.CORS))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.PrometheusMetrics("verdant"))

	r.Get("/health/live", deps.Health.Liveness())
	r.Get("/health/ready", deps.Health.Readiness())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The guard delegates to the auth service so middleware rejections carry
	// the same messages as the verify endpoint.
	guard := middleware.Auth(authenticator(deps.Auth))

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	sessionHandler := NewSessionHandler(deps.Auth, deps.Logger)
	userHandler := NewUserHandler(deps.Users, deps.Logger)
	plantHandler := NewPlantHandler(deps.Plants, deps.Logger)
	noteHandler := NewNoteHandler(deps.Notes, deps.Logger)

	credentialLimiter := middleware.RateLimit(deps.Redis, middleware.RateLimitConfig{
		Limit:  deps.LoginRateLimit,
		Window: time.Minute,
		Prefix: "ratelimit:credentials",
	}, deps.Logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(credentialLimiter)

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Get("/me", authHandler.Me)
		r.Get("/verify", authHandler.Verify)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/logout", authHandler.Logout)
		})
	})

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/refresh", sessionHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(guard)

			r.Get("/me", sessionHandler.List)
			r.Delete("/me/all", sessionHandler.TerminateOthers)
			r.Delete("/{id}", sessionHandler.Terminate)
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(guard)

		r.Get("/me", userHandler.Me)
		r.With(ContentTypeJSON).Patch("/me", userHandler.UpdateMe)
		r.Delete("/me", userHandler.DeleteMe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Get("/", userHandler.List)
			r.Get("/{id}", userHandler.Get)
			r.Delete("/{id}", userHandler.Delete)
		})
	})

	r.Route("/api/v1/plants", func(r chi.Router) {
		r.Use(guard)

		r.With(ContentTypeJSON).Post("/", plantHandler.Create)
		r.Get("/", plantHandler.List)
		r.Get("/{id}", plantHandler.Get)
		r.With(ContentTypeJSON).Patch("/{id}", plantHandler.Update)
		r.Delete("/{id}", plantHandler.Delete)
		r.Put("/{id}/image", plantHandler.SetImage)
		r.Get("/{id}/image", plantHandler.GetImage)
	})

	r.Route("/api/v1/notes", func(r chi.Router) {
		r.Use(guard)

		r.With(ContentTypeJSON).Post("/", noteHandler.Create)
		r.Get("/", noteHandler.List)
		r.Get("/plant/{plantID}", noteHandler.ListByPlant)
		r.Get("/{id}", noteHandler.Get)
		r.With(ContentTypeJSON).Patch("/{id}", noteHandler.Update)
		r.Delete("/{id}", noteHandler.Delete)
	})

	return r
}

// authenticator bridges the auth service into the guard middleware.
func authenticator(svc *service.AuthService) middleware.Authenticator {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		user, err := svc.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		}, nil
	}
}
