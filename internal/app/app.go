// Package app wires the backend together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/verdantlabs/verdant/internal/auth"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/internal/event"
	handler "github.com/verdantlabs/verdant/internal/handler/http"
	"github.com/verdantlabs/verdant/internal/imagestore"
	"github.com/verdantlabs/verdant/internal/jobs"
	"github.com/verdantlabs/verdant/internal/repository/postgres"
	"github.com/verdantlabs/verdant/internal/service"
	"github.com/verdantlabs/verdant/migrations"
	"github.com/verdantlabs/verdant/pkg/database"
	"github.com/verdantlabs/verdant/pkg/health"
	pkgkafka "github.com/verdantlabs/verdant/pkg/kafka"
	"github.com/verdantlabs/verdant/pkg/tracing"
)

// App wires together all dependencies and runs the backend.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	sweeper        *jobs.Sweeper
	tracerShutdown func(context.Context) error
}

// New creates the application, initializing every dependency.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "verdant",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		Endpoint:       cfg.TracingEndpoint,
		SampleRate:     cfg.TracingSample,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "verdant")

	if err := database.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		redisClient = nil
		// The limiter fails open, so a missing redis degrades rather than
		// blocks startup.
		logger.Warn("redis unavailable, rate limiting disabled",
			slog.String("error", err.Error()),
		)
	}

	producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	images, err := imagestore.NewStore(cfg.MediaRoot, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init image store: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	plantRepo := postgres.NewPlantRepository(pool)
	noteRepo := postgres.NewNoteRepository(pool)

	eventProducer := event.NewProducer(producer, logger)
	authService := service.NewAuthService(userRepo, sessionRepo, tokens, eventProducer, logger)
	userService := service.NewUserService(userRepo, sessionRepo, eventProducer, logger)
	plantService := service.NewPlantService(plantRepo, images, logger)
	noteService := service.NewNoteService(noteRepo, plantRepo, logger)

	sweeper := jobs.NewSweeper(authService.SweepExpiredSessions, cfg.SweepInterval, logger)

	healthRegistry := health.NewRegistry()
	healthRegistry.Add("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthRegistry.AddOptional("kafka", producer.Ping)
	if redisClient != nil {
		healthRegistry.AddOptional("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := handler.NewRouter(handler.RouterDeps{
		Auth:   authService,
		Users:  userService,
		Plants: plantService,
		Notes:  noteService,
		Health: healthRegistry,
		Redis:  redisClient,
		Logger: logger,
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		LoginRateLimit: cfg.LoginRateLimit,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		sweeper:        sweeper,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and background jobs, blocking until the context
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in order: drain HTTP, flush spans, close the
// producer, then close the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
