package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/handlers"
	"github.com/railnet/routeplanner/internal/config"
	"github.com/railnet/routeplanner/internal/logging"
	"github.com/railnet/routeplanner/internal/metrics"
	"github.com/railnet/routeplanner/internal/middleware"
	"github.com/railnet/routeplanner/internal/planner"
	"github.com/railnet/routeplanner/internal/timetable"
	"github.com/railnet/routeplanner/repository"
)

// stopStore is what the service needs from either storage backend
type stopStore interface {
	timetable.StopSource
	handlers.Pinger
}

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)
	reg := metrics.Init(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open stop store")
	}
	defer closeStore()

	graphs := timetable.NewGraphCache(store, timetable.CacheOptions{
		TTL:         cfg.GraphCacheTTL(),
		Concurrency: cfg.Store.LoadConcurrency,
	}, logger)
	svc := planner.NewService(graphs, planner.Options{
		SearchTimeout:   cfg.SearchTimeout(),
		ResultCacheSize: cfg.Routing.ResultCacheSize,
		ResultCacheTTL:  cfg.ResultCacheTTL(),
	}, logger)

	routeHandler := handlers.NewRouteHandler(svc, logger)
	healthHandler := handlers.NewHealthHandler(store, graphs)

	// Setup router
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Get("/health", healthHandler.GetHealth)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/api/ping", healthHandler.Ping)
	r.Handle("/metrics", metrics.Handler(reg))

	r.Get("/api/routes", routeHandler.GetRoute)
	r.Get("/api/stations", routeHandler.GetStations)

	// Static file serving (if configured)
	if cfg.Server.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	// Build the first graph in the background. /readyz turns green with
	// whichever build succeeds first, this one or a later query or refresh.
	go func() {
		snap, err := graphs.Current(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Initial graph build failed; queries will retry")
			return
		}
		logger.Info().Str("snapshot_id", snap.ID.String()).Msg("Route planner ready")
	}()

	go graphs.Refresh(ctx, cfg.RefreshInterval())

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Strs("endpoints", []string{"GET /api/routes", "GET /api/stations", "GET /health", "GET /metrics"}).
			Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	healthHandler.StartDraining()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (stopStore, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		logger.Info().Msg("Connecting to PostgreSQL")
		repo, err := repository.NewPostgresStopRepository(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		return repo, repo.Close, nil

	default:
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("Connecting to SQLite database")
		sqliteDB, err := repository.NewSQLiteDB(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqliteDB.EnsureSchema(ctx); err != nil {
			sqliteDB.Close()
			return nil, nil, err
		}
		return repository.NewSQLiteStopRepository(sqliteDB), func() { sqliteDB.Close() }, nil
	}
}
