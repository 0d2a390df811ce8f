// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/linker"
	"github.com/starford/othala/internal/quality"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("auto_heal", cfg.Sync.AutoHeal))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build family service and router.
	svc := familyservice.NewService(store, db, logger, familyservice.Options{
		DefaultGenerations: cfg.Graph.DefaultMaxGenerations,
		Thresholds: quality.Thresholds{
			MaxAgeYears:        cfg.Quality.MaxAgeYears,
			MinParentAgeYears:  cfg.Quality.MinParentAgeYears,
			MaxParentAgeYears:  cfg.Quality.MaxParentAgeYears,
			MaxAfterDeathYears: cfg.Quality.MaxAfterDeathYears,
		},
	})
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Vault.Path)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Uploaded scans and photos are linked as /media/<name> inside records,
	// so the file route lives at the root rather than under /api.
	media := api.NewMediaHandler(cfg.Vault.Path)
	r.Get("/media/{filename}", media.ServeFile)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	autoHeal := cfg.Sync.AutoHeal == AutoHealWatch

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, db, store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishPersonEvent(kind, path)
			svc.Invalidate()
			if !autoHeal || kind == "deleted" {
				return
			}
			// Heal just the edited record. Writes made here come back
			// through the watcher, and the follow-up heal finds nothing
			// to do, so the cascade settles after one hop.
			res, healErr := svc.Heal(gCtx, linker.HealRequest{Paths: []string{path}})
			if healErr != nil {
				logger.Warn("auto-heal failed",
					slog.String("path", path),
					slog.String("error", healErr.Error()))
				return
			}
			if len(res.Writes) > 0 || len(res.Conflicts) > 0 {
				logger.Info("auto-heal applied",
					slog.String("path", path),
					slog.Int("writes", len(res.Writes)),
					slog.Int("conflicts", len(res.Conflicts)))
			}
		})
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
