package main

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
	"github.com/joho/godotenv"

	"github.com/tendant/simple-image/pkg/simpleimage/api"
	"github.com/tendant/simple-image/pkg/simpleimage/config"
	"github.com/tendant/simple-image/pkg/simpleimage/metrics"
	"github.com/tendant/simple-image/pkg/simpleimage/presigned"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	cfg.Logger = logger

	ctx := context.Background()
	components, err := cfg.BuildComponents(ctx)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer components.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newRouter(cfg, components, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Image repository starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"catalog", cfg.DatabaseType,
			"storage", cfg.Storage.Type,
			"remote_conversion", cfg.ConversionURL != "")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
	slog.Info("Server exiting")
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newRouter mounts the repository, blob and operational routes
func newRouter(cfg *config.ServerConfig, components *config.Components, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(api.RequestIDMiddleware)
	r.Use(api.LoggingMiddleware(logger))
	r.Use(api.RecoveryMiddleware)

	api.HealthRoutes(r)

	repository := api.NewRepositoryHandler(components.Service,
		api.WithMaxBulkIDs(cfg.MaxBulkIDs),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithUploadAuth(api.BearerAuth(cfg.JWTSecret)),
	)
	r.Mount("/repository", repository.Routes())
	r.Mount("/blobs", presigned.NewHandler(components.Store, components.Signer).Routes())

	if components.Registry != nil {
		r.Handle("/metrics", metrics.Handler(components.Registry))
	}

	return r
}
