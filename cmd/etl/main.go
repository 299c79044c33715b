package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/conagua-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/conagua-etl/internal/app"
	"github.com/couchcryptid/conagua-etl/internal/config"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

func main() {
	// Optional for local development; deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	a, err := app.New(cfg, logger, metrics, app.Options{})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	// Requests fetch archives on demand, so the service is ready once wired.
	a.Pipeline.MarkReady()

	srv := httpadapter.NewServer(cfg.HTTPAddr, a, a.Pipeline, cfg.MissingText, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("close error", "error", err)
	}

	logger.Info("shutdown complete")
}
