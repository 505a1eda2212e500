package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/hazard-ingest-service/internal/adapter/http"
	"github.com/couchcryptid/hazard-ingest-service/internal/app"
	"github.com/couchcryptid/hazard-ingest-service/internal/config"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.Queries, a, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poll scheduler. The first cycle runs immediately.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.Scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	logger.Info("hazard ingest service started",
		"sources", a.Scheduler.Sources(),
		"poll_interval", cfg.PollInterval,
		"refresh_on_read", cfg.RefreshOnRead,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	if err := a.Close(); err != nil {
		logger.Error("close error", "error", err)
	}

	logger.Info("shutdown complete")
}
