// Package main provides the entry point for the paper digest HTTP API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/paper-digest-service/internal/app"
	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/scheduler"
	httpserver "github.com/helixir/paper-digest-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := app.NewLogger(cfg.Logging)
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-digest-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the pipeline, archive and publisher.
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
	}
	if cfg.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Metrics.Path
		httpCfg.MetricsHandler = promhttp.Handler()
	}

	// A nil *database.DB must not become a non-nil interface.
	var health httpserver.HealthChecker
	if a.DB != nil {
		health = a.DB
	}

	httpSrv := httpserver.NewServer(httpCfg, a.Pipeline, a.Reports, health, logger)

	// Run the watch list alongside the API when configured.
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, a.Pipeline, scheduler.WithLogger(logger), scheduler.WithTitleFinder(a.Catalog))
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Msg("HTTP API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if httpCfg.MetricsPath != "" {
		readyLog = readyLog.Str("metrics_path", httpCfg.MetricsPath)
	}
	readyLog.Bool("scheduler", sched != nil).Msg("paper-digest-service is ready")

	// Wait for shutdown signal or server error.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server error")
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-digest-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if sched != nil {
		select {
		case <-sched.Stop().Done():
			logger.Info().Msg("scheduler stopped")
		case <-shutdownCtx.Done():
			logger.Warn().Msg("scheduler pass still running at shutdown deadline")
		}
	}

	logger.Info().Msg("paper-digest-service shutdown complete")
	return runErr
}
