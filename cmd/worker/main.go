// Package main provides the entry point for the paper digest Kafka worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/paper-digest-service/internal/app"
	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/events"
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
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("worker requires kafka.enabled")
	}

	// Set up structured logging.
	logger := app.NewLogger(cfg.Logging)
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("paper-digest-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	listener, err := events.NewListener(cfg.Kafka, a.Pipeline, logger)
	if err != nil {
		return fmt.Errorf("create request listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close request listener")
		}
	}()

	// Expose Prometheus metrics on the HTTP address if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.HTTPAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	logger.Info().
		Str("topic", cfg.Kafka.RequestTopic).
		Str("group_id", cfg.Kafka.GroupID).
		Msg("request listener started")

	// Block until the context is cancelled.
	runErr := listener.Run(ctx)
	if runErr != nil && ctx.Err() != nil {
		logger.Info().Msg("worker stopped via signal")
		runErr = nil
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	if runErr != nil {
		return fmt.Errorf("worker error: %w", runErr)
	}
	return nil
}
