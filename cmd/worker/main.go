// Command worker relays the outbox to the event bus, consumes lifecycle
// events for telemetry and purges old outbox rows.
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

	"github.com/felixgeelhaar/portal/internal/app"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/portal/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "portal-worker", os.Stdout)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer container.Close()
	logger.Info("worker starting", "local_mode", container.IsLocalMode())

	if !container.IsLocalMode() && cfg.RabbitMQURL != "" {
		closeConsumer, err := consumeTelemetry(ctx, cfg, container, logger)
		if err != nil {
			return err
		}
		defer closeConsumer()
	}

	processor := container.OutboxProcessor
	if cfg.OutboxProcessorEnabled {
		if err := processor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start outbox processor: %w", err)
		}
		defer processor.Stop()
	} else {
		logger.Warn("outbox processor disabled")
	}

	go every(ctx, cfg.OutboxCleanupInterval, func() {
		deleted, err := container.OutboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
		switch {
		case err != nil:
			logger.Error("outbox cleanup failed", "error", err)
		case deleted > 0:
			logger.Info("outbox cleanup", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
		}
	})
	go every(ctx, cfg.OutboxStatsInterval, func() {
		logger.Info("outbox stats", "stats", processor.GetStats())
	})

	if cfg.WorkerHealthAddr != "" {
		srv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           newHealthMux(processor, container.Health, container.Metrics.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server failed", "error", err)
			}
		}()
		defer shutdown(srv, logger)
	}

	<-ctx.Done()
	logger.Info("worker shutting down")
	return nil
}

// consumeTelemetry feeds the worker queue into the telemetry subscriber. In
// development a missing broker only disables telemetry.
func consumeTelemetry(ctx context.Context, cfg *config.Config, container *app.Container, logger *slog.Logger) (func(), error) {
	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:    cfg.RabbitMQURL,
		Logger: logger,
	}, eventbus.NewConsumerRegistry(logger))
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ consumer unavailable, telemetry disabled", "error", err)
			return func() {}, nil
		}
		return nil, err
	}

	consumer.RegisterConsumer(container.TelemetrySubscriber)
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event consumer stopped", "error", err)
		}
	}()
	return func() { _ = consumer.Close() }, nil
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("health server shutdown", "error", err)
	}
}

// every calls fn on each tick until ctx ends. A non-positive interval
// disables it.
func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
