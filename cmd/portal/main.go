package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/felixgeelhaar/portal/adapter/cli/subscription"
	"github.com/felixgeelhaar/portal/internal/app"
	"github.com/felixgeelhaar/portal/pkg/config"
	"github.com/google/uuid"
)

func main() {
	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "portal-cli", os.Stderr)
	cli.SetLogger(logger)

	// Try to initialize the full container
	var cliApp *cli.App
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// In development, allow the CLI to print help and version without a store
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		// Drain the outbox while the command runs
		if cfg.OutboxProcessorEnabled {
			if err := container.OutboxProcessor.Start(ctx); err != nil {
				logger.Warn("outbox processor not started", "error", err)
			} else {
				defer container.OutboxProcessor.Stop()
			}
		}

		cliApp = cli.NewApp(container.Lifecycle)
		cliApp.SetObservability(container.Health, container.Metrics)
		cliApp.SetAPIAddr(cfg.APIAddr)

		if cfg.SubscriberID != "" {
			subscriberID, err := uuid.Parse(cfg.SubscriberID)
			if err != nil {
				logger.Error("invalid PORTAL_SUBSCRIBER_ID", "error", err)
				os.Exit(1)
			}
			cliApp.SetCurrentSubscriberID(subscriberID)
		}
	}

	// Set the CLI app
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(subscription.Commands()...)

	// Execute CLI
	cli.Execute(ctx)
}
