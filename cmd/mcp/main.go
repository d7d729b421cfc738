// Command portal-mcp serves read-only subscription tools over MCP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	mcplocal "github.com/felixgeelhaar/portal/adapter/mcp"
	"github.com/felixgeelhaar/portal/internal/app"
	mcpinternal "github.com/felixgeelhaar/portal/internal/mcp"
	"github.com/felixgeelhaar/portal/pkg/config"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// stdout stays free for clients that pipe it
	logger := app.NewLogger(cfg, "portal-mcp", os.Stderr)

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	deps := mcplocal.ToolDependencies{Lifecycle: container.Lifecycle}
	if cfg.SubscriberID != "" {
		if deps.SubscriberID, err = uuid.Parse(cfg.SubscriberID); err != nil {
			logger.Error("invalid PORTAL_SUBSCRIBER_ID", "error", err)
			os.Exit(1)
		}
	}

	srv, err := mcpinternal.NewServer(deps, version)
	if err != nil {
		logger.Error("failed to build mcp server", "error", err)
		os.Exit(1)
	}

	if err := mcpinternal.Serve(ctx, cfg, srv, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
