// Package mcp runs the MCP server over HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"

	mcplocal "github.com/felixgeelhaar/portal/adapter/mcp"
	"github.com/felixgeelhaar/portal/pkg/config"
)

// NewServer builds an MCP server with the subscription tools and resources.
func NewServer(deps mcplocal.ToolDependencies, version string) (*mcpgo.Server, error) {
	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:    "portal-mcp",
		Version: version,
		Capabilities: mcpgo.Capabilities{
			Tools:     true,
			Resources: true,
		},
	})
	if err := mcplocal.RegisterTools(srv, deps); err != nil {
		return nil, err
	}
	if err := mcplocal.RegisterResources(srv, deps); err != nil {
		return nil, err
	}
	return srv, nil
}

// Serve listens on cfg.MCPAddr until ctx is canceled. Requests need
// MCP_AUTH_TOKEN as a bearer token when it is set.
func Serve(ctx context.Context, cfg *config.Config, srv *mcpgo.Server, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if srv == nil {
		return errors.New("server is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	adapter := mcpLogger{logger: logger}
	stack := middleware.DefaultStack(adapter)
	if cfg.MCPAuthToken != "" {
		authenticator := middleware.BearerTokenAuthenticator(middleware.StaticTokens(map[string]*middleware.Identity{
			cfg.MCPAuthToken: {ID: "mcp", Name: "mcp"},
		}))
		stack = append([]middleware.Middleware{middleware.Auth(authenticator, middleware.WithAuthLogger(adapter))}, stack...)
	} else {
		logger.Warn("MCP auth token not set; requests will be unauthenticated")
	}

	logger.Info("mcp server listening", "addr", cfg.MCPAddr)
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil, mcpgo.WithMiddleware(stack...))
}

type mcpLogger struct {
	logger *slog.Logger
}

func (l mcpLogger) Info(msg string, fields ...middleware.Field) {
	l.logger.Info(msg, fieldsToArgs(fields)...)
}

func (l mcpLogger) Error(msg string, fields ...middleware.Field) {
	l.logger.Error(msg, fieldsToArgs(fields)...)
}

func (l mcpLogger) Debug(msg string, fields ...middleware.Field) {
	l.logger.Debug(msg, fieldsToArgs(fields)...)
}

func (l mcpLogger) Warn(msg string, fields ...middleware.Field) {
	l.logger.Warn(msg, fieldsToArgs(fields)...)
}

func fieldsToArgs(fields []middleware.Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}
	return args
}
