package app

import (
	"io"
	"log/slog"

	"github.com/felixgeelhaar/portal/pkg/config"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// NewLogger builds the process logger from configuration: JSON in
// production, text otherwise, at LOG_LEVEL.
func NewLogger(cfg *config.Config, service string, out io.Writer) *slog.Logger {
	logConfig := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logConfig = observability.ProductionLogConfig()
	}
	if cfg.LogLevel != "" {
		logConfig.Level = observability.LogLevel(cfg.LogLevel)
	}
	if service != "" {
		logConfig.Service = service
	}
	if out != nil {
		logConfig.Output = out
	}
	return observability.NewLogger(logConfig)
}
