// Package observability holds the logging, metrics and health plumbing
// shared by the portal CLI, API and worker.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is the textual minimum level, as found in LOG_LEVEL.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     LogLevel
	Format    LogFormat
	Output    io.Writer
	AddSource bool
	// Service and Version are stamped on every record when set.
	Service string
	Version string
}

// DefaultLogConfig is the development setup: text on stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:   LogLevelInfo,
		Format:  LogFormatText,
		Output:  os.Stderr,
		Service: "portal",
		Version: "dev",
	}
}

// ProductionLogConfig emits JSON with source locations.
func ProductionLogConfig() LogConfig {
	return LogConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatJSON,
		Output:    os.Stdout,
		AddSource: true,
		Service:   "portal",
		Version:   "unknown",
	}
}

// NewLogger builds a logger whose records carry the request scope found in
// the context passed to the *Context logging methods.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	var static []slog.Attr
	if cfg.Service != "" {
		static = append(static, slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		static = append(static, slog.String("version", cfg.Version))
	}
	if len(static) > 0 {
		handler = handler.WithAttrs(static)
	}
	return slog.New(scopeHandler{next: handler})
}

// ParseLevel maps a LogLevel to slog. Matching is case-insensitive, "warning"
// is accepted, and anything unrecognised falls back to info.
func ParseLevel(level LogLevel) slog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// scopeHandler appends the request scope of the record's context.
type scopeHandler struct {
	next slog.Handler
}

func (h scopeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h scopeHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := scopeAttrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return scopeHandler{next: h.next.WithAttrs(attrs)}
}

func (h scopeHandler) WithGroup(name string) slog.Handler {
	return scopeHandler{next: h.next.WithGroup(name)}
}

// LogOperation returns logger tagged with operation and the given key/value
// pairs.
func LogOperation(logger *slog.Logger, operation string, attrs ...any) *slog.Logger {
	return logger.With(append([]any{OperationKey, operation}, attrs...)...)
}
