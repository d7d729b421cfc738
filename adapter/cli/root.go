// Package cli is the portal command line. Subcommands reach the lifecycle
// service through the App set by main.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/pkg/observability"
)

var (
	logger        *slog.Logger
	correlationID string
)

type startedAtKey struct{}

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Portal - subscription contract lifecycle",
	Long: `Portal manages subscriber plans and billing contracts:
open contracts, renew them, record payments and move subscribers
between plans.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRun:  beginCommand,
	PersistentPostRun: endCommand,
}

// beginCommand gives every invocation a request scope, so the events it
// records share one correlation ID.
func beginCommand(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.NewRequestContext(ctx, correlationID)
	ctx = context.WithValue(ctx, startedAtKey{}, time.Now())
	cmd.SetContext(ctx)
	Logger().DebugContext(ctx, "command start", "command", cmd.CommandPath())
}

func endCommand(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()
	startedAt, ok := ctx.Value(startedAtKey{}).(time.Time)
	if !ok {
		return
	}
	Logger().DebugContext(ctx, "command end",
		"command", cmd.CommandPath(),
		observability.DurationKey, time.Since(startedAt).Milliseconds(),
	)
}

// Execute runs the command line and exits non-zero on error.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "correlation ID for the events this command records (generated when empty)")
}

// AddCommand registers subcommands.
func AddCommand(cmds ...*cobra.Command) {
	rootCmd.AddCommand(cmds...)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the CLI logger, or slog.Default before SetLogger.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
