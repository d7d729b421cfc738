package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/portal/adapter/api"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the subscription HTTP API",
	Long: `Serve the subscription HTTP API until interrupted.

Examples:
  portal serve
  portal serve --addr 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}

		cfg := api.DefaultServerConfig()
		if app.APIAddr != "" {
			cfg.Addr = app.APIAddr
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		cfg.Health = app.Health
		if app.Metrics != nil {
			cfg.Metrics = app.Metrics
			cfg.MetricsHandler = app.Metrics.Handler()
		}

		server := api.NewServer(cfg, api.NewSubscriptionHandler(app.Lifecycle, Logger()), Logger())
		return runServer(cmd.Context(), server)
	},
}

type apiServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// runServer blocks until ctx is done or the server fails.
func runServer(ctx context.Context, server apiServer) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default API_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
