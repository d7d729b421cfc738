package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/portal/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check store and broker connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if app.Health == nil {
			fmt.Fprintln(out, "ok")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		overall := app.Health.GetOverallHealth(ctx)

		names := make([]string, 0, len(overall.Checks))
		for name := range overall.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			result := overall.Checks[name]
			fmt.Fprintf(out, "%-10s %-9s %s\n", name, result.Status, result.Message)
		}
		fmt.Fprintf(out, "overall: %s\n", overall.Status)

		if overall.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
