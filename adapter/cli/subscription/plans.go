package subscription

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the plan catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range app.Lifecycle.Plans(cmd.Context()) {
			fmt.Fprintf(out, "%-12s %-12s %10s/mo %10s/yr\n", p.ID, p.Name, p.MonthlyPrice, p.AnnualPrice)
			if len(p.Features) > 0 {
				fmt.Fprintf(out, "  %s\n", strings.Join(p.Features, ", "))
			}
		}
		return nil
	},
}
