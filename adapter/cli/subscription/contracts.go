package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/spf13/cobra"
)

var onlyLive bool

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List a subscriber's contracts, newest first",
	Long: `List a subscriber's contracts, newest first.

Examples:
  portal contracts
  portal contracts --live -s 6f1c2a9e-5c1d-4b8e-9d0a-3f7e2b1c4d5e`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		subscriberID, err := resolveSubscriber(app)
		if err != nil {
			return err
		}

		contracts, err := app.Lifecycle.Contracts(cmd.Context(), subscriberID, onlyLive)
		if err != nil {
			return fmt.Errorf("failed to list contracts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(contracts) == 0 {
			fmt.Fprintln(out, "No contracts")
			return nil
		}
		for _, c := range contracts {
			fmt.Fprintf(out, "%s  %-12s %-8s %s..%s  %9s  %-9s %s\n",
				c.ID, c.PlanID, c.BillingCycle, c.StartDate, c.EndDate, c.Amount, c.PaymentStatus, expiryLabel(&c))
		}
		return nil
	},
}

func init() {
	addSubscriberFlag(contractsCmd)
	contractsCmd.Flags().BoolVar(&onlyLive, "live", false, "only pending or paid contracts")
}
