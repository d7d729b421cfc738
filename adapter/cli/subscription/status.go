package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a subscriber's plan and active contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		subscriberID, err := resolveSubscriber(app)
		if err != nil {
			return err
		}

		sub, err := app.Lifecycle.Subscription(cmd.Context(), subscriberID)
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		out := cmd.OutOrStdout()
		s := sub.Subscriber
		enabled := "disabled"
		if s.Status {
			enabled = "enabled"
		}
		fmt.Fprintf(out, "Subscriber %s\n", s.ID)
		fmt.Fprintf(out, "  plan:    %s (%s)\n", sub.Plan.Name, s.PlanType)
		fmt.Fprintf(out, "  payment: %s\n", s.PaymentStatus)
		fmt.Fprintf(out, "  status:  %s\n", enabled)

		if sub.ActiveContract == nil {
			fmt.Fprintln(out, "No active contract")
			return nil
		}
		printContract(out, sub.ActiveContract)
		return nil
	},
}

func init() {
	addSubscriberFlag(statusCmd)
}
