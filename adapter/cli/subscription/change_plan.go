package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/commands"
	"github.com/spf13/cobra"
)

var (
	changeCycle     string
	changeAutoRenew bool
)

var changePlanCmd = &cobra.Command{
	Use:   "change-plan [plan]",
	Short: "Move a subscriber to another plan",
	Long: `Move a subscriber to another plan. A pending contract priced from
the catalog is opened for the new plan.

Examples:
  portal change-plan premium_vip --cycle annual`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		subscriberID, err := resolveSubscriber(app)
		if err != nil {
			return err
		}

		result, err := app.Lifecycle.ChangePlan(cmd.Context(), commands.ChangePlanCommand{
			SubscriberID: subscriberID,
			PlanID:       args[0],
			BillingCycle: changeCycle,
			AutoRenew:    changeAutoRenew,
		})
		if err != nil {
			return fmt.Errorf("failed to change plan: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Plan changed to %s (%s)\n", result.Subscriber.PlanType, result.Direction)
		printContract(out, &result.Contract)
		return nil
	},
}

func init() {
	addSubscriberFlag(changePlanCmd)
	changePlanCmd.Flags().StringVar(&changeCycle, "cycle", "monthly", "billing cycle (monthly, annual)")
	changePlanCmd.Flags().BoolVar(&changeAutoRenew, "auto-renew", false, "renew automatically at the end of the term")
}
