package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	billingCycle  string
	amount        string
	startDate     string
	paymentStatus string
	autoRenew     bool
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [plan]",
	Short: "Open a contract for a subscriber",
	Long: `Open a contract for a subscriber on a catalog plan. The amount
defaults to the catalog price for the billing cycle and the start date
defaults to today.

Examples:
  portal subscribe premium
  portal subscribe essential --cycle annual --auto-renew
  portal subscribe premium_vip --amount 150.00 --start 2024-01-15 --payment paid`,
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

		createCmd := commands.CreateContractCommand{
			SubscriberID:  subscriberID,
			PlanID:        args[0],
			BillingCycle:  billingCycle,
			PaymentStatus: paymentStatus,
			AutoRenew:     autoRenew,
		}

		if amount != "" {
			parsed, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			createCmd.Amount = &parsed
		}
		if startDate != "" {
			parsed, err := domain.ParseDate(startDate)
			if err != nil {
				return fmt.Errorf("invalid start date format (use YYYY-MM-DD): %w", err)
			}
			createCmd.StartDate = parsed
		}

		contract, err := app.Lifecycle.CreateContract(cmd.Context(), createCmd)
		if err != nil {
			return fmt.Errorf("failed to create contract: %w", err)
		}

		printContract(cmd.OutOrStdout(), contract)
		return nil
	},
}

func init() {
	addSubscriberFlag(subscribeCmd)
	subscribeCmd.Flags().StringVar(&billingCycle, "cycle", "monthly", "billing cycle (monthly, annual)")
	subscribeCmd.Flags().StringVar(&amount, "amount", "", "contract amount (default catalog price)")
	subscribeCmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD, default today)")
	subscribeCmd.Flags().StringVar(&paymentStatus, "payment", "", "initial payment status (default pending)")
	subscribeCmd.Flags().BoolVar(&autoRenew, "auto-renew", false, "renew automatically at the end of the term")
}
