package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/spf13/cobra"
)

var payStatus string

var payCmd = &cobra.Command{
	Use:   "pay [contract-id]",
	Short: "Record a contract's payment status",
	Long: `Record a contract's payment status. Marking a contract paid
enables its subscriber.

Examples:
  portal pay 0b6e7a52-0c55-4d2f-9a57-1a2f3c4d5e6f
  portal pay 0b6e7a52-0c55-4d2f-9a57-1a2f3c4d5e6f --status cancelled`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		contractID, err := parseContractID(args[0])
		if err != nil {
			return err
		}

		contract, err := app.Lifecycle.UpdatePaymentStatus(cmd.Context(), contractID, payStatus)
		if err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}

		printContract(cmd.OutOrStdout(), contract)
		return nil
	},
}

func init() {
	payCmd.Flags().StringVar(&payStatus, "status", "paid", "payment status (pending, paid, expired, cancelled)")
}
