package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/spf13/cobra"
)

var renewCmd = &cobra.Command{
	Use:   "renew [contract-id]",
	Short: "Open the next term of a contract",
	Long: `Open the next term of a contract. The renewal starts the day after
the contract ends and is pending payment. Renewing a contract twice
prints the renewal that already exists.`,
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

		renewal, err := app.Lifecycle.RenewContract(cmd.Context(), contractID)
		if err != nil {
			return fmt.Errorf("failed to renew contract: %w", err)
		}

		printContract(cmd.OutOrStdout(), renewal)
		return nil
	},
}
