// Package subscription holds the portal commands that read and change a
// subscriber's plan and contracts.
package subscription

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/portal/adapter/cli"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// subscriberFlag is shared by every command that acts on a subscriber.
var subscriberFlag string

// Commands returns the subscription commands for the root command.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		plansCmd,
		statusCmd,
		contractsCmd,
		subscribeCmd,
		renewCmd,
		payCmd,
		changePlanCmd,
	}
}

func addSubscriberFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&subscriberFlag, "subscriber", "s", "", "subscriber id (default PORTAL_SUBSCRIBER_ID)")
}

// resolveSubscriber picks --subscriber, then the configured default.
func resolveSubscriber(app *cli.App) (uuid.UUID, error) {
	if subscriberFlag != "" {
		id, err := uuid.Parse(subscriberFlag)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid subscriber id %q: %w", subscriberFlag, err)
		}
		return id, nil
	}
	if app.CurrentSubscriberID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("no subscriber: pass --subscriber or set PORTAL_SUBSCRIBER_ID")
	}
	return app.CurrentSubscriberID, nil
}

func parseContractID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid contract id %q: %w", arg, err)
	}
	return id, nil
}

func printContract(w io.Writer, c *queries.ContractDTO) {
	fmt.Fprintf(w, "Contract %s\n", c.ID)
	fmt.Fprintf(w, "  plan:    %s (%s)\n", c.PlanID, c.BillingCycle)
	fmt.Fprintf(w, "  period:  %s to %s\n", c.StartDate, c.EndDate)
	fmt.Fprintf(w, "  amount:  %s\n", c.Amount)
	fmt.Fprintf(w, "  payment: %s\n", c.PaymentStatus)
	fmt.Fprintf(w, "  expiry:  %s\n", expiryLabel(c))
	if c.AutoRenew {
		fmt.Fprintln(w, "  auto-renew: on")
	}
	if c.RenewedFromID != nil {
		fmt.Fprintf(w, "  renews:  %s\n", *c.RenewedFromID)
	}
}

func expiryLabel(c *queries.ContractDTO) string {
	switch {
	case c.Expired:
		return fmt.Sprintf("expired %d days ago", -c.DaysUntilExpiry)
	case c.ExpiringSoon:
		return fmt.Sprintf("expiring soon (%d days left)", c.DaysUntilExpiry)
	default:
		return fmt.Sprintf("%d days left", c.DaysUntilExpiry)
	}
}
