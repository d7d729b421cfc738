package commands

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ChangePlanCommand contains the data needed to move a subscriber to
// another plan.
type ChangePlanCommand struct {
	SubscriberID uuid.UUID
	PlanID       string
	BillingCycle string
	AutoRenew    bool
}

// ChangePlanResult contains the projection and the pending contract opened
// for the new plan.
type ChangePlanResult struct {
	Subscriber *domain.Subscriber
	Contract   *domain.Contract
	Direction  domain.PlanChangeDirection
}

// ChangePlanHandler handles the ChangePlanCommand.
type ChangePlanHandler struct {
	deps Deps
}

// NewChangePlanHandler creates a new ChangePlanHandler.
func NewChangePlanHandler(deps Deps) *ChangePlanHandler {
	return &ChangePlanHandler{deps: deps}
}

// Handle executes the ChangePlanCommand. The subscriber moves to the target
// plan with payment pending, and a pending contract priced from the catalog
// is opened in the same transaction.
func (h *ChangePlanHandler) Handle(ctx context.Context, cmd ChangePlanCommand) (*ChangePlanResult, error) {
	if cmd.SubscriberID == uuid.Nil {
		return nil, domain.ErrMissingSubscriber
	}
	cycle, err := domain.ParseBillingCycle(cmd.BillingCycle)
	if err != nil {
		return nil, err
	}
	target := domain.ParsePlanID(cmd.PlanID)

	var result *ChangePlanResult
	err = h.deps.mutate(ctx, cmd.SubscriberID, func(txCtx context.Context) error {
		subscriber, err := h.deps.loadSubscriber(txCtx, cmd.SubscriberID)
		if err != nil {
			return err
		}

		direction, err := subscriber.ChangePlan(h.deps.Catalog, target)
		if err != nil {
			return err
		}

		amount, err := h.deps.Catalog.Price(target, cycle)
		if err != nil {
			return err
		}

		contract, err := h.deps.openContract(txCtx, subscriber, domain.ContractTerms{
			PlanID:        target,
			BillingCycle:  cycle,
			Amount:        amount,
			PaymentStatus: domain.PaymentPending,
			AutoRenew:     cmd.AutoRenew,
		})
		if err != nil {
			return err
		}

		if err := h.deps.recordEvents(txCtx, subscriber, contract); err != nil {
			return err
		}

		result = &ChangePlanResult{Subscriber: subscriber, Contract: contract, Direction: direction}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
