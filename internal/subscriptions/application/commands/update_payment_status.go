package commands

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// UpdatePaymentStatusCommand contains the data needed to move a contract's
// payment status.
type UpdatePaymentStatusCommand struct {
	ContractID uuid.UUID
	Status     string
}

// UpdatePaymentStatusResult contains the contract and projection after the
// update. Changed is false when the contract already had the status.
type UpdatePaymentStatusResult struct {
	Contract   *domain.Contract
	Subscriber *domain.Subscriber
	Changed    bool
}

// UpdatePaymentStatusHandler handles the UpdatePaymentStatusCommand.
type UpdatePaymentStatusHandler struct {
	deps Deps
}

// NewUpdatePaymentStatusHandler creates a new UpdatePaymentStatusHandler.
func NewUpdatePaymentStatusHandler(deps Deps) *UpdatePaymentStatusHandler {
	return &UpdatePaymentStatusHandler{deps: deps}
}

// Handle executes the UpdatePaymentStatusCommand. A paid contract enables the
// subscriber and marks it paid; other statuses only touch the contract.
func (h *UpdatePaymentStatusHandler) Handle(ctx context.Context, cmd UpdatePaymentStatusCommand) (*UpdatePaymentStatusResult, error) {
	status, err := domain.ParsePaymentStatus(cmd.Status)
	if err != nil {
		return nil, err
	}

	found, err := h.deps.loadContract(ctx, cmd.ContractID)
	if err != nil {
		return nil, err
	}

	var result *UpdatePaymentStatusResult
	err = h.deps.mutate(ctx, found.SubscriberID(), func(txCtx context.Context) error {
		contract, err := h.deps.loadContract(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}

		changed, err := contract.ChangePaymentStatus(status)
		if err != nil {
			return err
		}
		if changed {
			if err := h.deps.Contracts.Save(txCtx, contract); err != nil {
				return err
			}
		}

		var subscriber *domain.Subscriber
		if status == domain.PaymentPaid {
			subscriber, err = h.deps.loadSubscriber(txCtx, contract.SubscriberID())
			if err != nil {
				return err
			}
			if subscriber.MarkPaid() {
				if err := h.deps.Subscribers.Save(txCtx, subscriber); err != nil {
					return err
				}
			}
		}

		if err := h.deps.recordEvents(txCtx, contract); err != nil {
			return err
		}

		result = &UpdatePaymentStatusResult{Contract: contract, Subscriber: subscriber, Changed: changed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
