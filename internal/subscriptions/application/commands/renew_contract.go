package commands

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// RenewContractCommand contains the data needed to renew a contract.
type RenewContractCommand struct {
	ContractID uuid.UUID
}

// RenewContractResult contains the renewal and, when it was created, the
// projection now pointing at it. Created is false when the contract already
// had a live renewal, which is returned instead.
type RenewContractResult struct {
	Contract   *domain.Contract
	Subscriber *domain.Subscriber
	Created    bool
}

// RenewContractHandler handles the RenewContractCommand.
type RenewContractHandler struct {
	deps Deps
}

// NewRenewContractHandler creates a new RenewContractHandler.
func NewRenewContractHandler(deps Deps) *RenewContractHandler {
	return &RenewContractHandler{deps: deps}
}

// Handle executes the RenewContractCommand.
func (h *RenewContractHandler) Handle(ctx context.Context, cmd RenewContractCommand) (*RenewContractResult, error) {
	source, err := h.deps.loadContract(ctx, cmd.ContractID)
	if err != nil {
		return nil, err
	}

	var result *RenewContractResult
	err = h.deps.mutate(ctx, source.SubscriberID(), func(txCtx context.Context) error {
		source, err := h.deps.loadContract(txCtx, cmd.ContractID)
		if err != nil {
			return err
		}

		existing, err := h.deps.Contracts.FindLiveRenewalOf(txCtx, source.ID())
		if err != nil {
			return err
		}
		if existing != nil {
			result = &RenewContractResult{Contract: existing}
			return nil
		}

		renewal, err := source.Renew(h.deps.Clock.Today())
		if err != nil {
			return err
		}
		subscriber, err := h.deps.loadSubscriber(txCtx, source.SubscriberID())
		if err != nil {
			return err
		}
		subscriber.ApplyContract(renewal)

		if err := h.deps.Contracts.Save(txCtx, renewal); err != nil {
			return err
		}
		if err := h.deps.Subscribers.Save(txCtx, subscriber); err != nil {
			return err
		}
		if err := h.deps.recordEvents(txCtx, renewal, subscriber); err != nil {
			return err
		}

		result = &RenewContractResult{Contract: renewal, Subscriber: subscriber, Created: true}
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateRenewal) {
		// A writer outside this process's lock stored a renewal first.
		return h.existingRenewal(ctx, cmd.ContractID, err)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (h *RenewContractHandler) existingRenewal(ctx context.Context, contractID uuid.UUID, cause error) (*RenewContractResult, error) {
	existing, err := h.deps.Contracts.FindLiveRenewalOf(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, cause
	}
	return &RenewContractResult{Contract: existing}, nil
}
