package commands

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateContractCommand contains the data needed to open a contract.
type CreateContractCommand struct {
	SubscriberID  uuid.UUID
	PlanID        string
	BillingCycle  string
	Amount        *decimal.Decimal // catalog price when nil
	StartDate     domain.Date      // today when zero
	PaymentStatus string           // pending when empty
	AutoRenew     bool
}

// CreateContractResult contains the new contract and the updated projection.
type CreateContractResult struct {
	Contract   *domain.Contract
	Subscriber *domain.Subscriber
}

// CreateContractHandler handles the CreateContractCommand.
type CreateContractHandler struct {
	deps Deps
}

// NewCreateContractHandler creates a new CreateContractHandler.
func NewCreateContractHandler(deps Deps) *CreateContractHandler {
	return &CreateContractHandler{deps: deps}
}

// Handle executes the CreateContractCommand.
func (h *CreateContractHandler) Handle(ctx context.Context, cmd CreateContractCommand) (*CreateContractResult, error) {
	if cmd.SubscriberID == uuid.Nil {
		return nil, domain.ErrMissingSubscriber
	}
	terms, err := h.terms(cmd)
	if err != nil {
		return nil, err
	}

	var result *CreateContractResult
	err = h.deps.mutate(ctx, cmd.SubscriberID, func(txCtx context.Context) error {
		subscriber, err := h.deps.loadSubscriber(txCtx, cmd.SubscriberID)
		if err != nil {
			return err
		}

		contract, err := h.deps.openContract(txCtx, subscriber, terms)
		if err != nil {
			return err
		}

		if err := h.deps.recordEvents(txCtx, contract, subscriber); err != nil {
			return err
		}

		result = &CreateContractResult{Contract: contract, Subscriber: subscriber}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (h *CreateContractHandler) terms(cmd CreateContractCommand) (domain.ContractTerms, error) {
	plan, err := h.deps.Catalog.Get(domain.ParsePlanID(cmd.PlanID))
	if err != nil {
		return domain.ContractTerms{}, err
	}
	cycle, err := domain.ParseBillingCycle(cmd.BillingCycle)
	if err != nil {
		return domain.ContractTerms{}, err
	}

	status := domain.PaymentPending
	if cmd.PaymentStatus != "" {
		if status, err = domain.ParsePaymentStatus(cmd.PaymentStatus); err != nil {
			return domain.ContractTerms{}, err
		}
	}

	amount := plan.Price(cycle)
	if cmd.Amount != nil {
		if cmd.Amount.IsNegative() {
			return domain.ContractTerms{}, fmt.Errorf("%w: %s", domain.ErrNegativeAmount, cmd.Amount)
		}
		if !cmd.Amount.Equal(cmd.Amount.Round(2)) {
			return domain.ContractTerms{}, fmt.Errorf("%w: %s", domain.ErrAmountPrecision, cmd.Amount)
		}
		amount = *cmd.Amount
	}

	return domain.ContractTerms{
		PlanID:        plan.ID,
		BillingCycle:  cycle,
		Amount:        amount,
		StartDate:     cmd.StartDate,
		PaymentStatus: status,
		AutoRenew:     cmd.AutoRenew,
	}, nil
}
