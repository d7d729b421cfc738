package queries

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// GetActiveContractQuery contains the parameters for the active contract lookup.
type GetActiveContractQuery struct {
	SubscriberID uuid.UUID
}

// GetActiveContractHandler handles the GetActiveContractQuery.
type GetActiveContractHandler struct {
	contracts domain.ContractRepository
	clock     domain.Clock
}

// NewGetActiveContractHandler creates a new GetActiveContractHandler.
func NewGetActiveContractHandler(contracts domain.ContractRepository, clock domain.Clock) *GetActiveContractHandler {
	return &GetActiveContractHandler{contracts: contracts, clock: clock}
}

// Handle returns the active contract, or nil when the subscriber has none.
func (h *GetActiveContractHandler) Handle(ctx context.Context, query GetActiveContractQuery) (*ContractDTO, error) {
	today := h.clock.Today()
	active, err := activeContract(ctx, h.contracts, query.SubscriberID, today)
	if err != nil || active == nil {
		return nil, err
	}
	dto := ToContractDTO(active, today)
	return &dto, nil
}

func activeContract(ctx context.Context, contracts domain.ContractRepository, subscriberID uuid.UUID, today domain.Date) (*domain.Contract, error) {
	all, err := contracts.FindBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return domain.SelectActive(all, today), nil
}
