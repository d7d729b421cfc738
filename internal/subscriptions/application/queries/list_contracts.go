package queries

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ListContractsQuery contains the parameters for listing a subscriber's contracts.
type ListContractsQuery struct {
	SubscriberID uuid.UUID
	OnlyLive     bool // pending or paid only
}

// ListContractsHandler handles the ListContractsQuery.
type ListContractsHandler struct {
	contracts domain.ContractRepository
	clock     domain.Clock
}

// NewListContractsHandler creates a new ListContractsHandler.
func NewListContractsHandler(contracts domain.ContractRepository, clock domain.Clock) *ListContractsHandler {
	return &ListContractsHandler{contracts: contracts, clock: clock}
}

// Handle returns the contract history, newest first.
func (h *ListContractsHandler) Handle(ctx context.Context, query ListContractsQuery) ([]ContractDTO, error) {
	contracts, err := h.contracts.FindBySubscriber(ctx, query.SubscriberID)
	if err != nil {
		return nil, err
	}
	if query.OnlyLive {
		contracts = lo.Filter(contracts, func(c *domain.Contract, _ int) bool {
			return c.IsLive()
		})
	}
	return ToContractDTOs(contracts, h.clock.Today()), nil
}
