package queries

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SubscriptionDTO is the subscriber's current standing: projection, plan and
// active contract.
type SubscriptionDTO struct {
	Subscriber     SubscriberDTO `json:"subscriber"`
	Plan           PlanDTO       `json:"plan"`
	ActiveContract *ContractDTO  `json:"active_contract,omitempty"`
}

// GetSubscriptionQuery contains the parameters for the subscription overview.
type GetSubscriptionQuery struct {
	SubscriberID uuid.UUID
}

// GetSubscriptionHandler handles the GetSubscriptionQuery.
type GetSubscriptionHandler struct {
	subscribers domain.SubscriberRepository
	contracts   domain.ContractRepository
	catalog     *domain.Catalog
	clock       domain.Clock
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(
	subscribers domain.SubscriberRepository,
	contracts domain.ContractRepository,
	catalog *domain.Catalog,
	clock domain.Clock,
) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{
		subscribers: subscribers,
		contracts:   contracts,
		catalog:     catalog,
		clock:       clock,
	}
}

// Handle builds the overview. A subscriber without a projection row reads as
// a free subscriber with no contract.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, query GetSubscriptionQuery) (*SubscriptionDTO, error) {
	subscriber, err := h.subscribers.FindByID(ctx, query.SubscriberID)
	if err != nil {
		return nil, err
	}
	if subscriber == nil {
		if subscriber, err = domain.NewSubscriber(query.SubscriberID); err != nil {
			return nil, err
		}
	}

	today := h.clock.Today()
	active, err := activeContract(ctx, h.contracts, query.SubscriberID, today)
	if err != nil {
		return nil, err
	}

	plan, err := h.catalog.Get(subscriber.PlanType())
	if err != nil {
		return nil, err
	}

	result := &SubscriptionDTO{
		Subscriber: ToSubscriberDTO(subscriber),
		Plan:       ToPlanDTO(plan),
	}
	if active != nil {
		dto := ToContractDTO(active, today)
		result.ActiveContract = &dto
	}
	return result, nil
}
