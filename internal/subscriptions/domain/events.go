package domain

import (
	sharedDomain "github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	contractAggregateType   = "Contract"
	subscriberAggregateType = "Subscriber"
)

// Routing keys of the lifecycle events.
const (
	RoutingContractCreated              = "subscriptions.contract.created"
	RoutingContractRenewed              = "subscriptions.contract.renewed"
	RoutingContractPaymentStatusChanged = "subscriptions.contract.payment_status_changed"
	RoutingSubscriberPlanChanged        = "subscriptions.subscriber.plan_changed"
)

// ContractCreated is emitted when a contract is opened.
type ContractCreated struct {
	sharedDomain.BaseEvent
	ContractID    uuid.UUID `json:"contract_id"`
	SubscriberID  uuid.UUID `json:"subscriber_id"`
	PlanID        string    `json:"plan_id"`
	BillingCycle  string    `json:"billing_cycle"`
	Amount        string    `json:"amount"`
	StartDate     Date      `json:"start_date"`
	EndDate       Date      `json:"end_date"`
	PaymentStatus string    `json:"payment_status"`
	AutoRenew     bool      `json:"auto_renew"`
}

// NewContractCreated creates a ContractCreated event.
func NewContractCreated(c *Contract) *ContractCreated {
	return &ContractCreated{
		BaseEvent:     sharedDomain.NewBaseEvent(c.ID(), contractAggregateType, RoutingContractCreated),
		ContractID:    c.ID(),
		SubscriberID:  c.SubscriberID(),
		PlanID:        string(c.PlanID()),
		BillingCycle:  string(c.BillingCycle()),
		Amount:        c.Amount().StringFixed(2),
		StartDate:     c.StartDate(),
		EndDate:       c.EndDate(),
		PaymentStatus: string(c.PaymentStatus()),
		AutoRenew:     c.AutoRenew(),
	}
}

// ContractRenewed is emitted on the new contract when a contract is renewed.
type ContractRenewed struct {
	sharedDomain.BaseEvent
	ContractID    uuid.UUID `json:"contract_id"`
	RenewedFromID uuid.UUID `json:"renewed_from_id"`
	SubscriberID  uuid.UUID `json:"subscriber_id"`
	PlanID        string    `json:"plan_id"`
	BillingCycle  string    `json:"billing_cycle"`
	Amount        string    `json:"amount"`
	StartDate     Date      `json:"start_date"`
	EndDate       Date      `json:"end_date"`
}

// NewContractRenewed creates a ContractRenewed event.
func NewContractRenewed(c *Contract) *ContractRenewed {
	var from uuid.UUID
	if c.RenewedFromID() != nil {
		from = *c.RenewedFromID()
	}
	return &ContractRenewed{
		BaseEvent:     sharedDomain.NewBaseEvent(c.ID(), contractAggregateType, RoutingContractRenewed),
		ContractID:    c.ID(),
		RenewedFromID: from,
		SubscriberID:  c.SubscriberID(),
		PlanID:        string(c.PlanID()),
		BillingCycle:  string(c.BillingCycle()),
		Amount:        c.Amount().StringFixed(2),
		StartDate:     c.StartDate(),
		EndDate:       c.EndDate(),
	}
}

// ContractPaymentStatusChanged is emitted when a contract's payment status moves.
type ContractPaymentStatusChanged struct {
	sharedDomain.BaseEvent
	ContractID   uuid.UUID `json:"contract_id"`
	SubscriberID uuid.UUID `json:"subscriber_id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
}

// NewContractPaymentStatusChanged creates a ContractPaymentStatusChanged event.
func NewContractPaymentStatusChanged(c *Contract, from PaymentStatus) *ContractPaymentStatusChanged {
	return &ContractPaymentStatusChanged{
		BaseEvent:    sharedDomain.NewBaseEvent(c.ID(), contractAggregateType, RoutingContractPaymentStatusChanged),
		ContractID:   c.ID(),
		SubscriberID: c.SubscriberID(),
		From:         string(from),
		To:           string(c.PaymentStatus()),
	}
}

// SubscriberPlanChanged is emitted when a subscriber moves to another plan.
type SubscriberPlanChanged struct {
	sharedDomain.BaseEvent
	SubscriberID uuid.UUID `json:"subscriber_id"`
	FromPlan     string    `json:"from_plan"`
	ToPlan       string    `json:"to_plan"`
	Direction    string    `json:"direction"`
}

// NewSubscriberPlanChanged creates a SubscriberPlanChanged event.
func NewSubscriberPlanChanged(s *Subscriber, from PlanID, direction PlanChangeDirection) *SubscriberPlanChanged {
	return &SubscriberPlanChanged{
		BaseEvent:    sharedDomain.NewBaseEvent(s.ID(), subscriberAggregateType, RoutingSubscriberPlanChanged),
		SubscriberID: s.ID(),
		FromPlan:     string(from),
		ToPlan:       string(s.PlanType()),
		Direction:    string(direction),
	}
}
