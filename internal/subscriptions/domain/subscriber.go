package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/google/uuid"
)

// Subscriber is the lifecycle's projection onto the subscriber record. The
// lifecycle is its only writer.
type Subscriber struct {
	sharedDomain.BaseAggregateRoot
	planType      PlanID
	paymentStatus PaymentStatus
	status        bool
	contractStart Date
	contractEnd   Date
}

// NewSubscriber returns the projection of a subscriber that has no contract
// yet: free plan, payment pending, service disabled.
func NewSubscriber(id uuid.UUID) (*Subscriber, error) {
	if id == uuid.Nil {
		return nil, ErrMissingSubscriber
	}
	return &Subscriber{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(id),
		planType:          PlanFree,
		paymentStatus:     PaymentPending,
	}, nil
}

// Getters
func (s *Subscriber) PlanType() PlanID             { return s.planType }
func (s *Subscriber) PaymentStatus() PaymentStatus { return s.paymentStatus }
func (s *Subscriber) Status() bool                 { return s.status }
func (s *Subscriber) ContractStartDate() Date      { return s.contractStart }
func (s *Subscriber) ContractEndDate() Date        { return s.contractEnd }

// ApplyContract copies a newly opened contract onto the projection.
func (s *Subscriber) ApplyContract(c *Contract) {
	s.planType = c.PlanID()
	s.contractStart = c.StartDate()
	s.contractEnd = c.EndDate()
	s.paymentStatus = c.PaymentStatus().Collapsed()
	s.Touch()
}

// MarkPaid enables the service and records the payment. It reports false when
// the projection was already enabled and paid.
func (s *Subscriber) MarkPaid() bool {
	if s.status && s.paymentStatus == PaymentPaid {
		return false
	}
	s.status = true
	s.paymentStatus = PaymentPaid
	s.Touch()
	return true
}

// ChangePlan moves the subscriber to target and leaves payment pending.
// Both plans must be in the catalog and differ.
func (s *Subscriber) ChangePlan(catalog *Catalog, target PlanID) (PlanChangeDirection, error) {
	target = ParsePlanID(string(target))
	if target == s.planType {
		return "", ErrAlreadyOnPlan
	}
	direction, err := catalog.Direction(s.planType, target)
	if err != nil {
		return "", err
	}

	previous := s.planType
	s.planType = target
	s.paymentStatus = PaymentPending
	s.Touch()
	s.AddDomainEvent(NewSubscriberPlanChanged(s, previous, direction))
	return direction, nil
}

// SubscriberState is the persisted form of the projection.
type SubscriberState struct {
	ID                uuid.UUID
	PlanType          PlanID
	PaymentStatus     PaymentStatus
	Status            bool
	ContractStartDate Date
	ContractEndDate   Date
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RehydrateSubscriber recreates a projection from persistence. Legacy plan
// spellings are normalized.
func RehydrateSubscriber(st SubscriberState) *Subscriber {
	paymentStatus := st.PaymentStatus.Collapsed()
	planType := ParsePlanID(string(st.PlanType))
	if planType == "" {
		planType = PlanFree
	}
	return &Subscriber{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(st.ID, st.CreatedAt, st.UpdatedAt, 1),
		planType:          planType,
		paymentStatus:     paymentStatus,
		status:            st.Status,
		contractStart:     st.ContractStartDate,
		contractEnd:       st.ContractEndDate,
	}
}
