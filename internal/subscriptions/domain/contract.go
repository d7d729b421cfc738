package domain

import (
	"fmt"
	"time"

	sharedDomain "github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ExpiringSoonDays is the window, in days, in which a contract counts as
// expiring soon.
const ExpiringSoonDays = 10

// ContractTerms are the inputs for a new contract.
type ContractTerms struct {
	PlanID        PlanID
	BillingCycle  BillingCycle
	Amount        decimal.Decimal
	StartDate     Date          // today when zero
	EndDate       Date          // one billing term after StartDate when zero
	PaymentStatus PaymentStatus // pending when empty
	AutoRenew     bool
}

// Contract is one billing period of a subscriber on a plan.
type Contract struct {
	sharedDomain.BaseAggregateRoot
	subscriberID  uuid.UUID
	planID        PlanID
	startDate     Date
	endDate       Date
	billingCycle  BillingCycle
	amount        decimal.Decimal
	paymentStatus PaymentStatus
	autoRenew     bool
	renewedFromID *uuid.UUID
}

// NewContract opens a contract for a subscriber.
func NewContract(subscriberID uuid.UUID, terms ContractTerms, today Date) (*Contract, error) {
	c, err := newContract(subscriberID, terms, today)
	if err != nil {
		return nil, err
	}
	c.AddDomainEvent(NewContractCreated(c))
	return c, nil
}

func newContract(subscriberID uuid.UUID, terms ContractTerms, today Date) (*Contract, error) {
	if subscriberID == uuid.Nil {
		return nil, ErrMissingSubscriber
	}
	if terms.PlanID == "" {
		return nil, fmt.Errorf("%w: plan id is required", ErrUnknownPlan)
	}
	if !terms.BillingCycle.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBillingCycle, terms.BillingCycle)
	}
	if terms.Amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	status := terms.PaymentStatus
	if status == "" {
		status = PaymentPending
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}

	start := terms.StartDate
	if start.IsZero() {
		start = today
	}
	end := terms.EndDate
	if end.IsZero() {
		end = terms.BillingCycle.EndDate(start)
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	return &Contract{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(uuid.Nil),
		subscriberID:      subscriberID,
		planID:            ParsePlanID(string(terms.PlanID)),
		startDate:         start,
		endDate:           end,
		billingCycle:      terms.BillingCycle,
		amount:            terms.Amount,
		paymentStatus:     status,
		autoRenew:         terms.AutoRenew,
	}, nil
}

// Getters
func (c *Contract) SubscriberID() uuid.UUID      { return c.subscriberID }
func (c *Contract) PlanID() PlanID               { return c.planID }
func (c *Contract) StartDate() Date              { return c.startDate }
func (c *Contract) EndDate() Date                { return c.endDate }
func (c *Contract) BillingCycle() BillingCycle   { return c.billingCycle }
func (c *Contract) Amount() decimal.Decimal      { return c.amount }
func (c *Contract) PaymentStatus() PaymentStatus { return c.paymentStatus }
func (c *Contract) AutoRenew() bool              { return c.autoRenew }
func (c *Contract) RenewedFromID() *uuid.UUID    { return c.renewedFromID }
func (c *Contract) IsRenewal() bool              { return c.renewedFromID != nil }
func (c *Contract) IsLive() bool                 { return c.paymentStatus.IsLive() }

// Renew opens the contract for the next term. The new contract starts the
// day after this one ends, keeps plan, cycle, amount and auto-renew, and is
// pending payment. The receiver is not modified.
func (c *Contract) Renew(today Date) (*Contract, error) {
	next, err := newContract(c.subscriberID, ContractTerms{
		PlanID:        c.planID,
		BillingCycle:  c.billingCycle,
		Amount:        c.amount,
		StartDate:     c.endDate.AddDays(1),
		PaymentStatus: PaymentPending,
		AutoRenew:     c.autoRenew,
	}, today)
	if err != nil {
		return nil, err
	}
	sourceID := c.ID()
	next.renewedFromID = &sourceID
	next.AddDomainEvent(NewContractRenewed(next))
	return next, nil
}

// ChangePaymentStatus moves the contract to status. It reports false when
// the contract already had that status, in which case nothing is recorded.
func (c *Contract) ChangePaymentStatus(status PaymentStatus) (bool, error) {
	if !status.IsValid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}
	if c.paymentStatus == status {
		return false, nil
	}
	previous := c.paymentStatus
	c.paymentStatus = status
	c.Touch()
	c.AddDomainEvent(NewContractPaymentStatusChanged(c, previous))
	return true, nil
}

// DaysUntilExpiry returns the whole days from today to the end date:
// 1 when it ends tomorrow, 0 today, -1 yesterday.
func (c *Contract) DaysUntilExpiry(today Date) int {
	return today.DaysUntil(c.endDate)
}

// IsExpired reports whether the end date is before today.
func (c *Contract) IsExpired(today Date) bool {
	return c.endDate.Before(today)
}

// IsExpiringSoon reports whether the contract ends within ExpiringSoonDays,
// today included. An expired contract is never expiring soon.
func (c *Contract) IsExpiringSoon(today Date) bool {
	days := c.DaysUntilExpiry(today)
	return days >= 0 && days <= ExpiringSoonDays
}

// IsActiveOn reports whether the contract can be the active contract on day.
func (c *Contract) IsActiveOn(day Date) bool {
	return c.IsLive() && !c.IsExpired(day)
}

// SelectActive returns the most recently created contract that is live and
// not expired on today, or nil.
func SelectActive(contracts []*Contract, today Date) *Contract {
	candidates := lo.Filter(contracts, func(c *Contract, _ int) bool {
		return c != nil && c.IsActiveOn(today)
	})
	if len(candidates) == 0 {
		return nil
	}
	return lo.MaxBy(candidates, func(a, b *Contract) bool {
		if a.CreatedAt().Equal(b.CreatedAt()) {
			return a.startDate.After(b.startDate)
		}
		return a.CreatedAt().After(b.CreatedAt())
	})
}

// ContractState is the persisted form of a contract.
type ContractState struct {
	ID            uuid.UUID
	SubscriberID  uuid.UUID
	PlanID        PlanID
	StartDate     Date
	EndDate       Date
	BillingCycle  BillingCycle
	Amount        decimal.Decimal
	PaymentStatus PaymentStatus
	AutoRenew     bool
	RenewedFromID *uuid.UUID
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RehydrateContract recreates a contract from persistence.
func RehydrateContract(s ContractState) *Contract {
	return &Contract{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(s.ID, s.CreatedAt, s.UpdatedAt, s.Version),
		subscriberID:      s.SubscriberID,
		planID:            ParsePlanID(string(s.PlanID)),
		startDate:         s.StartDate,
		endDate:           s.EndDate,
		billingCycle:      s.BillingCycle,
		amount:            s.Amount,
		paymentStatus:     s.PaymentStatus,
		autoRenew:         s.AutoRenew,
		renewedFromID:     s.RenewedFromID,
	}
}
