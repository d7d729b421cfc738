package queries

import (
	"time"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PlanDTO is a data transfer object for catalog plans.
type PlanDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MonthlyPrice string   `json:"monthly_price"`
	AnnualPrice  string   `json:"annual_price"`
	Rank         int      `json:"rank"`
	Features     []string `json:"features"`
}

// ContractDTO is a data transfer object for contracts. The expiry fields are
// computed for the day the DTO was built.
type ContractDTO struct {
	ID              uuid.UUID   `json:"id"`
	SubscriberID    uuid.UUID   `json:"subscriber_id"`
	PlanID          string      `json:"plan_id"`
	StartDate       domain.Date `json:"start_date"`
	EndDate         domain.Date `json:"end_date"`
	BillingCycle    string      `json:"billing_cycle"`
	Amount          string      `json:"amount"`
	PaymentStatus   string      `json:"payment_status"`
	AutoRenew       bool        `json:"auto_renew"`
	RenewedFromID   *uuid.UUID  `json:"renewed_from_id,omitempty"`
	Expired         bool        `json:"expired"`
	ExpiringSoon    bool        `json:"expiring_soon"`
	DaysUntilExpiry int         `json:"days_until_expiry"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SubscriberDTO is a data transfer object for the subscriber projection.
type SubscriberDTO struct {
	ID                uuid.UUID   `json:"id"`
	PlanType          string      `json:"plan_type"`
	PaymentStatus     string      `json:"payment_status"`
	Status            bool        `json:"status"`
	ContractStartDate domain.Date `json:"contract_start_date"`
	ContractEndDate   domain.Date `json:"contract_end_date"`
}

// ToPlanDTO converts a plan.
func ToPlanDTO(p domain.Plan) PlanDTO {
	return PlanDTO{
		ID:           string(p.ID),
		Name:         p.Name,
		MonthlyPrice: p.MonthlyPrice.StringFixed(2),
		AnnualPrice:  p.AnnualPrice.StringFixed(2),
		Rank:         p.Rank,
		Features:     append([]string(nil), p.Features...),
	}
}

// ToContractDTO converts a contract, classifying its expiry against today.
func ToContractDTO(c *domain.Contract, today domain.Date) ContractDTO {
	return ContractDTO{
		ID:              c.ID(),
		SubscriberID:    c.SubscriberID(),
		PlanID:          string(c.PlanID()),
		StartDate:       c.StartDate(),
		EndDate:         c.EndDate(),
		BillingCycle:    string(c.BillingCycle()),
		Amount:          c.Amount().StringFixed(2),
		PaymentStatus:   string(c.PaymentStatus()),
		AutoRenew:       c.AutoRenew(),
		RenewedFromID:   c.RenewedFromID(),
		Expired:         c.IsExpired(today),
		ExpiringSoon:    c.IsExpiringSoon(today),
		DaysUntilExpiry: c.DaysUntilExpiry(today),
		CreatedAt:       c.CreatedAt(),
		UpdatedAt:       c.UpdatedAt(),
	}
}

// ToContractDTOs converts a list of contracts.
func ToContractDTOs(contracts []*domain.Contract, today domain.Date) []ContractDTO {
	return lo.Map(contracts, func(c *domain.Contract, _ int) ContractDTO {
		return ToContractDTO(c, today)
	})
}

// ToSubscriberDTO converts a subscriber projection.
func ToSubscriberDTO(s *domain.Subscriber) SubscriberDTO {
	return SubscriberDTO{
		ID:                s.ID(),
		PlanType:          string(s.PlanType()),
		PaymentStatus:     string(s.PaymentStatus()),
		Status:            s.Status(),
		ContractStartDate: s.ContractStartDate(),
		ContractEndDate:   s.ContractEndDate(),
	}
}
