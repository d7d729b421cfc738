// Package persistence stores contracts and the subscriber projection in
// SQLite or PostgreSQL.
package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// contractRecord is a contract row with identifiers, dates and the amount
// read as text.
type contractRecord struct {
	ID            string
	SubscriberID  string
	PlanID        string
	StartDate     string
	EndDate       string
	BillingCycle  string
	Amount        string
	PaymentStatus string
	AutoRenew     bool
	RenewedFromID sql.NullString
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r contractRecord) toDomain() (*domain.Contract, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("contract id %q: %w", r.ID, err)
	}
	subscriberID, err := uuid.Parse(r.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("contract %s subscriber id: %w", r.ID, err)
	}
	start, err := domain.ParseDate(r.StartDate)
	if err != nil {
		return nil, fmt.Errorf("contract %s start date: %w", r.ID, err)
	}
	end, err := domain.ParseDate(r.EndDate)
	if err != nil {
		return nil, fmt.Errorf("contract %s end date: %w", r.ID, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("contract %s amount: %w", r.ID, err)
	}

	var renewedFrom *uuid.UUID
	if r.RenewedFromID.Valid {
		parsed, err := uuid.Parse(r.RenewedFromID.String)
		if err != nil {
			return nil, fmt.Errorf("contract %s renewed from: %w", r.ID, err)
		}
		renewedFrom = &parsed
	}

	return domain.RehydrateContract(domain.ContractState{
		ID:            id,
		SubscriberID:  subscriberID,
		PlanID:        domain.PlanID(r.PlanID),
		StartDate:     start,
		EndDate:       end,
		BillingCycle:  domain.BillingCycle(r.BillingCycle),
		Amount:        amount,
		PaymentStatus: domain.PaymentStatus(r.PaymentStatus),
		AutoRenew:     r.AutoRenew,
		RenewedFromID: renewedFrom,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}), nil
}

// subscriberRecord is a subscriber projection row.
type subscriberRecord struct {
	ID            string
	PlanType      string
	PaymentStatus string
	Status        bool
	ContractStart sql.NullString
	ContractEnd   sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r subscriberRecord) toDomain() (*domain.Subscriber, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("subscriber id %q: %w", r.ID, err)
	}
	start, err := nullDate(r.ContractStart)
	if err != nil {
		return nil, fmt.Errorf("subscriber %s contract start: %w", r.ID, err)
	}
	end, err := nullDate(r.ContractEnd)
	if err != nil {
		return nil, fmt.Errorf("subscriber %s contract end: %w", r.ID, err)
	}

	return domain.RehydrateSubscriber(domain.SubscriberState{
		ID:                id,
		PlanType:          domain.PlanID(r.PlanType),
		PaymentStatus:     domain.PaymentStatus(r.PaymentStatus),
		Status:            r.Status,
		ContractStartDate: start,
		ContractEndDate:   end,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}), nil
}

func nullDate(s sql.NullString) (domain.Date, error) {
	if !s.Valid || s.String == "" {
		return domain.Date{}, nil
	}
	return domain.ParseDate(s.String)
}

func dateParam(d domain.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func renewedFromParam(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
