package domain

import (
	"context"

	"github.com/google/uuid"
)

// ContractRepository defines the interface for contract persistence.
type ContractRepository interface {
	// Save inserts a new contract or updates an existing one. Updates fail
	// with ErrConcurrentModification when the stored version moved, and a
	// second live renewal of the same contract fails with ErrDuplicateRenewal.
	Save(ctx context.Context, contract *Contract) error

	// FindByID returns nil when the contract does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Contract, error)

	// FindBySubscriber returns all contracts of a subscriber, newest first.
	FindBySubscriber(ctx context.Context, subscriberID uuid.UUID) ([]*Contract, error)

	// FindLiveRenewalOf returns the pending or paid renewal of a contract, or nil.
	FindLiveRenewalOf(ctx context.Context, contractID uuid.UUID) (*Contract, error)
}

// SubscriberRepository defines the interface for the subscriber projection.
type SubscriberRepository interface {
	// FindByID returns nil when the subscriber has no projection row.
	FindByID(ctx context.Context, id uuid.UUID) (*Subscriber, error)

	// Save upserts the projection.
	Save(ctx context.Context, subscriber *Subscriber) error
}
