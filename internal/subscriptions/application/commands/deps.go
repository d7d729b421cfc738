package commands

import (
	"context"
	"errors"
	"fmt"

	sharedApplication "github.com/felixgeelhaar/portal/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// Deps are the collaborators shared by the lifecycle command handlers.
type Deps struct {
	Contracts   domain.ContractRepository
	Subscribers domain.SubscriberRepository
	Outbox      outbox.Repository
	UnitOfWork  sharedApplication.UnitOfWork
	Locker      sharedApplication.Locker
	Catalog     *domain.Catalog
	Clock       domain.Clock
}

// SubscriberLockKey is the lock every mutation of a subscriber holds.
func SubscriberLockKey(subscriberID uuid.UUID) string {
	return "subscriber:" + subscriberID.String()
}

// mutate runs fn under the subscriber lock inside one unit of work.
func (d Deps) mutate(ctx context.Context, subscriberID uuid.UUID, fn func(ctx context.Context) error) error {
	err := sharedApplication.WithLock(ctx, d.Locker, SubscriberLockKey(subscriberID), func(ctx context.Context) error {
		return sharedApplication.WithUnitOfWork(ctx, persistentUnitOfWork{d.UnitOfWork}, fn)
	})
	if errors.Is(err, sharedApplication.ErrLockTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrMutationInProgress, err)
	}
	return err
}

// loadSubscriber returns the stored projection or a fresh one.
func (d Deps) loadSubscriber(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	subscriber, err := d.Subscribers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscriber == nil {
		return domain.NewSubscriber(id)
	}
	return subscriber, nil
}

// loadContract returns the contract or ErrContractNotFound.
func (d Deps) loadContract(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	contract, err := d.Contracts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrContractNotFound, id)
	}
	return contract, nil
}

// openContract creates a contract and copies it onto the subscriber.
func (d Deps) openContract(ctx context.Context, subscriber *domain.Subscriber, terms domain.ContractTerms) (*domain.Contract, error) {
	contract, err := domain.NewContract(subscriber.ID(), terms, d.Clock.Today())
	if err != nil {
		return nil, err
	}
	subscriber.ApplyContract(contract)

	if err := d.Contracts.Save(ctx, contract); err != nil {
		return nil, err
	}
	if err := d.Subscribers.Save(ctx, subscriber); err != nil {
		return nil, err
	}
	return contract, nil
}

// recordEvents writes the pending events of the aggregates to the outbox.
func (d Deps) recordEvents(ctx context.Context, aggregates ...sharedDomain.AggregateRoot) error {
	var events []sharedDomain.DomainEvent
	for _, aggregate := range aggregates {
		events = append(events, aggregate.DomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}

	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	if err := d.Outbox.SaveBatch(ctx, msgs); err != nil {
		return domain.NewPersistenceError("save outbox messages", err)
	}

	for _, aggregate := range aggregates {
		aggregate.ClearDomainEvents()
	}
	return nil
}

// persistentUnitOfWork reports transaction failures as persistence failures.
type persistentUnitOfWork struct {
	sharedApplication.UnitOfWork
}

func (u persistentUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	txCtx, err := u.UnitOfWork.Begin(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("begin transaction", err)
	}
	return txCtx, nil
}

func (u persistentUnitOfWork) Commit(ctx context.Context) error {
	return domain.NewPersistenceError("commit transaction", u.UnitOfWork.Commit(ctx))
}

func (u persistentUnitOfWork) Rollback(ctx context.Context) error {
	return domain.NewPersistenceError("rollback transaction", u.UnitOfWork.Rollback(ctx))
}
