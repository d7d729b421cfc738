package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockContractRepo is a mock implementation of domain.ContractRepository.
type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) Save(ctx context.Context, contract *domain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *mockContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *mockContractRepo) FindBySubscriber(ctx context.Context, subscriberID uuid.UUID) ([]*domain.Contract, error) {
	args := m.Called(ctx, subscriberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Contract), args.Error(1)
}

func (m *mockContractRepo) FindLiveRenewalOf(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

// mockSubscriberRepo is a mock implementation of domain.SubscriberRepository.
type mockSubscriberRepo struct {
	mock.Mock
}

func (m *mockSubscriberRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscriber), args.Error(1)
}

func (m *mockSubscriberRepo) Save(ctx context.Context, subscriber *domain.Subscriber) error {
	args := m.Called(ctx, subscriber)
	return args.Error(0)
}

// mockOutboxRepo is a mock implementation of outbox.Repository.
type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, err, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetFailed(ctx context.Context, maxRetries, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockUnitOfWork is a mock implementation of UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// stubLocker grants every key unless err is set.
type stubLocker struct {
	keys []string
	err  error
}

func (l *stubLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() {}, nil
}

type fixture struct {
	contracts   *mockContractRepo
	subscribers *mockSubscriberRepo
	outbox      *mockOutboxRepo
	uow         *mockUnitOfWork
	locker      *stubLocker
	today       domain.Date
	ctx         context.Context
	txCtx       context.Context
}

func newFixture() *fixture {
	ctx := context.Background()
	return &fixture{
		contracts:   new(mockContractRepo),
		subscribers: new(mockSubscriberRepo),
		outbox:      new(mockOutboxRepo),
		uow:         new(mockUnitOfWork),
		locker:      &stubLocker{},
		today:       domain.MustParseDate("2024-06-10"),
		ctx:         ctx,
		txCtx:       context.WithValue(ctx, "tx", "transaction"),
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Contracts:   f.contracts,
		Subscribers: f.subscribers,
		Outbox:      f.outbox,
		UnitOfWork:  f.uow,
		Locker:      f.locker,
		Catalog:     domain.DefaultCatalog(),
		Clock:       domain.FixedClock(f.today),
	}
}

func (f *fixture) expectCommit() {
	f.uow.On("Begin", f.ctx).Return(f.txCtx, nil)
	f.uow.On("Commit", f.txCtx).Return(nil)
}

func (f *fixture) expectRollback() {
	f.uow.On("Begin", f.ctx).Return(f.txCtx, nil)
	f.uow.On("Rollback", f.txCtx).Return(nil)
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.contracts.AssertExpectations(t)
	f.subscribers.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
	f.uow.AssertExpectations(t)
}

func routingKeys(msgs []*outbox.Message) []string {
	keys := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}
