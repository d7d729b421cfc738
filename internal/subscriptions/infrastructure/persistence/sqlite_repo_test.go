package persistence_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/shared/application"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/internal/subscriptions/infrastructure/persistence"
)

func setupSQLite(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "portal.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}

var today = domain.MustParseDate("2024-06-10")

func newContract(t *testing.T, subscriberID uuid.UUID, start domain.Date) *domain.Contract {
	t.Helper()
	c, err := domain.NewContract(subscriberID, domain.ContractTerms{
		PlanID:       domain.PlanPremium,
		BillingCycle: domain.BillingMonthly,
		Amount:       decimal.RequireFromString("99.90"),
		StartDate:    start,
		AutoRenew:    true,
	}, today)
	require.NoError(t, err)
	return c
}

func TestSQLiteContractRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLiteContractRepository(setupSQLite(t))
	subscriberID := uuid.New()

	c := newContract(t, subscriberID, domain.MustParseDate("2024-01-15"))
	require.NoError(t, repo.Save(ctx, c))
	assert.Equal(t, 1, c.Version())

	found, err := repo.FindByID(ctx, c.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID(), found.ID())
	assert.Equal(t, subscriberID, found.SubscriberID())
	assert.Equal(t, domain.PlanPremium, found.PlanID())
	assert.Equal(t, domain.MustParseDate("2024-01-15"), found.StartDate())
	assert.Equal(t, domain.MustParseDate("2024-02-15"), found.EndDate())
	assert.Equal(t, domain.BillingMonthly, found.BillingCycle())
	assert.Equal(t, "99.90", found.Amount().StringFixed(2))
	assert.Equal(t, domain.PaymentPending, found.PaymentStatus())
	assert.True(t, found.AutoRenew())
	assert.Nil(t, found.RenewedFromID())
	assert.Equal(t, 1, found.Version())
	assert.WithinDuration(t, c.CreatedAt(), found.CreatedAt(), time.Microsecond)

	t.Run("missing contract", func(t *testing.T) {
		missing, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestSQLiteContractRepository_UpdateIsOptimistic(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLiteContractRepository(setupSQLite(t))

	c := newContract(t, uuid.New(), today)
	require.NoError(t, repo.Save(ctx, c))

	stale, err := repo.FindByID(ctx, c.ID())
	require.NoError(t, err)

	_, err = c.ChangePaymentStatus(domain.PaymentPaid)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))
	assert.Equal(t, 2, c.Version())

	_, err = stale.ChangePaymentStatus(domain.PaymentCancelled)
	require.NoError(t, err)
	err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	found, err := repo.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, found.PaymentStatus())
}

func TestSQLiteContractRepository_FindBySubscriber(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLiteContractRepository(setupSQLite(t))
	subscriberID := uuid.New()

	first := newContract(t, subscriberID, domain.MustParseDate("2024-01-01"))
	require.NoError(t, repo.Save(ctx, first))
	time.Sleep(2 * time.Millisecond)
	second := newContract(t, subscriberID, domain.MustParseDate("2024-02-01"))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, newContract(t, uuid.New(), today)))

	contracts, err := repo.FindBySubscriber(ctx, subscriberID)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, second.ID(), contracts[0].ID())
	assert.Equal(t, first.ID(), contracts[1].ID())

	none, err := repo.FindBySubscriber(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteContractRepository_LiveRenewal(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLiteContractRepository(setupSQLite(t))

	source := newContract(t, uuid.New(), today)
	require.NoError(t, repo.Save(ctx, source))

	none, err := repo.FindLiveRenewalOf(ctx, source.ID())
	require.NoError(t, err)
	assert.Nil(t, none)

	renewal, err := source.Renew(today)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, renewal))

	found, err := repo.FindLiveRenewalOf(ctx, source.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, renewal.ID(), found.ID())
	require.NotNil(t, found.RenewedFromID())
	assert.Equal(t, source.ID(), *found.RenewedFromID())

	t.Run("second live renewal is rejected", func(t *testing.T) {
		duplicate, err := source.Renew(today)
		require.NoError(t, err)
		err = repo.Save(ctx, duplicate)
		assert.ErrorIs(t, err, domain.ErrDuplicateRenewal)
	})

	t.Run("cancelled renewal frees the slot", func(t *testing.T) {
		_, err := renewal.ChangePaymentStatus(domain.PaymentCancelled)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, renewal))

		gone, err := repo.FindLiveRenewalOf(ctx, source.ID())
		require.NoError(t, err)
		assert.Nil(t, gone)

		next, err := source.Renew(today)
		require.NoError(t, err)
		assert.NoError(t, repo.Save(ctx, next))
	})
}

func TestSQLiteSubscriberRepository(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLiteSubscriberRepository(setupSQLite(t))
	id := uuid.New()

	missing, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, missing)

	s, err := domain.NewSubscriber(id)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, s))

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.PlanFree, found.PlanType())
	assert.False(t, found.Status())
	assert.True(t, found.ContractEndDate().IsZero())

	c := newContract(t, id, domain.MustParseDate("2024-01-15"))
	found.ApplyContract(c)
	found.MarkPaid()
	require.NoError(t, repo.Save(ctx, found))

	updated, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, updated.PlanType())
	assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus())
	assert.True(t, updated.Status())
	assert.Equal(t, domain.MustParseDate("2024-01-15"), updated.ContractStartDate())
	assert.Equal(t, domain.MustParseDate("2024-02-15"), updated.ContractEndDate())
	assert.WithinDuration(t, s.CreatedAt(), updated.CreatedAt(), time.Microsecond)
}

func TestSQLiteSubscriberRepository_LegacyPlanSpelling(t *testing.T) {
	ctx := context.Background()
	conn := setupSQLite(t)
	repo := persistence.NewSQLiteSubscriberRepository(conn)
	id := uuid.New()
	now := database.FormatTimestamp(time.Now())

	_, err := conn.Exec(ctx, `INSERT INTO subscribers (id, plan_type, payment_status, status, created_at, updated_at)
		VALUES (?, 'essencial', 'paid', 1, ?, ?)`, id.String(), now, now)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanEssential, found.PlanType())
	assert.True(t, found.Status())
}

func TestSQLiteRepositories_ShareTransaction(t *testing.T) {
	ctx := context.Background()
	conn := setupSQLite(t)
	contracts := persistence.NewSQLiteContractRepository(conn)
	subscribers := persistence.NewSQLiteSubscriberRepository(conn)
	uow := database.NewUnitOfWork(conn)

	s, err := domain.NewSubscriber(uuid.New())
	require.NoError(t, err)
	c := newContract(t, s.ID(), today)
	s.ApplyContract(c)

	err = application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		require.NoError(t, contracts.Save(txCtx, c))
		require.NoError(t, subscribers.Save(txCtx, s))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	found, err := contracts.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Nil(t, found)

	projection, err := subscribers.FindByID(ctx, s.ID())
	require.NoError(t, err)
	assert.Nil(t, projection)
}
