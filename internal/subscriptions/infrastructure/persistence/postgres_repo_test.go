package persistence_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/internal/subscriptions/infrastructure/persistence"
)

func setupPostgres(t *testing.T) (database.Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return database.NewSQLConnection(db, database.DriverPostgres), mock
}

var contractColumns = []string{
	"id", "subscriber_id", "plan_id", "start_date", "end_date", "billing_cycle",
	"amount", "payment_status", "auto_renew", "renewed_from_id", "version", "created_at", "updated_at",
}

func TestPostgresContractRepository_Insert(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	c := newContract(t, uuid.New(), domain.MustParseDate("2024-01-15"))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contracts")).
		WithArgs(c.ID().String(), c.SubscriberID().String(), "premium", "2024-01-15", "2024-02-15",
			"monthly", "99.90", "pending", true, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), c))
	assert.Equal(t, 1, c.Version())
}

func TestPostgresContractRepository_InsertDuplicateRenewal(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	source := newContract(t, uuid.New(), today)
	renewal, err := source.Renew(today)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contracts")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_contracts_live_renewal"})

	err = repo.Save(context.Background(), renewal)
	assert.ErrorIs(t, err, domain.ErrDuplicateRenewal)
	assert.True(t, renewal.IsNew())
}

func TestPostgresContractRepository_Update(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	now := time.Now().UTC()
	c := domain.RehydrateContract(domain.ContractState{
		ID:            uuid.New(),
		SubscriberID:  uuid.New(),
		PlanID:        domain.PlanEssential,
		StartDate:     today,
		EndDate:       today.AddMonths(1),
		BillingCycle:  domain.BillingMonthly,
		PaymentStatus: domain.PaymentPending,
		Version:       4,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	_, err := c.ChangePaymentStatus(domain.PaymentPaid)
	require.NoError(t, err)

	t.Run("bumps the version", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts")).
			WithArgs("paid", false, sqlmock.AnyArg(), c.ID().String(), 4).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), c))
		assert.Equal(t, 5, c.Version())
	})

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts")).
			WithArgs("paid", false, sqlmock.AnyArg(), c.ID().String(), 5).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), c)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.ErrorIs(t, err, database.ErrStaleWrite)
		assert.Equal(t, 5, c.Version())
	})
}

func TestPostgresContractRepository_FindByID(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	id := uuid.New()
	subscriberID := uuid.New()
	sourceID := uuid.New()
	created := time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contracts WHERE id = $1")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(contractColumns).AddRow(
			id.String(), subscriberID.String(), "essencial", "2024-01-15", "2025-01-15", "annual",
			"499.00", "paid", false, sourceID.String(), 2, created, created,
		))

	c, err := repo.FindByID(context.Background(), id)

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.PlanEssential, c.PlanID())
	assert.Equal(t, domain.BillingAnnual, c.BillingCycle())
	assert.Equal(t, domain.MustParseDate("2025-01-15"), c.EndDate())
	assert.Equal(t, "499.00", c.Amount().StringFixed(2))
	assert.Equal(t, sourceID, *c.RenewedFromID())
	assert.Equal(t, 2, c.Version())
	assert.Equal(t, created, c.CreatedAt())
}

func TestPostgresContractRepository_FindByIDMissing(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM contracts WHERE id = $1")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(contractColumns))

	c, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestPostgresContractRepository_FindBySubscriber(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	subscriberID := uuid.New()
	newer, older := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, start_date DESC")).
		WithArgs(subscriberID.String()).
		WillReturnRows(sqlmock.NewRows(contractColumns).
			AddRow(newer.String(), subscriberID.String(), "premium", "2024-06-01", "2024-07-01", "monthly",
				"99.90", "pending", true, nil, 1, now, now).
			AddRow(older.String(), subscriberID.String(), "free", "2024-01-01", "2024-02-01", "monthly",
				"0.00", "expired", false, nil, 3, now.Add(-time.Hour), now))

	contracts, err := repo.FindBySubscriber(context.Background(), subscriberID)

	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, newer, contracts[0].ID())
	assert.Equal(t, domain.PaymentExpired, contracts[1].PaymentStatus())
	assert.True(t, contracts[1].Amount().IsZero())
}

func TestPostgresContractRepository_QueryFailure(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contracts")).WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.FindBySubscriber(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestPostgresContractRepository_FindLiveRenewalOf(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresContractRepository(conn)
	sourceID := uuid.New()
	renewalID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE renewed_from_id = $1 AND payment_status IN ('pending', 'paid')")).
		WithArgs(sourceID.String()).
		WillReturnRows(sqlmock.NewRows(contractColumns).AddRow(
			renewalID.String(), uuid.New().String(), "premium", "2024-07-02", "2024-08-02", "monthly",
			"99.90", "pending", true, sourceID.String(), 1, now, now,
		))

	renewal, err := repo.FindLiveRenewalOf(context.Background(), sourceID)

	require.NoError(t, err)
	require.NotNil(t, renewal)
	assert.Equal(t, renewalID, renewal.ID())
}

func TestPostgresSubscriberRepository(t *testing.T) {
	conn, mock := setupPostgres(t)
	repo := persistence.NewPostgresSubscriberRepository(conn)
	id := uuid.New()
	now := time.Now().UTC()

	t.Run("find", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM subscribers")).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "plan_type", "payment_status", "status", "contract_start", "contract_end", "created_at", "updated_at",
			}).AddRow(id.String(), "premium", "paid", true, "2024-01-15", "2024-02-15", now, now))

		s, err := repo.FindByID(context.Background(), id)

		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, domain.PlanPremium, s.PlanType())
		assert.True(t, s.Status())
		assert.Equal(t, domain.MustParseDate("2024-02-15"), s.ContractEndDate())
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM subscribers")).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		s, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("upsert", func(t *testing.T) {
		s, err := domain.NewSubscriber(id)
		require.NoError(t, err)

		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
			WithArgs(id.String(), "free", "pending", false, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), s))
		assert.False(t, s.IsNew())
	})

	t.Run("upsert failure", func(t *testing.T) {
		s, err := domain.NewSubscriber(id)
		require.NoError(t, err)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscribers")).WillReturnError(errors.New("read-only transaction"))

		err = repo.Save(context.Background(), s)
		assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	})
}
