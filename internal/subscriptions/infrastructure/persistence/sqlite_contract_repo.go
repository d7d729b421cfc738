package persistence

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

const sqliteContractColumns = `id, subscriber_id, plan_id, start_date, end_date, billing_cycle,
	amount, payment_status, auto_renew, renewed_from_id, version, created_at, updated_at`

// SQLiteContractRepository implements domain.ContractRepository using SQLite.
type SQLiteContractRepository struct {
	conn database.Connection
}

// NewSQLiteContractRepository creates a new SQLite contract repository.
func NewSQLiteContractRepository(conn database.Connection) *SQLiteContractRepository {
	return &SQLiteContractRepository{conn: conn}
}

// Save inserts a new contract or updates payment status and auto-renew of a
// stored one.
func (r *SQLiteContractRepository) Save(ctx context.Context, contract *domain.Contract) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	if contract.IsNew() {
		return r.insert(ctx, exec, contract)
	}
	return r.update(ctx, exec, contract)
}

func (r *SQLiteContractRepository) insert(ctx context.Context, exec database.Executor, c *domain.Contract) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO contracts (
			id, subscriber_id, plan_id, start_date, end_date, billing_cycle,
			amount, payment_status, auto_renew, renewed_from_id, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		c.ID().String(),
		c.SubscriberID().String(),
		string(c.PlanID()),
		c.StartDate().String(),
		c.EndDate().String(),
		string(c.BillingCycle()),
		c.Amount().StringFixed(2),
		string(c.PaymentStatus()),
		c.AutoRenew(),
		renewedFromParam(c.RenewedFromID()),
		database.FormatTimestamp(c.CreatedAt()),
		database.FormatTimestamp(c.UpdatedAt()),
	)
	if err != nil {
		return saveError(c, err)
	}
	c.SetVersion(1)
	return nil
}

func (r *SQLiteContractRepository) update(ctx context.Context, exec database.Executor, c *domain.Contract) error {
	result, err := exec.Exec(ctx, `
		UPDATE contracts
		SET payment_status = ?, auto_renew = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(c.PaymentStatus()),
		c.AutoRenew(),
		database.FormatTimestamp(c.UpdatedAt()),
		c.ID().String(),
		c.Version(),
	)
	if err != nil {
		return saveError(c, err)
	}
	return checkVersionedUpdate(c, result)
}

// FindByID returns nil when the contract does not exist.
func (r *SQLiteContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+sqliteContractColumns+` FROM contracts WHERE id = ?`, id.String())
	return r.scanOne(row, "find contract")
}

// FindBySubscriber returns all contracts of a subscriber, newest first.
func (r *SQLiteContractRepository) FindBySubscriber(ctx context.Context, subscriberID uuid.UUID) ([]*domain.Contract, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+sqliteContractColumns+` FROM contracts
		WHERE subscriber_id = ?
		ORDER BY created_at DESC, start_date DESC`,
		subscriberID.String())
	if err != nil {
		return nil, domain.NewPersistenceError("find contracts", err)
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("find contracts", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("find contracts", err)
	}
	return contracts, nil
}

// FindLiveRenewalOf returns the pending or paid renewal of a contract, or nil.
func (r *SQLiteContractRepository) FindLiveRenewalOf(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+sqliteContractColumns+` FROM contracts
		WHERE renewed_from_id = ? AND payment_status IN ('pending', 'paid')
		ORDER BY created_at DESC
		LIMIT 1`,
		contractID.String())
	return r.scanOne(row, "find renewal")
}

func (r *SQLiteContractRepository) scanOne(row database.Row, op string) (*domain.Contract, error) {
	c, err := r.scan(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError(op, err)
	}
	return c, nil
}

func (r *SQLiteContractRepository) scan(row database.Row) (*domain.Contract, error) {
	var rec contractRecord
	var createdAt, updatedAt string
	if err := row.Scan(
		&rec.ID,
		&rec.SubscriberID,
		&rec.PlanID,
		&rec.StartDate,
		&rec.EndDate,
		&rec.BillingCycle,
		&rec.Amount,
		&rec.PaymentStatus,
		&rec.AutoRenew,
		&rec.RenewedFromID,
		&rec.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = database.ParseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = database.ParseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return rec.toDomain()
}

var _ domain.ContractRepository = (*SQLiteContractRepository)(nil)
