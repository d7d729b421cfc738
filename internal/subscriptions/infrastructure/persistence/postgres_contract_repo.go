package persistence

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

const postgresContractColumns = `id::text, subscriber_id::text, plan_id,
	to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), billing_cycle,
	amount::text, payment_status, auto_renew, renewed_from_id::text, version, created_at, updated_at`

// PostgresContractRepository implements domain.ContractRepository using PostgreSQL.
type PostgresContractRepository struct {
	conn database.Connection
}

// NewPostgresContractRepository creates a new PostgreSQL contract repository.
func NewPostgresContractRepository(conn database.Connection) *PostgresContractRepository {
	return &PostgresContractRepository{conn: conn}
}

// Save inserts a new contract or updates payment status and auto-renew of a
// stored one.
func (r *PostgresContractRepository) Save(ctx context.Context, contract *domain.Contract) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	if contract.IsNew() {
		return r.insert(ctx, exec, contract)
	}
	return r.update(ctx, exec, contract)
}

func (r *PostgresContractRepository) insert(ctx context.Context, exec database.Executor, c *domain.Contract) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO contracts (
			id, subscriber_id, plan_id, start_date, end_date, billing_cycle,
			amount, payment_status, auto_renew, renewed_from_id, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)`,
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
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		return saveError(c, err)
	}
	c.SetVersion(1)
	return nil
}

func (r *PostgresContractRepository) update(ctx context.Context, exec database.Executor, c *domain.Contract) error {
	result, err := exec.Exec(ctx, `
		UPDATE contracts
		SET payment_status = $1, auto_renew = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5`,
		string(c.PaymentStatus()),
		c.AutoRenew(),
		c.UpdatedAt(),
		c.ID().String(),
		c.Version(),
	)
	if err != nil {
		return saveError(c, err)
	}
	return checkVersionedUpdate(c, result)
}

// FindByID returns nil when the contract does not exist.
func (r *PostgresContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+postgresContractColumns+` FROM contracts WHERE id = $1`, id.String())
	return r.scanOne(row, "find contract")
}

// FindBySubscriber returns all contracts of a subscriber, newest first.
func (r *PostgresContractRepository) FindBySubscriber(ctx context.Context, subscriberID uuid.UUID) ([]*domain.Contract, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+postgresContractColumns+` FROM contracts
		WHERE subscriber_id = $1
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
func (r *PostgresContractRepository) FindLiveRenewalOf(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+postgresContractColumns+` FROM contracts
		WHERE renewed_from_id = $1 AND payment_status IN ('pending', 'paid')
		ORDER BY created_at DESC
		LIMIT 1`,
		contractID.String())
	return r.scanOne(row, "find renewal")
}

func (r *PostgresContractRepository) scanOne(row database.Row, op string) (*domain.Contract, error) {
	c, err := r.scan(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError(op, err)
	}
	return c, nil
}

func (r *PostgresContractRepository) scan(row database.Row) (*domain.Contract, error) {
	var rec contractRecord
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
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return rec.toDomain()
}

var _ domain.ContractRepository = (*PostgresContractRepository)(nil)
