package persistence

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// PostgresSubscriberRepository implements domain.SubscriberRepository using PostgreSQL.
type PostgresSubscriberRepository struct {
	conn database.Connection
}

// NewPostgresSubscriberRepository creates a new PostgreSQL subscriber repository.
func NewPostgresSubscriberRepository(conn database.Connection) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{conn: conn}
}

// FindByID returns nil when the subscriber has no projection row.
func (r *PostgresSubscriberRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	var rec subscriberRecord
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT id::text, plan_type, payment_status, status,
			to_char(contract_start, 'YYYY-MM-DD'), to_char(contract_end, 'YYYY-MM-DD'),
			created_at, updated_at
		FROM subscribers
		WHERE id = $1`,
		id.String(),
	).Scan(
		&rec.ID,
		&rec.PlanType,
		&rec.PaymentStatus,
		&rec.Status,
		&rec.ContractStart,
		&rec.ContractEnd,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("find subscriber", err)
	}

	s, err := rec.toDomain()
	if err != nil {
		return nil, domain.NewPersistenceError("find subscriber", err)
	}
	return s, nil
}

// Save upserts the projection.
func (r *PostgresSubscriberRepository) Save(ctx context.Context, s *domain.Subscriber) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO subscribers (
			id, plan_type, payment_status, status, contract_start, contract_end, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			payment_status = EXCLUDED.payment_status,
			status = EXCLUDED.status,
			contract_start = EXCLUDED.contract_start,
			contract_end = EXCLUDED.contract_end,
			updated_at = EXCLUDED.updated_at`,
		s.ID().String(),
		string(s.PlanType()),
		string(s.PaymentStatus()),
		s.Status(),
		dateParam(s.ContractStartDate()),
		dateParam(s.ContractEndDate()),
		s.CreatedAt(),
		s.UpdatedAt(),
	)
	if err != nil {
		return domain.NewPersistenceError("save subscriber", err)
	}
	s.SetVersion(1)
	return nil
}

var _ domain.SubscriberRepository = (*PostgresSubscriberRepository)(nil)
