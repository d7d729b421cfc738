package persistence

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SQLiteSubscriberRepository implements domain.SubscriberRepository using SQLite.
type SQLiteSubscriberRepository struct {
	conn database.Connection
}

// NewSQLiteSubscriberRepository creates a new SQLite subscriber repository.
func NewSQLiteSubscriberRepository(conn database.Connection) *SQLiteSubscriberRepository {
	return &SQLiteSubscriberRepository{conn: conn}
}

// FindByID returns nil when the subscriber has no projection row.
func (r *SQLiteSubscriberRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	var rec subscriberRecord
	var createdAt, updatedAt string
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT id, plan_type, payment_status, status, contract_start, contract_end, created_at, updated_at
		FROM subscribers
		WHERE id = ?`,
		id.String(),
	).Scan(
		&rec.ID,
		&rec.PlanType,
		&rec.PaymentStatus,
		&rec.Status,
		&rec.ContractStart,
		&rec.ContractEnd,
		&createdAt,
		&updatedAt,
	)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("find subscriber", err)
	}

	if rec.CreatedAt, err = database.ParseTimestamp(createdAt); err != nil {
		return nil, domain.NewPersistenceError("find subscriber", err)
	}
	if rec.UpdatedAt, err = database.ParseTimestamp(updatedAt); err != nil {
		return nil, domain.NewPersistenceError("find subscriber", err)
	}

	s, err := rec.toDomain()
	if err != nil {
		return nil, domain.NewPersistenceError("find subscriber", err)
	}
	return s, nil
}

// Save upserts the projection.
func (r *SQLiteSubscriberRepository) Save(ctx context.Context, s *domain.Subscriber) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO subscribers (
			id, plan_type, payment_status, status, contract_start, contract_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			plan_type = excluded.plan_type,
			payment_status = excluded.payment_status,
			status = excluded.status,
			contract_start = excluded.contract_start,
			contract_end = excluded.contract_end,
			updated_at = excluded.updated_at`,
		s.ID().String(),
		string(s.PlanType()),
		string(s.PaymentStatus()),
		s.Status(),
		dateParam(s.ContractStartDate()),
		dateParam(s.ContractEndDate()),
		database.FormatTimestamp(s.CreatedAt()),
		database.FormatTimestamp(s.UpdatedAt()),
	)
	if err != nil {
		return domain.NewPersistenceError("save subscriber", err)
	}
	s.SetVersion(1)
	return nil
}

var _ domain.SubscriberRepository = (*SQLiteSubscriberRepository)(nil)
