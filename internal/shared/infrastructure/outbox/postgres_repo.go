package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
)

const postgresOutboxColumns = `id, event_id::text, aggregate_type, aggregate_id::text, event_type, routing_key,
	payload::text, metadata::text, created_at, published_at, retry_count, last_error,
	next_retry_at, dead_lettered_at, dead_letter_reason`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	conn database.Connection
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(conn database.Connection) *PostgresRepository {
	return &PostgresRepository{conn: conn}
}

// Save stores a new outbox message.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	return r.insert(ctx, database.ExecutorFromContext(ctx, r.conn), msg)
}

// SaveBatch stores multiple outbox messages atomically.
func (r *PostgresRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	uow := database.NewUnitOfWork(r.conn)
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	exec := database.ExecutorFromContext(txCtx, r.conn)
	for _, msg := range msgs {
		if err := r.insert(txCtx, exec, msg); err != nil {
			_ = uow.Rollback(txCtx)
			return err
		}
	}
	return uow.Commit(txCtx)
}

func (r *PostgresRepository) insert(ctx context.Context, exec database.Executor, msg *Message) error {
	var metadata sql.NullString
	if len(msg.Metadata) > 0 {
		metadata = sql.NullString{String: string(msg.Metadata), Valid: true}
	}

	return exec.QueryRow(ctx, `
		INSERT INTO outbox (
			event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		metadata,
		msg.CreatedAt.UTC(),
	).Scan(&msg.ID)
}

// GetUnpublished retrieves due messages ordered by creation time.
// Rows locked by another worker are skipped.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	return r.query(ctx, `
		SELECT `+postgresOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
}

// MarkPublished marks a message as successfully published.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET published_at = NOW(), next_retry_at = NULL WHERE id = $1`,
		id,
	)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3 WHERE id = $1`,
		id, errMsg, nextRetryAt.UTC(),
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, dead_lettered_at = NOW(), dead_letter_reason = $2
		WHERE id = $1`,
		id, reason,
	)
	return err
}

// GetFailed retrieves failed messages eligible for retry.
func (r *PostgresRepository) GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error) {
	return r.query(ctx, `
		SELECT `+postgresOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND retry_count > 0
		  AND retry_count < $1
		ORDER BY created_at, id
		LIMIT $2`,
		maxRetries, limit,
	)
}

// DeleteOld removes successfully published messages older than the retention period.
func (r *PostgresRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < NOW() - make_interval(days => $1)`,
		olderThanDays,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanPostgresMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanPostgresMessage(row database.Row) (*Message, error) {
	var (
		msg                                   Message
		eventID, aggregateID, payload         string
		metadata, lastError, deadLetterReason sql.NullString
		publishedAt, nextRetryAt, deadAt      sql.NullTime
	)
	err := row.Scan(
		&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.EventType, &msg.RoutingKey,
		&payload, &metadata, &msg.CreatedAt, &publishedAt, &msg.RetryCount, &lastError,
		&nextRetryAt, &deadAt, &deadLetterReason,
	)
	if err != nil {
		return nil, err
	}

	if msg.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("outbox %d: event_id: %w", msg.ID, err)
	}
	if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, fmt.Errorf("outbox %d: aggregate_id: %w", msg.ID, err)
	}
	msg.Payload = json.RawMessage(payload)
	if metadata.Valid {
		msg.Metadata = json.RawMessage(metadata.String)
	}
	if lastError.Valid {
		msg.LastError = &lastError.String
	}
	if deadLetterReason.Valid {
		msg.DeadLetterReason = &deadLetterReason.String
	}
	msg.PublishedAt = nullTime(publishedAt)
	msg.NextRetryAt = nullTime(nextRetryAt)
	msg.DeadLetteredAt = nullTime(deadAt)
	return &msg, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
