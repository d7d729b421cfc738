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

const sqliteOutboxColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
	payload, metadata, created_at, published_at, retry_count, last_error,
	next_retry_at, dead_lettered_at, dead_letter_reason`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	conn database.Connection
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(conn database.Connection) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	return r.insert(ctx, database.ExecutorFromContext(ctx, r.conn), msg)
}

// SaveBatch stores multiple outbox messages atomically.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
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

func (r *SQLiteRepository) insert(ctx context.Context, exec database.Executor, msg *Message) error {
	var metadata sql.NullString
	if len(msg.Metadata) > 0 {
		metadata = sql.NullString{String: string(msg.Metadata), Valid: true}
	}

	return exec.QueryRow(ctx, `
		INSERT INTO outbox (
			event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		metadata,
		database.FormatTimestamp(msg.CreatedAt),
	).Scan(&msg.ID)
}

// GetUnpublished retrieves due messages ordered by creation time.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	return r.query(ctx, `
		SELECT `+sqliteOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`,
		database.FormatTimestamp(time.Now()), limit,
	)
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET published_at = ?, next_retry_at = NULL WHERE id = ?`,
		database.FormatTimestamp(time.Now()), id,
	)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`,
		errMsg, database.FormatTimestamp(nextRetryAt), id,
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`,
		reason, database.FormatTimestamp(time.Now()), reason, id,
	)
	return err
}

// GetFailed retrieves failed messages eligible for retry.
func (r *SQLiteRepository) GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error) {
	return r.query(ctx, `
		SELECT `+sqliteOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND retry_count > 0
		  AND retry_count < ?
		ORDER BY created_at, id
		LIMIT ?`,
		maxRetries, limit,
	)
}

// DeleteOld removes successfully published messages older than the retention period.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		database.FormatTimestamp(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanSQLiteMessage(row database.Row) (*Message, error) {
	var (
		msg                                           Message
		eventID, aggregateID, payload, createdAt      string
		metadata, publishedAt, lastError              sql.NullString
		nextRetryAt, deadLetteredAt, deadLetterReason sql.NullString
	)
	err := row.Scan(
		&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.EventType, &msg.RoutingKey,
		&payload, &metadata, &createdAt, &publishedAt, &msg.RetryCount, &lastError,
		&nextRetryAt, &deadLetteredAt, &deadLetterReason,
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
	if msg.CreatedAt, err = database.ParseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("outbox %d: created_at: %w", msg.ID, err)
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
	if msg.PublishedAt, err = database.ParseNullTimestamp(publishedAt); err != nil {
		return nil, err
	}
	if msg.NextRetryAt, err = database.ParseNullTimestamp(nextRetryAt); err != nil {
		return nil, err
	}
	if msg.DeadLetteredAt, err = database.ParseNullTimestamp(deadLetteredAt); err != nil {
		return nil, err
	}
	return &msg, nil
}
