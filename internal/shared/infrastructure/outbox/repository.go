package outbox

import (
	"context"
	"time"
)

// Writer appends messages. Both methods join the transaction carried by ctx,
// which is how events commit together with the aggregate that raised them.
type Writer interface {
	Save(ctx context.Context, msg *Message) error
	SaveBatch(ctx context.Context, msgs []*Message) error
}

// Relay is the side the Processor drives.
type Relay interface {
	// GetUnpublished returns up to limit messages that are neither published
	// nor dead-lettered and whose retry time has come, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	// MarkFailed increments the retry count and stores err.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error
}

// Repository is the full outbox store.
type Repository interface {
	Writer
	Relay

	// GetFailed lists messages that failed fewer than maxRetries times.
	GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error)
	// DeleteOld purges messages published more than olderThanDays ago.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
