// Package outbox stores lifecycle events in the same transaction as the
// aggregate change that raised them and relays them to the event bus.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
)

// Message is one row of the outbox table. Payload is the encoded event and
// Metadata its eventbus.EventMetadata.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	RoutingKey    string
	Payload       json.RawMessage
	Metadata      json.RawMessage
	CreatedAt     time.Time

	PublishedAt *time.Time
	NextRetryAt *time.Time
	RetryCount  int
	LastError   *string

	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage encodes event for the outbox.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	envelope, err := eventbus.EnvelopeFromDomain(event)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(envelope.Metadata)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       envelope.EventID,
		AggregateType: envelope.AggregateType,
		AggregateID:   envelope.AggregateID,
		EventType:     envelope.RoutingKey,
		RoutingKey:    envelope.RoutingKey,
		Payload:       envelope.Payload,
		Metadata:      metadata,
		CreatedAt:     envelope.OccurredAt,
	}, nil
}

// NewMessages encodes events in order, stopping at the first failure.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, len(events))
	for i, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// CanRetry reports whether one more failure still leaves the message below
// maxRetries attempts.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount+1 < maxRetries
}

// tracing decodes Metadata. Unreadable metadata yields the zero value.
func (m *Message) tracing() eventbus.EventMetadata {
	var metadata eventbus.EventMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	return metadata
}

// Envelope is the body published to the bus. It decodes with
// eventbus.DecodeEnvelope.
func (m *Message) Envelope() ([]byte, error) {
	return json.Marshal(eventbus.ConsumedEvent{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
		Metadata:      m.tracing(),
	})
}

// oldest returns the earliest CreatedAt in msgs.
func oldest(msgs []*Message) time.Time {
	return lo.MinBy(msgs, func(a, b *Message) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}).CreatedAt
}
