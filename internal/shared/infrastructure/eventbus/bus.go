// Package eventbus carries lifecycle events from the outbox to their
// consumers, either over RabbitMQ or in-process.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/portal/internal/shared/domain"
)

// Publisher sends an encoded envelope under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// EventConsumer handles the routing keys it declares. WildcardEventType
// subscribes to all of them.
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope put on the wire: identifying fields around
// the JSON-encoded domain event.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata is the tracing part of an envelope.
type EventMetadata struct {
	ActorID       uuid.UUID `json:"actor_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// MetadataFromDomain converts event metadata to its wire form; nil ids are
// left out.
func MetadataFromDomain(m domain.EventMetadata) EventMetadata {
	out := EventMetadata{ActorID: m.ActorID}
	if m.CorrelationID != uuid.Nil {
		out.CorrelationID = m.CorrelationID.String()
	}
	if m.CausationID != uuid.Nil {
		out.CausationID = m.CausationID.String()
	}
	return out
}

// EnvelopeFromDomain wraps a domain event for delivery.
func EnvelopeFromDomain(event domain.DomainEvent) (*ConsumedEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.RoutingKey(), err)
	}
	return &ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata:      MetadataFromDomain(event.Metadata()),
	}, nil
}

// DecodeEnvelope parses a delivered body. The routing key it arrived under
// fills in an envelope that lacks one.
func DecodeEnvelope(routingKey string, body []byte) (*ConsumedEvent, error) {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, fmt.Errorf("decode envelope for %q: %w", routingKey, err)
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return event, nil
}

// NewConsumedEvent builds an envelope stamped with the current time.
func NewConsumedEvent(eventID, aggregateID uuid.UUID, aggregateType, routingKey string, payload json.RawMessage, actorID uuid.UUID) *ConsumedEvent {
	return &ConsumedEvent{
		EventID:       eventID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		RoutingKey:    routingKey,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
		Metadata:      EventMetadata{ActorID: actorID},
	}
}

// NoopPublisher accepts and drops everything. It stands in when no broker is
// configured so the outbox still drains.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a NoopPublisher.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.DebugContext(ctx, "event dropped, no broker configured", "routing_key", routingKey, "size", len(payload))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
