package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate. RoutingKey doubles as the
// event type and the broker routing key, e.g. "subscriptions.contract.created".
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	RoutingKey() string
	OccurredAt() time.Time
	Metadata() EventMetadata
}

// EventMetadata ties an event to the command and actor behind it.
type EventMetadata struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	CausationID   uuid.UUID `json:"causation_id"`
	ActorID       uuid.UUID `json:"actor_id"`
}

// BaseEvent is embedded by concrete events. Its fields are unexported, so an
// event marshals to its own fields only.
type BaseEvent struct {
	id         uuid.UUID
	aggregate  uuid.UUID
	kind       string
	routingKey string
	at         time.Time
	meta       EventMetadata
}

// NewBaseEvent stamps a new event ID and the current time.
func NewBaseEvent(aggregateID uuid.UUID, aggregateType, routingKey string) BaseEvent {
	return BaseEvent{
		id:         uuid.New(),
		aggregate:  aggregateID,
		kind:       aggregateType,
		routingKey: routingKey,
		at:         time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID      { return e.id }
func (e BaseEvent) AggregateID() uuid.UUID  { return e.aggregate }
func (e BaseEvent) AggregateType() string   { return e.kind }
func (e BaseEvent) RoutingKey() string      { return e.routingKey }
func (e BaseEvent) OccurredAt() time.Time   { return e.at }
func (e BaseEvent) Metadata() EventMetadata { return e.meta }

func (e *BaseEvent) SetMetadata(metadata EventMetadata) { e.meta = metadata }
