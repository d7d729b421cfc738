package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// NewEventMetadata stamps the events of one command. Correlation and actor
// come from the request scope in ctx; a correlation ID that is not a UUID is
// replaced so every event can be joined back to its command. Each call gets
// a fresh causation ID.
func NewEventMetadata(ctx context.Context) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuidOr(observability.CorrelationIDFromContext(ctx), uuid.New),
		CausationID:   uuid.New(),
		ActorID:       uuidOr(observability.ActorIDFromContext(ctx), func() uuid.UUID { return uuid.Nil }),
	}
}

func uuidOr(s string, fallback func() uuid.UUID) uuid.UUID {
	if id, err := uuid.Parse(s); err == nil {
		return id
	}
	return fallback()
}

// ApplyEventMetadata sets metadata on the events that accept it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if e, ok := event.(interface{ SetMetadata(domain.EventMetadata) }); ok {
			e.SetMetadata(metadata)
		}
	}
}
