package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/domain"
)

// InProcessEventBus is the local-mode Publisher: the outbox processor hands
// it envelopes and it delivers them synchronously, one at a time, to the
// registered consumers.
type InProcessEventBus struct {
	mu       sync.Mutex
	registry *ConsumerRegistry
	logger   *slog.Logger
}

// NewInProcessEventBus creates a bus with no consumers.
func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{registry: NewConsumerRegistry(logger), logger: logger}
}

// RegisterConsumer subscribes consumer to its routing keys.
func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish delivers an encoded envelope. Undecodable payloads and consumer
// failures are logged, never returned.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event, err := DecodeEnvelope(routingKey, payload)
	if err != nil {
		b.logger.ErrorContext(ctx, "dropping undecodable event", "routing_key", routingKey, "error", err)
		return nil
	}
	b.deliver(ctx, event)
	return nil
}

// PublishDomainEvent delivers event directly, bypassing the outbox.
func (b *InProcessEventBus) PublishDomainEvent(ctx context.Context, event domain.DomainEvent) error {
	envelope, err := EnvelopeFromDomain(event)
	if err != nil {
		return err
	}
	b.deliver(ctx, envelope)
	return nil
}

func (b *InProcessEventBus) deliver(ctx context.Context, event *ConsumedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	if err := b.registry.Dispatch(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "in-process delivery incomplete",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}
	b.logger.DebugContext(ctx, "event delivered",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Close has nothing to release.
func (b *InProcessEventBus) Close() error { return nil }
