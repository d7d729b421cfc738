package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// WildcardEventType subscribes a consumer to every routing key.
const WildcardEventType = "*"

// ConsumerRegistry routes envelopes to the consumers of their routing key.
type ConsumerRegistry struct {
	mu     sync.RWMutex
	routes map[string][]EventConsumer
	logger *slog.Logger
}

// NewConsumerRegistry creates an empty registry.
func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{routes: make(map[string][]EventConsumer), logger: logger}
}

// Register subscribes consumer to each routing key it declares.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range consumer.EventTypes() {
		r.routes[key] = append(r.routes[key], consumer)
		r.logger.Debug("consumer registered", "routing_key", key, "consumer", fmt.Sprintf("%T", consumer))
	}
}

// GetConsumers returns the consumers for routingKey, wildcard consumers last.
func (r *ConsumerRegistry) GetConsumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	direct := r.routes[routingKey]
	if routingKey == WildcardEventType {
		return append([]EventConsumer(nil), direct...)
	}
	out := make([]EventConsumer, 0, len(direct)+len(r.routes[WildcardEventType]))
	out = append(out, direct...)
	return append(out, r.routes[WildcardEventType]...)
}

// RoutingKeys lists every subscribed routing key in sorted order.
func (r *ConsumerRegistry) RoutingKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.routes))
	for key := range r.routes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Dispatch hands event to every matching consumer. One consumer failing does
// not stop the others; all failures are returned joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	consumers := r.GetConsumers(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.DebugContext(ctx, "no consumer for routing key", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, consumer := range consumers {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "consumer failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"consumer", fmt.Sprintf("%T", consumer),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
