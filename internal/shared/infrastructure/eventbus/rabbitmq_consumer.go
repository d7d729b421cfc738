package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultConsumerQueueName is the worker's durable queue.
const DefaultConsumerQueueName = "portal.subscriptions.worker"

// ErrConsumerRunning is returned by a second Start.
var ErrConsumerRunning = errors.New("consumer already running")

// RabbitMQConsumerConfig configures NewRabbitMQConsumer. Empty QueueName and
// Exchange fall back to DefaultConsumerQueueName and ExchangeName.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exchange  string
	// Prefetch bounds unacknowledged deliveries; 0 means 1.
	Prefetch int
	Logger   *slog.Logger
}

// RabbitMQConsumer feeds a durable queue into a ConsumerRegistry. Queue
// bindings follow the routing keys registered when Start is called.
type RabbitMQConsumer struct {
	cfg      RabbitMQConsumerConfig
	session  *session
	registry *ConsumerRegistry
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewRabbitMQConsumer connects and declares the exchange and queue.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *ConsumerRegistry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultConsumerQueueName
	}
	if cfg.Exchange == "" {
		cfg.Exchange = ExchangeName
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	s, err := openSession(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	// durable, not auto-deleted, not exclusive
	if _, err := s.channel.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.QueueName, err)
	}

	cfg.Logger.Info("RabbitMQ consumer connected", "queue", cfg.QueueName, "exchange", cfg.Exchange)
	return &RabbitMQConsumer{
		cfg:      cfg,
		session:  s,
		registry: registry,
		logger:   cfg.Logger,
		done:     make(chan struct{}),
	}, nil
}

// RegisterConsumer adds consumer to the registry.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)
}

// Start binds the queue and processes deliveries until ctx ends or Close is
// called. It blocks.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrConsumerRunning
	}
	c.running = true
	c.mu.Unlock()

	deliveries, err := c.subscribe()
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "consuming events", "queue", c.cfg.QueueName, "routing_keys", c.registry.RoutingKeys())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.cfg.QueueName)
			}
			c.settle(d, c.handle(ctx, d))
		}
	}
}

func (c *RabbitMQConsumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.session.channel
	for _, key := range c.registry.RoutingKeys() {
		if err := ch.QueueBind(c.cfg.QueueName, bindingKey(key), c.cfg.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind %s to %s: %w", c.cfg.QueueName, key, err)
		}
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.Consume(c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", c.cfg.QueueName, err)
	}
	return deliveries, nil
}

// errPoison marks a delivery that can never be processed.
var errPoison = errors.New("undecodable delivery")

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) error {
	event, err := DecodeEnvelope(d.RoutingKey, d.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}

	start := time.Now()
	err = c.registry.Dispatch(ctx, event)
	c.logger.DebugContext(ctx, "delivery handled",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", err == nil,
	)
	return err
}

// settle acks successes. A failed delivery is requeued once; a second failure
// or an undecodable body is rejected without requeue.
func (c *RabbitMQConsumer) settle(d amqp.Delivery, err error) {
	var settleErr error
	switch {
	case err == nil:
		settleErr = d.Ack(false)
	case errors.Is(err, errPoison) || d.Redelivered:
		c.logger.Error("rejecting delivery", "routing_key", d.RoutingKey, "redelivered", d.Redelivered, "error", err)
		settleErr = d.Reject(false)
	default:
		c.logger.Warn("requeueing delivery", "routing_key", d.RoutingKey, "error", err)
		settleErr = d.Nack(false, true)
	}
	if settleErr != nil {
		c.logger.Error("failed to settle delivery", "routing_key", d.RoutingKey, "error", settleErr)
	}
}

// Close stops Start and releases the connection. It is safe to call twice.
func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	c.running = false
	err := c.session.close()
	c.logger.Info("RabbitMQ consumer closed")
	return err
}
