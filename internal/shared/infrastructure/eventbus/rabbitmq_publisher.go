package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPublishNacked is returned when the broker refuses a message.
var ErrPublishNacked = errors.New("broker did not confirm message")

// RabbitMQPublisher publishes persistent messages in confirm mode: Publish
// returns nil only once the broker has acknowledged the message.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	session  *session
	exchange string
	logger   *slog.Logger
}

// NewRabbitMQPublisher connects to url and declares ExchangeName.
func NewRabbitMQPublisher(url string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := openSession(url, ExchangeName)
	if err != nil {
		return nil, err
	}
	if err := s.channel.Confirm(false); err != nil {
		_ = s.close()
		return nil, err
	}
	logger.Info("RabbitMQ publisher connected", "exchange", ExchangeName)
	return &RabbitMQPublisher{session: s, exchange: ExchangeName, logger: logger}, nil
}

// Publish sends payload and waits for the broker's confirmation or ctx.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.session.alive(); err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}
	if err := p.confirm(ctx, routingKey, msg); err != nil {
		p.logger.ErrorContext(ctx, "publish failed", "routing_key", routingKey, "error", err)
		return err
	}
	p.logger.DebugContext(ctx, "published", "routing_key", routingKey, "size", len(payload))
	return nil
}

func (p *RabbitMQPublisher) confirm(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	pending, err := p.session.channel.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err != nil {
		return err
	}
	acked, err := pending.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// Ping reports whether the broker connection is still open.
func (p *RabbitMQPublisher) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.alive()
}

// Close releases the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.session.close()
	p.logger.Info("RabbitMQ publisher closed")
	return err
}
