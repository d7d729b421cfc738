package eventbus

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the durable topic exchange lifecycle events go through.
const ExchangeName = "portal.subscriptions.events"

// ErrConnectionClosed is returned when the broker connection has gone away.
var ErrConnectionClosed = errors.New("rabbitmq connection closed")

// session is one connection with one channel on which the exchange has been
// declared.
type session struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func openSession(url, exchange string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// durable, not auto-deleted, not internal, wait for the broker
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &session{conn: conn, channel: ch}, nil
}

func (s *session) alive() error {
	if s == nil || s.conn == nil || s.conn.IsClosed() {
		return ErrConnectionClosed
	}
	return nil
}

// close shuts the channel and the connection, reporting both failures.
func (s *session) close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if s.conn != nil && !s.conn.IsClosed() {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// bindingKey maps WildcardEventType to the AMQP multi-word wildcard.
func bindingKey(routingKey string) string {
	if routingKey == WildcardEventType {
		return "#"
	}
	return routingKey
}
