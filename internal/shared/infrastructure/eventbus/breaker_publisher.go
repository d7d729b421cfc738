package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/portal/pkg/observability"
)

// ErrPublisherUnavailable is returned while the breaker is open or
// saturated in half-open state.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// BreakerConfig configures the circuit breaker around a publisher.
type BreakerConfig struct {
	// MaxRequests is the number of trial publishes allowed while half-open.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state. Zero never resets counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns a sensible default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerPublisher stops calling a failing broker until it has had time to
// recover. Rejected publishes fail fast with ErrPublisherUnavailable and the
// outbox schedules them for retry.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewBreakerPublisher wraps next with a circuit breaker.
func NewBreakerPublisher(next Publisher, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *BreakerPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	p := &BreakerPublisher{next: next, logger: logger, metrics: metrics}
	p.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			p.metrics.Gauge(observability.MetricBreakerState, float64(to), observability.T("breaker", name))
		},
	})
	return p
}

// Publish forwards to the wrapped publisher unless the breaker is open.
func (p *BreakerPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.next.Publish(ctx, routingKey, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrPublisherUnavailable
	}
	if err == nil {
		p.metrics.Counter(observability.MetricEventsPublished, 1, observability.T("routing_key", routingKey))
	}
	return err
}

// State reports the breaker state ("closed", "half-open" or "open").
func (p *BreakerPublisher) State() string {
	return p.breaker.State().String()
}

// Close closes the wrapped publisher.
func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}
