package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries is the number of failed attempts after which a message is
	// dead-lettered. 0 dead-letters on the first failure.
	MaxRetries int
	// The delay before retry n is RetryBackoffBase * 2^(n-1), capped at
	// RetryBackoffMax.
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig polls every 100ms and gives up after 5 attempts.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

func (c ProcessorConfig) backoff(attempt int) time.Duration {
	base, limit := c.RetryBackoffBase, c.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if limit <= 0 {
		limit = time.Minute
	}
	delay := base
	for ; attempt > 1 && delay < limit; attempt-- {
		delay *= 2
	}
	return min(delay, limit)
}

// Stats is a snapshot of the relay's progress.
type Stats struct {
	IsRunning       bool       `json:"running"`
	PublishedCount  uint64     `json:"published"`
	FailedCount     uint64     `json:"failed"`
	DeadCount       uint64     `json:"dead"`
	LagSeconds      float64    `json:"lag_seconds"`
	LastError       string     `json:"last_error,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	OldestMessageAt *time.Time `json:"oldest_message_at,omitempty"`
}

func (s *Stats) noteError(err error, at time.Time) {
	s.LastError = err.Error()
	s.LastErrorAt = &at
}

// Processor relays outbox messages to a Publisher. Delivery is at least
// once: a message published but not marked is sent again on the next poll.
type Processor struct {
	repo      Relay
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a stopped Processor.
func NewProcessor(repo Relay, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   observability.NoopMetrics{},
	}
}

// WithMetrics reports publish outcomes and lag to m.
func (p *Processor) WithMetrics(m observability.Metrics) *Processor {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Start polls in the background until ctx ends or Stop is called. Starting a
// running Processor does nothing.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
	return nil
}

// Stop ends the loop and waits for the batch in flight.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drain(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll failed", "error", err)
			}
		}
	}
}

// ProcessOnce relays a single batch.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.drain(ctx)
}

func (p *Processor) drain(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	now := time.Now()
	if err != nil {
		p.update(func(s *Stats) { s.noteError(err, now) })
		return err
	}
	p.observeLag(batch, now)

	for _, msg := range batch {
		p.settle(ctx, msg, p.send(ctx, msg))
	}
	return nil
}

func (p *Processor) send(ctx context.Context, msg *Message) error {
	body, err := msg.Envelope()
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, msg.RoutingKey, body)
}

// settle records the outcome of one publish attempt.
func (p *Processor) settle(ctx context.Context, msg *Message, sendErr error) {
	log := p.logger.With(
		"outbox_id", msg.ID,
		"event_id", msg.EventID,
		"routing_key", msg.RoutingKey,
	)

	if sendErr == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			log.ErrorContext(ctx, "failed to mark message published", "error", err)
			return
		}
		p.update(func(s *Stats) { s.PublishedCount++ })
		p.metrics.Counter(observability.MetricOutboxPublished, 1)
		return
	}

	meta := msg.tracing()
	log.WarnContext(ctx, "publish failed",
		"attempt", msg.RetryCount+1,
		observability.CorrelationIDKey, meta.CorrelationID,
		"causation_id", meta.CausationID,
		observability.ActorIDKey, meta.ActorID,
		"error", sendErr,
	)

	now := time.Now()
	if !msg.CanRetry(p.config.MaxRetries) {
		if err := p.repo.MarkDead(ctx, msg.ID, sendErr.Error()); err != nil {
			log.ErrorContext(ctx, "failed to dead-letter message", "error", err)
		}
		p.update(func(s *Stats) {
			s.DeadCount++
			s.noteError(sendErr, now)
		})
		p.metrics.Counter(observability.MetricOutboxDead, 1, observability.T("routing_key", msg.RoutingKey))
		return
	}

	next := now.Add(p.config.backoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, sendErr.Error(), next); err != nil {
		log.ErrorContext(ctx, "failed to schedule retry", "error", err)
	}
	p.update(func(s *Stats) {
		s.FailedCount++
		s.noteError(sendErr, now)
	})
	p.metrics.Counter(observability.MetricOutboxFailed, 1, observability.T("routing_key", msg.RoutingKey))
}

func (p *Processor) observeLag(batch []*Message, now time.Time) {
	var lag float64
	p.update(func(s *Stats) {
		s.LastProcessedAt = &now
		s.OldestMessageAt = nil
		if len(batch) > 0 {
			first := oldest(batch)
			s.OldestMessageAt = &first
			lag = now.Sub(first).Seconds()
		}
		s.LagSeconds = lag
	})
	p.metrics.Gauge(observability.MetricOutboxLag, lag)
}

func (p *Processor) update(fn func(*Stats)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	fn(&p.stats)
}

// GetStats returns a snapshot of the counters.
func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	snapshot := p.stats
	p.statsMu.Unlock()

	snapshot.IsRunning = p.IsRunning()
	return snapshot
}
