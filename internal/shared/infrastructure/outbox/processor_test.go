package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// memoryRepository keeps outbox rows in a slice.
type memoryRepository struct {
	mu           sync.Mutex
	messages     []*outbox.Message
	publishedIDs []int64
	failedIDs    []int64
	deadIDs      []int64
	fetchErr     error
}

func (r *memoryRepository) Save(ctx context.Context, msg *outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memoryRepository) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRepository) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}

	var result []*outbox.Message
	now := time.Now()
	for _, msg := range r.messages {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		result = append(result, msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *memoryRepository) MarkPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishedIDs = append(r.publishedIDs, id)
	now := time.Now()
	r.messages[id-1].PublishedAt = &now
	return nil
}

func (r *memoryRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedIDs = append(r.failedIDs, id)
	msg := r.messages[id-1]
	msg.RetryCount++
	msg.LastError = &errMsg
	msg.NextRetryAt = &nextRetryAt
	return nil
}

func (r *memoryRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadIDs = append(r.deadIDs, id)
	now := time.Now()
	msg := r.messages[id-1]
	msg.DeadLetteredAt = &now
	msg.DeadLetterReason = &reason
	return nil
}

func (r *memoryRepository) GetFailed(ctx context.Context, maxRetries, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (r *memoryRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

type recordingPublisher struct {
	mu          sync.Mutex
	published   map[string][][]byte
	failForKeys map[string]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: map[string][][]byte{}, failForKeys: map[string]bool{}}
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failForKeys[routingKey] {
		return errors.New("broker unavailable")
	}
	p.published[routingKey] = append(p.published[routingKey], payload)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, payloads := range p.published {
		n += len(payloads)
	}
	return n
}

func newMessage(routingKey string) *outbox.Message {
	payload, _ := json.Marshal(map[string]string{"plan_id": "premium"})
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "Contract",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       payload,
		Metadata:      json.RawMessage(`{"correlation_id":"00000000-0000-0000-0000-000000000000","causation_id":"00000000-0000-0000-0000-000000000000","actor_id":"00000000-0000-0000-0000-000000000000"}`),
		CreatedAt:     time.Now(),
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	t.Run("publishes envelopes and marks rows published", func(t *testing.T) {
		repo := &memoryRepository{}
		publisher := newRecordingPublisher()
		metrics := observability.NewInMemoryMetrics()
		processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil).WithMetrics(metrics)

		created := newMessage("subscriptions.contract.created")
		renewed := newMessage("subscriptions.contract.renewed")
		require.NoError(t, repo.SaveBatch(context.Background(), []*outbox.Message{created, renewed}))

		require.NoError(t, processor.ProcessOnce(context.Background()))

		assert.Equal(t, 2, publisher.count())
		assert.Equal(t, []int64{1, 2}, repo.publishedIDs)

		var envelope eventbus.ConsumedEvent
		require.NoError(t, json.Unmarshal(publisher.published["subscriptions.contract.created"][0], &envelope))
		assert.Equal(t, created.EventID, envelope.EventID)
		assert.Equal(t, created.AggregateID, envelope.AggregateID)
		assert.JSONEq(t, `{"plan_id":"premium"}`, string(envelope.Payload))

		stats := processor.GetStats()
		assert.Equal(t, uint64(2), stats.PublishedCount)
		assert.NotNil(t, stats.LastProcessedAt)
		assert.NotNil(t, stats.OldestMessageAt)
		assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricOutboxPublished))
	})

	t.Run("schedules a retry when publishing fails", func(t *testing.T) {
		repo := &memoryRepository{}
		publisher := newRecordingPublisher()
		publisher.failForKeys["subscriptions.contract.renewed"] = true
		processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)

		require.NoError(t, repo.Save(context.Background(), newMessage("subscriptions.contract.created")))
		require.NoError(t, repo.Save(context.Background(), newMessage("subscriptions.contract.renewed")))

		before := time.Now()
		require.NoError(t, processor.ProcessOnce(context.Background()))

		assert.Equal(t, []int64{1}, repo.publishedIDs)
		assert.Equal(t, []int64{2}, repo.failedIDs)
		failed := repo.messages[1]
		require.NotNil(t, failed.NextRetryAt)
		assert.True(t, failed.NextRetryAt.After(before))
		assert.Equal(t, "broker unavailable", *failed.LastError)

		stats := processor.GetStats()
		assert.Equal(t, uint64(1), stats.FailedCount)
		assert.Equal(t, "broker unavailable", stats.LastError)
	})

	t.Run("dead-letters once retries are exhausted", func(t *testing.T) {
		repo := &memoryRepository{}
		publisher := newRecordingPublisher()
		publisher.failForKeys["subscriptions.contract.created"] = true
		cfg := outbox.DefaultProcessorConfig()
		cfg.MaxRetries = 1
		processor := outbox.NewProcessor(repo, publisher, cfg, nil)

		require.NoError(t, repo.Save(context.Background(), newMessage("subscriptions.contract.created")))

		require.NoError(t, processor.ProcessOnce(context.Background()))

		assert.Empty(t, repo.failedIDs)
		assert.Equal(t, []int64{1}, repo.deadIDs)
		assert.Equal(t, uint64(1), processor.GetStats().DeadCount)
	})

	t.Run("surfaces fetch errors", func(t *testing.T) {
		repo := &memoryRepository{fetchErr: errors.New("database is locked")}
		processor := outbox.NewProcessor(repo, newRecordingPublisher(), outbox.DefaultProcessorConfig(), nil)

		err := processor.ProcessOnce(context.Background())

		assert.EqualError(t, err, "database is locked")
		assert.NotNil(t, processor.GetStats().LastErrorAt)
	})
}

func TestProcessor_RetryBackoff(t *testing.T) {
	repo := &memoryRepository{}
	publisher := newRecordingPublisher()
	publisher.failForKeys["subscriptions.contract.created"] = true
	cfg := outbox.ProcessorConfig{
		BatchSize:        10,
		MaxRetries:       10,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  3 * time.Second,
	}
	processor := outbox.NewProcessor(repo, publisher, cfg, nil)
	msg := newMessage("subscriptions.contract.created")
	require.NoError(t, repo.Save(context.Background(), msg))

	var delays []time.Duration
	for i := 0; i < 3; i++ {
		msg.NextRetryAt = nil
		start := time.Now()
		require.NoError(t, processor.ProcessOnce(context.Background()))
		require.NotNil(t, msg.NextRetryAt)
		delays = append(delays, msg.NextRetryAt.Sub(start).Round(time.Second))
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := &memoryRepository{}
	publisher := newRecordingPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.ProcessorConfig{
		PollInterval:     5 * time.Millisecond,
		BatchSize:        10,
		MaxRetries:       3,
		RetryBackoffBase: time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	}, nil)

	require.NoError(t, processor.Start(context.Background()))
	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.GetStats().IsRunning)

	require.NoError(t, repo.Save(context.Background(), newMessage("subscriptions.subscriber.plan_changed")))
	assert.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)

	processor.Stop()
	processor.Stop()
	assert.False(t, processor.IsRunning())
}
