package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/shared/domain"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
)

type contractTestEvent struct {
	domain.BaseEvent
	PlanID string `json:"plan_id"`
}

func newContractTestEvent(contractID uuid.UUID, planID string) *contractTestEvent {
	return &contractTestEvent{
		BaseEvent: domain.NewBaseEvent(contractID, "Contract", "subscriptions.contract.created"),
		PlanID:    planID,
	}
}

func TestNewMessage(t *testing.T) {
	t.Run("copies identity and routing from the event", func(t *testing.T) {
		contractID := uuid.New()
		event := newContractTestEvent(contractID, "premium")

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Equal(t, int64(0), msg.ID)
		assert.Equal(t, event.EventID(), msg.EventID)
		assert.Equal(t, "Contract", msg.AggregateType)
		assert.Equal(t, contractID, msg.AggregateID)
		assert.Equal(t, "subscriptions.contract.created", msg.EventType)
		assert.Equal(t, "subscriptions.contract.created", msg.RoutingKey)
		assert.Equal(t, event.OccurredAt(), msg.CreatedAt)
		assert.JSONEq(t, `{"plan_id":"premium"}`, string(msg.Payload))
		assert.Nil(t, msg.PublishedAt)
	})

	t.Run("serializes metadata", func(t *testing.T) {
		event := newContractTestEvent(uuid.New(), "free")
		metadata := domain.EventMetadata{
			CorrelationID: uuid.New(),
			CausationID:   uuid.New(),
			ActorID:       uuid.New(),
		}
		event.SetMetadata(metadata)

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Contains(t, string(msg.Metadata), metadata.ActorID.String())
		assert.Contains(t, string(msg.Metadata), `"correlation_id"`)
	})

	t.Run("converts batches in order", func(t *testing.T) {
		first := newContractTestEvent(uuid.New(), "essential")
		second := newContractTestEvent(uuid.New(), "premium")

		msgs, err := NewMessages([]domain.DomainEvent{first, second})

		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, first.EventID(), msgs[0].EventID)
		assert.Equal(t, second.EventID(), msgs[1].EventID)
	})
}

func TestMessage_Envelope(t *testing.T) {
	event := newContractTestEvent(uuid.New(), "premium_vip")
	actorID := uuid.New()
	correlationID := uuid.New()
	event.SetMetadata(domain.EventMetadata{CorrelationID: correlationID, ActorID: actorID})

	msg, err := NewMessage(event)
	require.NoError(t, err)

	raw, err := msg.Envelope()
	require.NoError(t, err)

	var consumed eventbus.ConsumedEvent
	require.NoError(t, json.Unmarshal(raw, &consumed))
	assert.Equal(t, event.EventID(), consumed.EventID)
	assert.Equal(t, event.AggregateID(), consumed.AggregateID)
	assert.Equal(t, "Contract", consumed.AggregateType)
	assert.Equal(t, "subscriptions.contract.created", consumed.RoutingKey)
	assert.True(t, event.OccurredAt().Equal(consumed.OccurredAt))
	assert.JSONEq(t, `{"plan_id":"premium_vip"}`, string(consumed.Payload))
	assert.Equal(t, actorID, consumed.Metadata.ActorID)
	assert.Equal(t, correlationID.String(), consumed.Metadata.CorrelationID)
}

func TestMessage_CanRetry(t *testing.T) {
	msg := &Message{RetryCount: 1}
	assert.True(t, msg.CanRetry(3))

	msg.RetryCount = 2
	assert.False(t, msg.CanRetry(3))

	assert.False(t, (&Message{}).CanRetry(1))
	assert.False(t, (&Message{}).CanRetry(0))
}

func TestOldest(t *testing.T) {
	now := time.Now()
	msgs := []*Message{
		{CreatedAt: now},
		{CreatedAt: now.Add(-time.Minute)},
		{CreatedAt: now.Add(time.Minute)},
	}

	assert.Equal(t, now.Add(-time.Minute), oldest(msgs))
}

func TestMessage_EnvelopeToleratesBadMetadata(t *testing.T) {
	msg := &Message{RoutingKey: "subscriptions.contract.created", Metadata: json.RawMessage(`not json`)}

	raw, err := msg.Envelope()
	require.NoError(t, err)

	consumed, err := eventbus.DecodeEnvelope("", raw)
	require.NoError(t, err)
	assert.Empty(t, consumed.Metadata.CorrelationID)
}
