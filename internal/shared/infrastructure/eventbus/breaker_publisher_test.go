package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestBreakerPublisher(t *testing.T) {
	ctx := context.Background()
	cfg := eventbus.BreakerConfig{MaxRequests: 1, Timeout: time.Hour, FailureThreshold: 2}

	t.Run("forwards while closed", func(t *testing.T) {
		next := new(mockPublisher)
		next.On("Publish", ctx, contractCreated, []byte("{}")).Return(nil)
		metrics := observability.NewInMemoryMetrics()
		publisher := eventbus.NewBreakerPublisher(next, cfg, testLogger(), metrics)

		err := publisher.Publish(ctx, contractCreated, []byte("{}"))

		assert.NoError(t, err)
		assert.Equal(t, "closed", publisher.State())
		assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsPublished, observability.T("routing_key", contractCreated)))
		next.AssertExpectations(t)
	})

	t.Run("opens after consecutive failures and fails fast", func(t *testing.T) {
		brokerDown := errors.New("connection refused")
		next := new(mockPublisher)
		next.On("Publish", ctx, contractCreated, mock.Anything).Return(brokerDown).Times(2)
		publisher := eventbus.NewBreakerPublisher(next, cfg, testLogger(), nil)

		assert.ErrorIs(t, publisher.Publish(ctx, contractCreated, nil), brokerDown)
		assert.ErrorIs(t, publisher.Publish(ctx, contractCreated, nil), brokerDown)
		assert.Equal(t, "open", publisher.State())

		err := publisher.Publish(ctx, contractCreated, nil)

		assert.ErrorIs(t, err, eventbus.ErrPublisherUnavailable)
		next.AssertNumberOfCalls(t, "Publish", 2)
	})

	t.Run("cancelled publishes do not count as failures", func(t *testing.T) {
		next := new(mockPublisher)
		next.On("Publish", ctx, contractCreated, mock.Anything).Return(context.Canceled)
		publisher := eventbus.NewBreakerPublisher(next, cfg, testLogger(), nil)

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, publisher.Publish(ctx, contractCreated, nil), context.Canceled)
		}
		assert.Equal(t, "closed", publisher.State())
	})

	t.Run("close delegates", func(t *testing.T) {
		next := new(mockPublisher)
		next.On("Close").Return(nil)
		publisher := eventbus.NewBreakerPublisher(next, cfg, testLogger(), nil)

		assert.NoError(t, publisher.Close())
		next.AssertExpectations(t)
	})
}
