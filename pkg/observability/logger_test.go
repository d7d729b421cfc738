package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level LogLevel) *slog.Logger {
	return NewLogger(LogConfig{
		Level:   level,
		Format:  LogFormatJSON,
		Output:  buf,
		Service: "portal-api",
		Version: "1.4.0",
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf})

		logger.Info("contract created", "plan_id", "premium")

		assert.Contains(t, buf.String(), "contract created")
		assert.Contains(t, buf.String(), "plan_id=premium")
	})

	t.Run("json output carries service and version", func(t *testing.T) {
		var buf bytes.Buffer
		jsonLogger(&buf, LogLevelInfo).Info("contract renewed", "contract_id", "c-1")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "contract renewed", entries[0]["msg"])
		assert.Equal(t, "portal-api", entries[0]["service"])
		assert.Equal(t, "1.4.0", entries[0]["version"])
		assert.Equal(t, "c-1", entries[0]["contract_id"])
	})

	t.Run("filters below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := jsonLogger(&buf, LogLevelWarn)

		logger.Debug("lock acquired")
		logger.Info("outbox drained")
		logger.Warn("broker unreachable")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "broker unreachable", entries[0]["msg"])
	})

	t.Run("adds request scope from context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := jsonLogger(&buf, LogLevelInfo)

		ctx := WithCorrelationID(context.Background(), "corr-1")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithActorID(ctx, "operator")
		ctx = WithSubscriberID(ctx, "sub-1")
		logger.InfoContext(ctx, "plan changed")
		logger.Info("no scope")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.Equal(t, "corr-1", entries[0][CorrelationIDKey])
		assert.Equal(t, "req-1", entries[0][RequestIDKey])
		assert.Equal(t, "operator", entries[0][ActorIDKey])
		assert.Equal(t, "sub-1", entries[0][SubscriberIDKey])
		assert.NotContains(t, entries[1], CorrelationIDKey)
	})

	t.Run("scope survives With", func(t *testing.T) {
		var buf bytes.Buffer
		logger := LogOperation(jsonLogger(&buf, LogLevelInfo), "renew_contract", "contract_id", "c-9")

		logger.InfoContext(WithCorrelationID(context.Background(), "corr-2"), "renewal already exists")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "renew_contract", entries[0][OperationKey])
		assert.Equal(t, "c-9", entries[0]["contract_id"])
		assert.Equal(t, "corr-2", entries[0][CorrelationIDKey])
	})

	t.Run("nil output falls back to stderr", func(t *testing.T) {
		assert.NotNil(t, NewLogger(LogConfig{}))
	})
}

func TestLogConfigs(t *testing.T) {
	dev := DefaultLogConfig()
	assert.Equal(t, LogFormatText, dev.Format)
	assert.False(t, dev.AddSource)
	assert.Equal(t, "portal", dev.Service)

	prod := ProductionLogConfig()
	assert.Equal(t, LogFormatJSON, prod.Format)
	assert.True(t, prod.AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestRequestScope(t *testing.T) {
	t.Run("generates ids when empty", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "")
		assert.Len(t, CorrelationIDFromContext(ctx), 36)
		assert.Len(t, RequestIDFromContext(ctx), 36)
		assert.NotEqual(t, CorrelationIDFromContext(ctx), RequestIDFromContext(ctx))
	})

	t.Run("keeps a supplied correlation id", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "upstream")
		assert.Equal(t, "upstream", CorrelationIDFromContext(ctx))
	})

	t.Run("children do not alter the parent", func(t *testing.T) {
		parent := WithActorID(context.Background(), "operator")
		child := WithSubscriberID(parent, "sub-1")

		assert.Equal(t, "operator", ActorIDFromContext(child))
		assert.Equal(t, "sub-1", SubscriberIDFromContext(child))
		assert.Empty(t, SubscriberIDFromContext(parent))
	})

	t.Run("empty context", func(t *testing.T) {
		assert.Empty(t, CorrelationIDFromContext(context.Background()))
		assert.Empty(t, ActorIDFromContext(context.TODO()))
	})
}

func TestTimeOperationResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		metrics := NewInMemoryMetrics()

		got, err := TimeOperationResult(context.Background(), jsonLogger(&buf, LogLevelInfo), metrics, "subscriptions.renew_contract", func() (string, error) {
			return "renewal", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "renewal", got)
		tags := []Tag{T(OperationKey, "subscriptions.renew_contract"), T(OutcomeKey, OutcomeOK)}
		assert.Equal(t, int64(1), metrics.GetCounter(MetricOperations, tags...))
		assert.Len(t, metrics.GetTimings(MetricOperationDuration, tags...), 1)

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "INFO", entries[0]["level"])
		assert.Equal(t, "subscriptions.renew_contract completed", entries[0]["msg"])
	})

	t.Run("failure", func(t *testing.T) {
		var buf bytes.Buffer
		metrics := NewInMemoryMetrics()
		boom := errors.New("contract not found")

		err := TimeOperation(context.Background(), jsonLogger(&buf, LogLevelInfo), metrics, "subscriptions.change_plan", func() error {
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(1), metrics.GetCounter(MetricOperations,
			T(OutcomeKey, OutcomeError), T(OperationKey, "subscriptions.change_plan")))

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "ERROR", entries[0]["level"])
		assert.Equal(t, "contract not found", entries[0][ErrorKey])
	})

	t.Run("nil logger and metrics", func(t *testing.T) {
		got, err := TimeOperationResult(context.Background(), nil, nil, "noop", func() (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})
}
