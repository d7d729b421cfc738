package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

type fakeStats struct {
	stats outbox.Stats
}

func (f fakeStats) GetStats() outbox.Stats { return f.stats }

func TestHealthMux_Healthz(t *testing.T) {
	mux := newHealthMux(fakeStats{stats: outbox.Stats{IsRunning: true, PublishedCount: 3}}, observability.NewHealthRegistry(), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(3), body["published"])
}

func TestHealthMux_Readyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		health := observability.NewHealthRegistry()
		health.Register("database", observability.DatabaseHealthChecker(func(ctx context.Context) error { return nil }))
		mux := newHealthMux(fakeStats{}, health, nil)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ready"`)
	})

	t.Run("database down", func(t *testing.T) {
		health := observability.NewHealthRegistry()
		health.Register("database", observability.DatabaseHealthChecker(func(ctx context.Context) error {
			return errors.New("connection refused")
		}))
		mux := newHealthMux(fakeStats{}, health, nil)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})

	t.Run("degraded redis is still ready", func(t *testing.T) {
		health := observability.NewHealthRegistry()
		health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return errors.New("timeout")
		}))
		mux := newHealthMux(fakeStats{}, health, nil)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthMux_Metrics(t *testing.T) {
	metrics := observability.NewPrometheusMetrics()
	metrics.Counter(observability.MetricContractsCreated, 1, observability.T("plan", "premium"))
	mux := newHealthMux(fakeStats{}, observability.NewHealthRegistry(), metrics.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portal_contracts_created_total{plan="premium"} 1`)
}
