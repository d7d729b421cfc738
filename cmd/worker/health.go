package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

const readinessTimeout = 2 * time.Second

// statsSource is the part of the outbox processor /healthz reports.
type statsSource interface {
	GetStats() outbox.Stats
}

// newHealthMux serves /healthz (process liveness and relay counters),
// /readyz (dependency checks; only an unhealthy check fails it) and, when
// metrics is set, /metrics.
func newHealthMux(processor statsSource, health *observability.HealthRegistry, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
			outbox.Stats
		}{Status: "ok", Stats: processor.GetStats()})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		overall := health.GetOverallHealth(ctx)
		status, code := "ready", http.StatusOK
		if overall.Status == observability.HealthStatusUnhealthy {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": status, "checks": overall.Checks})
	})

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
