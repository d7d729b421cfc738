package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/portal/pkg/observability"
)

// Request headers carrying observability ids.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
	HeaderActorID       = "X-Actor-ID"
)

// requestContext seeds the request context with correlation, request and
// actor ids and echoes them back to the caller.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get(HeaderCorrelationID))
		if actor := r.Header.Get(HeaderActorID); actor != "" {
			ctx = observability.WithActorID(ctx, actor)
		}

		w.Header().Set(HeaderCorrelationID, observability.CorrelationIDFromContext(ctx))
		w.Header().Set(HeaderRequestID, observability.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observe logs and counts every request by route pattern and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		tags := []observability.Tag{
			observability.T("route", route),
			observability.T("status", http.StatusText(rec.status)),
		}
		s.metrics.Counter(observability.MetricHTTPRequests, 1, tags...)
		s.metrics.Timing(observability.MetricHTTPDuration, duration, tags...)

		level := slogLevel(rec.status)
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			observability.DurationKey, duration.Milliseconds(),
		)
	})
}

func slogLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
