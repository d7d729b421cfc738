package locking

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/application"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// MeteredLocker records how long callers wait for a lock and how often
// they give up.
type MeteredLocker struct {
	next    application.Locker
	metrics observability.Metrics
	backend string
}

// NewMeteredLocker wraps next. backend labels the metrics ("memory", "redis").
func NewMeteredLocker(next application.Locker, metrics observability.Metrics, backend string) *MeteredLocker {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &MeteredLocker{next: next, metrics: metrics, backend: backend}
}

// Acquire implements application.Locker.
func (l *MeteredLocker) Acquire(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	release, err := l.next.Acquire(ctx, key)
	l.metrics.Timing(observability.MetricLockWait, time.Since(start), observability.T("backend", l.backend))
	if errors.Is(err, application.ErrLockTimeout) {
		l.metrics.Counter(observability.MetricLockTimeouts, 1, observability.T("backend", l.backend))
	}
	return release, err
}
