package observability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus is the state of one dependency or of the whole process.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// severity orders statuses so the worst one wins.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusUnhealthy:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// HealthCheckResult is one probe outcome.
type HealthCheckResult struct {
	Status    HealthStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	CheckedAt time.Time      `json:"checked_at"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) HealthCheckResult

// OverallHealth is the aggregate of one Check run.
type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	CheckedAt time.Time                    `json:"checked_at"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// HealthRegistry holds the probes for the process's dependencies. Probes run
// concurrently, each bounded by the registry timeout.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// NewHealthRegistry creates a registry with a 2s per-probe timeout.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		checkers: make(map[string]HealthChecker),
		timeout:  2 * time.Second,
	}
}

// Register adds or replaces the probe for name.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs every probe and returns the results by name.
func (r *HealthRegistry) Check(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for name, checker := range r.checkers {
		checkers[name] = checker
	}
	timeout := r.timeout
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheckResult, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := runProbe(ctx, timeout, checker)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func runProbe(ctx context.Context, timeout time.Duration, checker HealthChecker) HealthCheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := checker(probeCtx)
	result.LatencyMs = time.Since(start).Milliseconds()
	result.CheckedAt = start.UTC()
	return result
}

// GetOverallHealth runs every probe and reports the worst status seen. A
// registry with no probes is healthy.
func (r *HealthRegistry) GetOverallHealth(ctx context.Context) OverallHealth {
	checks := r.Check(ctx)
	status := HealthStatusHealthy
	for _, result := range checks {
		if result.Status.severity() > status.severity() {
			status = result.Status
		}
	}
	return OverallHealth{Status: status, CheckedAt: time.Now().UTC(), Checks: checks}
}

// PingChecker reports component healthy when ping succeeds and failStatus
// otherwise.
func PingChecker(component string, failStatus HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{
				Status:  failStatus,
				Message: fmt.Sprintf("%s unreachable: %v", component, err),
			}
		}
		return HealthCheckResult{Status: HealthStatusHealthy, Message: component + " reachable"}
	}
}

// DatabaseHealthChecker marks the process unhealthy when the store is down.
func DatabaseHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return PingChecker("database", HealthStatusUnhealthy, ping)
}

// RedisHealthChecker degrades the process when the lock backend is down.
func RedisHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return PingChecker("redis", HealthStatusDegraded, ping)
}

// RabbitMQHealthChecker degrades the process when the broker is down; events
// stay in the outbox until it returns.
func RabbitMQHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return PingChecker("rabbitmq", HealthStatusDegraded, ping)
}

// OutboxLagChecker degrades the process once the oldest undelivered event is
// older than maxLag.
func OutboxLagChecker(maxLag time.Duration, lag func() time.Duration) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		current := lag()
		result := HealthCheckResult{
			Status:  HealthStatusHealthy,
			Details: map[string]any{"lag_seconds": current.Seconds()},
		}
		if current > maxLag {
			result.Status = HealthStatusDegraded
			result.Message = fmt.Sprintf("outbox lag %s exceeds %s", current.Round(time.Second), maxLag)
		}
		return result
	}
}
