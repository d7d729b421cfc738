package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics is the recording surface used by the application layer. The
// Prometheus collector backs it in processes; InMemoryMetrics backs tests.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T is shorthand for Tag{Key: key, Value: value}.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// series holds every kind of observation made under one name and label set.
type series struct {
	count   int64
	gauge   float64
	samples []float64
	timings []time.Duration
}

// InMemoryMetrics records observations so tests can assert on them. Tag
// order does not matter when reading back.
type InMemoryMetrics struct {
	mu     sync.RWMutex
	series map[string]*series
}

// NewInMemoryMetrics creates an empty recorder.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: make(map[string]*series)}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.count += value })
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.gauge = value })
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.samples = append(s.samples, value) })
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.timings = append(s.timings, duration) })
}

func (m *InMemoryMetrics) update(name string, tags []Tag, fn func(*series)) {
	key := seriesKey(name, tags)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[key]
	if !ok {
		s = &series{}
		m.series[key] = s
	}
	fn(s)
}

func (m *InMemoryMetrics) read(name string, tags []Tag) series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.series[seriesKey(name, tags)]; ok {
		return series{
			count:   s.count,
			gauge:   s.gauge,
			samples: append([]float64(nil), s.samples...),
			timings: append([]time.Duration(nil), s.timings...),
		}
	}
	return series{}
}

// GetCounter returns the counter total for name and tags.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	return m.read(name, tags).count
}

// GetGauge returns the last gauge value for name and tags.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	return m.read(name, tags).gauge
}

// GetHistogram returns the observed histogram samples.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	return m.read(name, tags).samples
}

// GetTimings returns the observed durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	return m.read(name, tags).timings
}

// Reset forgets every observation.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = make(map[string]*series)
}

func seriesKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	pairs := make([]string, len(tags))
	for i, t := range tags {
		pairs[i] = t.Key + "=" + t.Value
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// Metric names. Dots become underscores when exported to Prometheus.
const (
	// Lifecycle operations, tagged by operation and outcome.
	MetricOperations        = "portal.operations"
	MetricOperationDuration = "portal.operation.duration"

	MetricContractsCreated     = "portal.contracts.created"
	MetricContractsRenewed     = "portal.contracts.renewed"
	MetricPaymentStatusChanges = "portal.contracts.payment_status_changes"
	MetricPlanChanges          = "portal.subscribers.plan_changes"

	MetricLockWait     = "portal.lock.wait"
	MetricLockTimeouts = "portal.lock.timeouts"

	MetricOutboxPublished = "portal.outbox.published"
	MetricOutboxFailed    = "portal.outbox.failed"
	MetricOutboxDead      = "portal.outbox.dead"
	MetricOutboxLag       = "portal.outbox.lag_seconds"

	MetricEventsPublished = "portal.events.published"
	MetricEventsConsumed  = "portal.events.consumed"
	MetricBreakerState    = "portal.events.breaker_state"

	MetricHTTPRequests = "portal.http.requests"
	MetricHTTPDuration = "portal.http.duration"
)
