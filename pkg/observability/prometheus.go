package observability

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a private Prometheus registry.
// Collectors are created on first use. The label set of a metric is fixed by
// its first observation: later tags with unknown keys are dropped and missing
// keys are reported as empty.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewPrometheusMetrics creates a collector with Go runtime and process
// metrics already registered.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name) + "_total",
			Help: name,
		}, m.labelNames(name, tags))
		m.registry.MustRegister(vec)
		m.counters[name] = vec
	}
	vec.WithLabelValues(m.labelValues(name, tags)...).Add(float64(value))
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: promName(name),
			Help: name,
		}, m.labelNames(name, tags))
		m.registry.MustRegister(vec)
		m.gauges[name] = vec
	}
	vec.WithLabelValues(m.labelValues(name, tags)...).Set(value)
}

func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.observe(name, promName(name), value, tags)
}

// Timing records durations in seconds.
func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.observe(name, promName(name)+"_seconds", duration.Seconds(), tags)
}

func (m *PrometheusMetrics) observe(name, fqName string, value float64, tags []Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fqName,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, m.labelNames(name, tags))
		m.registry.MustRegister(vec)
		m.histograms[name] = vec
	}
	vec.WithLabelValues(m.labelValues(name, tags)...).Observe(value)
}

// labelNames fixes the label set for name. Caller holds m.mu.
func (m *PrometheusMetrics) labelNames(name string, tags []Tag) []string {
	if names, ok := m.labels[name]; ok {
		return names
	}
	names := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		key := promName(tag.Key)
		if !seen[key] {
			seen[key] = true
			names = append(names, key)
		}
	}
	sort.Strings(names)
	m.labels[name] = names
	return names
}

// labelValues orders tag values to match the fixed label set. Caller holds m.mu.
func (m *PrometheusMetrics) labelValues(name string, tags []Tag) []string {
	names := m.labels[name]
	values := make([]string, len(names))
	for _, tag := range tags {
		key := promName(tag.Key)
		if i := sort.SearchStrings(names, key); i < len(names) && names[i] == key {
			values[i] = tag.Value
		}
	}
	return values
}

// promName maps dotted metric names to the Prometheus charset.
func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}
