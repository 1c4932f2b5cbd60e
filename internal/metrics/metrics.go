// Package metrics exports cmdlens operation metrics in Prometheus format.
// All methods are safe on a nil *Exporter so callers can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cmdlens"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration. Store operations
// are local SQLite calls, so buckets start well below a millisecond.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// Exporter holds the cmdlens collectors.
type Exporter struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	patterns   prometheus.Gauge
	purged     prometheus.Counter
}

// New creates an exporter and registers its collectors.
func New(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of usage operations by outcome",
		},
		[]string{"operation", "status"},
	)

	e.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Usage operation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	e.patterns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detected_patterns",
			Help:      "Number of patterns returned by the last detection run",
		},
	)

	e.purged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_invocations_total",
			Help:      "Total number of command invocations removed by retention",
		},
	)

	registry.MustRegister(e.operations, e.latency, e.patterns, e.purged)
	return e
}

// ObserveOperation records the outcome and latency of one operation.
func (e *Exporter) ObserveOperation(op string, elapsed time.Duration, err error) {
	if e == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	e.operations.WithLabelValues(op, status).Inc()
	e.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetPatterns records the size of the latest detection result.
func (e *Exporter) SetPatterns(n int) {
	if e == nil {
		return
	}
	e.patterns.Set(float64(n))
}

// AddPurged adds to the purged-invocation counter.
func (e *Exporter) AddPurged(n int64) {
	if e == nil || n <= 0 {
		return
	}
	e.purged.Add(float64(n))
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	if e == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
