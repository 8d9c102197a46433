// Package metrics exposes Prometheus collectors for order operations and
// structure explosions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the application services report to
type Recorder interface {
	RecordOrderOperation(operation string, duration time.Duration, err error)
	RecordOrderClosed(location string)
	RecordMovement(issue bool)
	RecordExplosion(duration time.Duration, rows int, err error)
}

// Collector implements Recorder on a private Prometheus registry
type Collector struct {
	registry *prometheus.Registry

	orderOperations *prometheus.CounterVec
	orderLatency    *prometheus.HistogramVec
	ordersClosed    *prometheus.CounterVec
	movements       *prometheus.CounterVec

	explosions       *prometheus.CounterVec
	explosionLatency prometheus.Histogram
	explosionRows    prometheus.Histogram
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector; an empty namespace defaults to "shopfloor"
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "shopfloor"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.orderOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "operations_total",
			Help:      "Production order operations by operation and result",
		},
		[]string{"operation", "result"},
	)
	c.orderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "operation_duration_seconds",
			Help:      "Duration of production order operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	c.ordersClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "closed_total",
			Help:      "Production orders closed on completion",
		},
		[]string{"location"},
	)
	c.movements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "movements_total",
			Help:      "Stock movements posted by direction",
		},
		[]string{"direction"},
	)
	c.explosions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structure",
			Name:      "explosions_total",
			Help:      "Structure explosions by result",
		},
		[]string{"result"},
	)
	c.explosionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "structure",
			Name:      "explosion_duration_seconds",
			Help:      "Duration of structure explosions",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
	c.explosionRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "structure",
			Name:      "explosion_rows",
			Help:      "Rows produced per structure explosion",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	c.registry.MustRegister(
		c.orderOperations,
		c.orderLatency,
		c.ordersClosed,
		c.movements,
		c.explosions,
		c.explosionLatency,
		c.explosionRows,
	)
	return c
}

// Registry returns the registry holding every collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) RecordOrderOperation(operation string, duration time.Duration, err error) {
	c.orderOperations.WithLabelValues(operation, result(err)).Inc()
	c.orderLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordOrderClosed(location string) {
	c.ordersClosed.WithLabelValues(location).Inc()
}

func (c *Collector) RecordMovement(issue bool) {
	direction := "receipt"
	if issue {
		direction = "issue"
	}
	c.movements.WithLabelValues(direction).Inc()
}

func (c *Collector) RecordExplosion(duration time.Duration, rows int, err error) {
	c.explosions.WithLabelValues(result(err)).Inc()
	c.explosionLatency.Observe(duration.Seconds())
	if err == nil {
		c.explosionRows.Observe(float64(rows))
	}
}

// NoOpRecorder discards everything
type NoOpRecorder struct{}

var _ Recorder = NoOpRecorder{}

func (NoOpRecorder) RecordOrderOperation(string, time.Duration, error) {}
func (NoOpRecorder) RecordOrderClosed(string)                          {}
func (NoOpRecorder) RecordMovement(bool)                               {}
func (NoOpRecorder) RecordExplosion(time.Duration, int, error)         {}
