// ABOUTME: Prometheus instrumentation for the coordinators
// ABOUTME: Counts operations by outcome, version bumps by component, and cascade deletions
package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cistore"

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Operations counts coordinator calls by operation and outcome.
	Operations *prometheus.CounterVec
	// Duration measures coordinator call latency by operation.
	Duration *prometheus.HistogramVec
	// VersionBumps counts persisted updates by bumped component.
	VersionBumps *prometheus.CounterVec
	// CascadeDeletes counts documents removed by cascades, by collection.
	CascadeDeletes *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Coordinator operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Coordinator operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		VersionBumps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "version_bumps_total",
			Help:      "Persisted object updates by bumped version component.",
		}, []string{"component"}),
		CascadeDeletes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "cascade_deletes_total",
			Help:      "Documents removed by cascade deletes.",
		}, []string{"collection"}),
	}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, kindOf(err)).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) bump(component string) {
	if m == nil {
		return
	}
	m.VersionBumps.WithLabelValues(component).Inc()
}

func (m *Metrics) cascaded(collection string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CascadeDeletes.WithLabelValues(collection).Add(float64(n))
}
