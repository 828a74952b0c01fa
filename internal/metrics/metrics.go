// Package metrics exposes Prometheus collectors that report kernel activity.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report colony activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks             prometheus.Counter
	tickDuration      prometheus.Histogram
	proposalsResolved *prometheus.CounterVec
	proposalsPending  prometheus.Gauge
	population        prometheus.Gauge
	averagePAS        prometheus.Gauge
	externalCalls     *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// Default returns the instance registered with the global Prometheus registry.
// The collectors are created only once so repeated kernels in one process do
// not trip duplicate registration.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests supply a fresh registry. Registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collective",
			Subsystem: "kernel",
			Name:      "ticks_total",
			Help:      "Number of ticks executed, timer-driven or stepped.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "collective",
			Subsystem: "kernel",
			Name:      "tick_duration_seconds",
			Help:      "Time spent executing one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		proposalsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collective",
			Subsystem: "governance",
			Name:      "proposals_resolved_total",
			Help:      "Proposals that left the pending set, by action kind and outcome.",
		}, []string{"kind", "outcome"}),
		proposalsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collective",
			Subsystem: "governance",
			Name:      "proposals_pending",
			Help:      "Proposals awaiting resolution.",
		}),
		population: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collective",
			Subsystem: "colony",
			Name:      "agents",
			Help:      "Current number of agents.",
		}),
		averagePAS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collective",
			Subsystem: "colony",
			Name:      "average_pas",
			Help:      "Mean pro-sociality score of the roster.",
		}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collective",
			Subsystem: "collaborator",
			Name:      "calls_total",
			Help:      "Calls to generative collaborators, by kind and status.",
		}, []string{"kind", "status"}),
	}

	reg.MustRegister(
		m.ticks,
		m.tickDuration,
		m.proposalsResolved,
		m.proposalsPending,
		m.population,
		m.averagePAS,
		m.externalCalls,
	)
	return m
}

// ObserveTick records one executed tick.
func (m *Metrics) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(duration.Seconds())
}

// IncProposalResolved counts a proposal leaving the pending set.
func (m *Metrics) IncProposalResolved(kind, outcome string) {
	if m == nil {
		return
	}
	m.proposalsResolved.WithLabelValues(kind, outcome).Inc()
}

// SetColony updates the roster gauges.
func (m *Metrics) SetColony(agents, pending int, averagePAS float64) {
	if m == nil {
		return
	}
	m.population.Set(float64(agents))
	m.proposalsPending.Set(float64(pending))
	m.averagePAS.Set(averagePAS)
}

// IncExternalCall counts a collaborator call. status is "ok" or "error".
func (m *Metrics) IncExternalCall(kind, status string) {
	if m == nil {
		return
	}
	m.externalCalls.WithLabelValues(kind, status).Inc()
}
