// Package telemetry records build metrics on a private Prometheus
// registry.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zheng/pyflow/internal/graph"
)

// Run statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Metrics is the set of pyflow collectors.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	expansionsTotal prometheus.Counter
	unresolvedTotal prometheus.Counter
	graphNodes      prometheus.Histogram
	buildDuration   prometheus.Histogram
}

// NewMetrics registers the collectors on registry. If registry is nil, a
// fresh one is created.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pyflow_runs_total",
			Help: "Flow graph builds by outcome.",
		}, []string{"status"}),
		expansionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pyflow_call_expansions_total",
			Help: "Call sites inlined across all builds.",
		}),
		unresolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pyflow_unresolved_calls_total",
			Help: "Call sites left unexpanded because resolution failed.",
		}),
		graphNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyflow_graph_nodes",
			Help:    "Nodes per built graph.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10), // 8 .. 4096
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyflow_build_duration_seconds",
			Help:    "Time spent parsing, resolving and building one graph.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	registry.MustRegister(m.runsTotal, m.expansionsTotal, m.unresolvedTotal, m.graphNodes, m.buildDuration)
	return m
}

// RecordBuild records a successful build.
func (m *Metrics) RecordBuild(stats graph.Stats, duration time.Duration) {
	m.runsTotal.WithLabelValues(StatusOK).Inc()
	m.expansionsTotal.Add(float64(stats.Expansions))
	m.unresolvedTotal.Add(float64(stats.Unresolved))
	m.graphNodes.Observe(float64(stats.Nodes))
	m.buildDuration.Observe(duration.Seconds())
}

// RecordFailure records a build that returned an error.
func (m *Metrics) RecordFailure(duration time.Duration) {
	m.runsTotal.WithLabelValues(StatusError).Inc()
	m.buildDuration.Observe(duration.Seconds())
}

// RecordSkipped records a watch cycle that found unchanged sources.
func (m *Metrics) RecordSkipped() {
	m.runsTotal.WithLabelValues(StatusSkipped).Inc()
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
