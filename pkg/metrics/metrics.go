// Package metrics exposes solver counters through a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector of one analysis run
type Metrics struct {
	registry *prometheus.Registry

	GraphNodes      prometheus.Gauge
	GraphEdges      prometheus.Gauge
	GraphOperations prometheus.Gauge
	GraphWindows    prometheus.Gauge

	ReachQueries  *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Bindings      *prometheus.GaugeVec

	ClassificationViolations *prometheus.CounterVec
	UnresolvedEntities       *prometheus.CounterVec
	ListenerWiring           *prometheus.CounterVec
}

// New creates a metrics set on a fresh registry
func New() *Metrics {
	r := prometheus.NewRegistry()
	f := promauto.With(r)

	return &Metrics{
		registry: r,

		GraphNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "guiflow_graph_nodes",
			Help: "Number of nodes in the flow graph",
		}),
		GraphEdges: f.NewGauge(prometheus.GaugeOpts{
			Name: "guiflow_graph_edges",
			Help: "Number of edges in the flow graph",
		}),
		GraphOperations: f.NewGauge(prometheus.GaugeOpts{
			Name: "guiflow_graph_operations",
			Help: "Number of operation nodes in the flow graph",
		}),
		GraphWindows: f.NewGauge(prometheus.GaugeOpts{
			Name: "guiflow_graph_windows",
			Help: "Number of window nodes in the flow graph",
		}),

		ReachQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guiflow_reach_queries_total",
			Help: "Reachability closures computed",
		}, []string{"direction"}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guiflow_phase_duration_seconds",
			Help:    "Duration of analysis phases",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"phase"}),
		Bindings: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "guiflow_bindings",
			Help: "Number of (operation, node) pairs per solution map",
		}, []string{"map"}),

		ClassificationViolations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guiflow_classification_violations_total",
			Help: "Producer flows with no classification entry",
		}, []string{"op", "role"}),
		UnresolvedEntities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guiflow_unresolved_entities_total",
			Help: "Flows skipped because an entity could not be resolved",
		}, []string{"entity"}),
		ListenerWiring: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guiflow_listener_wiring_total",
			Help: "Listener handler wiring requests by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetGraph records graph size
func (m *Metrics) SetGraph(nodes, edges, operations, windows int) {
	if m == nil {
		return
	}
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
	m.GraphOperations.Set(float64(operations))
	m.GraphWindows.Set(float64(windows))
}

// IncReachQuery counts one closure computation
func (m *Metrics) IncReachQuery(direction string) {
	if m == nil {
		return
	}
	m.ReachQueries.WithLabelValues(direction).Inc()
}

// ObservePhase records how long a phase took
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetBindings records the size of one solution map
func (m *Metrics) SetBindings(name string, pairs int) {
	if m == nil {
		return
	}
	m.Bindings.WithLabelValues(name).Set(float64(pairs))
}

// IncViolation counts one classification gap
func (m *Metrics) IncViolation(op, role string) {
	if m == nil {
		return
	}
	m.ClassificationViolations.WithLabelValues(op, role).Inc()
}

// IncUnresolved counts one skipped flow
func (m *Metrics) IncUnresolved(entity string) {
	if m == nil {
		return
	}
	m.UnresolvedEntities.WithLabelValues(entity).Inc()
}

// IncWiring counts one listener wiring request by outcome
// ("wired", "memo_hit", "skipped")
func (m *Metrics) IncWiring(outcome string) {
	if m == nil {
		return
	}
	m.ListenerWiring.WithLabelValues(outcome).Inc()
}

// WriteToTextfile exports the registry in the text exposition format, for
// pickup by a node exporter textfile collector after a batch run
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
