// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the Prometheus metrics for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal       *prometheus.CounterVec
	OutcomesTotal     *prometheus.CounterVec
	RulesAppliedTotal prometheus.Counter
	FixesTotal        prometheus.Counter
	SynthesisSeconds  prometheus.Histogram
	ReloadSeconds     prometheus.Histogram
}

// New registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kerneural_events_total",
			Help: "Events read from the Falco stream, by priority",
		}, []string{"priority"}),
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kerneural_cycle_outcomes_total",
			Help: "Pipeline cycles by final outcome",
		}, []string{"outcome"}),
		RulesAppliedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kerneural_rules_applied_total",
			Help: "Rules appended to the rule store",
		}),
		FixesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kerneural_rule_fixes_total",
			Help: "Automatic corrections applied to accepted rules",
		}),
		SynthesisSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kerneural_synthesis_duration_seconds",
			Help:    "Latency of synthesis calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		ReloadSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kerneural_reload_duration_seconds",
			Help:    "Latency of engine reloads",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveEvent counts an event read from the stream.
func (m *Metrics) ObserveEvent(priority string) {
	m.EventsTotal.WithLabelValues(priority).Inc()
}

// ObserveOutcome counts a finished cycle.
func (m *Metrics) ObserveOutcome(outcome string) {
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
