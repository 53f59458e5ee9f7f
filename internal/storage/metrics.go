package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts statements, failures, front-end events and skips for one
// store. Each store owns its registry; nothing is registered globally.
type Metrics struct {
	Registry   *prometheus.Registry
	statements *prometheus.CounterVec
	failures   *prometheus.CounterVec
	events     *prometheus.CounterVec
	skips      *prometheus.CounterVec
}

// NewMetrics creates counters registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "typefind",
			Name:      "statements_total",
			Help:      "Statements executed against the store, by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "typefind",
			Name:      "statement_failures_total",
			Help:      "Statements that failed and were skipped, by operation and table.",
		}, []string{"op", "table"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "typefind",
			Name:      "events_total",
			Help:      "Front-end events processed, by kind.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "typefind",
			Name:      "skips_total",
			Help:      "Front-end events or facts dropped without error, by reason.",
		}, []string{"reason"}),
	}
	m.Registry.MustRegister(m.statements, m.failures, m.events, m.skips)
	return m
}

func (m *Metrics) observeStatement(op string) {
	m.statements.WithLabelValues(op).Inc()
}

func (m *Metrics) observeFailure(op, table string) {
	m.failures.WithLabelValues(op, table).Inc()
}

// ObserveEvent counts one processed front-end event.
func (m *Metrics) ObserveEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

// ObserveSkip counts one dropped event or fact.
func (m *Metrics) ObserveSkip(reason string) {
	m.skips.WithLabelValues(reason).Inc()
}

// Failures returns the counter for failed statements of op against table.
func (m *Metrics) Failures(op, table string) prometheus.Counter {
	return m.failures.WithLabelValues(op, table)
}

// Skips returns the counter for skips with the given reason.
func (m *Metrics) Skips(reason string) prometheus.Counter {
	return m.skips.WithLabelValues(reason)
}

// WriteTextfile writes all counters in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
