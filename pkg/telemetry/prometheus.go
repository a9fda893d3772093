package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics holds the Prometheus collectors for a CLI run. Batch runs write
// them to a node_exporter textfile when they finish.
type RunMetrics struct {
	lookupsTotal   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	reportsWritten *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRunMetrics creates the collectors on a private registry.
func NewRunMetrics() *RunMetrics {
	registry := prometheus.NewRegistry()

	m := &RunMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phonescope_lookups_total",
				Help: "Total number of provider lookups by provider, category and status",
			},
			[]string{"provider", "category", "status"},
		),

		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phonescope_lookup_duration_seconds",
				Help:    "Provider lookup latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		reportsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phonescope_reports_written_total",
				Help: "Total number of report write attempts by outcome",
			},
			[]string{"outcome"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.lookupsTotal,
		m.lookupDuration,
		m.reportsWritten,
	)

	return m
}

// ObserveLookup records one provider call.
func (m *RunMetrics) ObserveLookup(provider, category, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(provider, category, status).Inc()
	m.lookupDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordReport counts a report write attempt.
func (m *RunMetrics) RecordReport(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.reportsWritten.WithLabelValues(outcome).Inc()
}

// Registry returns the Prometheus registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes all collectors in the text exposition
// format, for pickup by the node_exporter textfile collector.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
