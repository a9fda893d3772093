package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/polisai/phonescope/pkg/domain"
)

var (
	metricsOnce            sync.Once
	metricsInitErr         error
	lookupExecutionCounter metric.Int64Counter
	lookupTimeoutCounter   metric.Int64Counter
	lookupCancelCounter    metric.Int64Counter
	lookupLatencyHistogram metric.Float64Histogram
)

// LookupMetrics captures the fields needed to record one provider call.
type LookupMetrics struct {
	Provider string
	Category string
	Result   domain.LookupResult
	Duration time.Duration
}

// RecordLookupMetrics emits counters and histograms that describe provider behaviour.
func RecordLookupMetrics(ctx context.Context, m LookupMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("provider", m.Provider),
		attribute.String("category", m.Category),
		attribute.String("status", string(m.Result.Status)),
	)

	lookupExecutionCounter.Add(ctx, 1, attrs)

	if m.Duration > 0 {
		lookupLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), attrs)
	}

	switch m.Result.Reason {
	case domain.ReasonTimeout:
		lookupTimeoutCounter.Add(ctx, 1, attrs)
	case domain.ReasonCancelled:
		lookupCancelCounter.Add(ctx, 1, attrs)
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("phonescope.aggregator")

		lookupExecutionCounter, metricsInitErr = meter.Int64Counter(
			"phonescope.lookup.executions_total",
			metric.WithDescription("Provider lookups partitioned by status"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		lookupTimeoutCounter, metricsInitErr = meter.Int64Counter(
			"phonescope.lookup.timeout_total",
			metric.WithDescription("Lookups abandoned at their deadline"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		lookupCancelCounter, metricsInitErr = meter.Int64Counter(
			"phonescope.lookup.cancelled_total",
			metric.WithDescription("Lookups abandoned because the run was cancelled"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		lookupLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"phonescope.lookup.duration_ms",
			metric.WithDescription("Observed provider lookup latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
