// Package aggregator fans a phone number out to every registered provider and
// merges the answers into a single report.
//
// Each provider call runs in its own goroutine under a per-call deadline. The
// aggregator waits on either the provider's answer or the deadline, so a
// provider that ignores its context is abandoned rather than waited for. The
// number of in-flight calls is bounded. Results land in a slot indexed by
// registration position, which keeps the report order deterministic no matter
// which call finishes first.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/polisai/phonescope/internal/governance"
	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/phone"
	"github.com/polisai/phonescope/pkg/provider"
	"github.com/polisai/phonescope/pkg/telemetry"
)

// Concurrency bounds.
const (
	DefaultConcurrency = 6
	MaxConcurrency     = 32
)

const tracerName = "github.com/polisai/phonescope/pkg/aggregator"

// Config controls fan-out behaviour.
type Config struct {
	// Concurrency is the maximum number of in-flight lookups.
	Concurrency int
	// Timeout is the default per-call budget; entries may override it.
	Timeout time.Duration
	// BrowserTimeout is the default budget of browser-driven entries.
	BrowserTimeout time.Duration
}

// Aggregator runs analyses against a registry. It holds no per-run state and
// is safe for concurrent use.
type Aggregator struct {
	registry *provider.Registry
	cfg      Config
	timeouts *governance.TimeoutManager
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.RunMetrics
	now      func() time.Time
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for run and lookup events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRunMetrics records every lookup into m.
func WithRunMetrics(m *telemetry.RunMetrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Aggregator over registry.
func New(registry *provider.Registry, cfg Config, opts ...Option) *Aggregator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}

	a := &Aggregator{
		registry: registry,
		timeouts: governance.NewTimeoutManager(governance.TimeoutConfig{
			Lookup:  cfg.Timeout,
			Browser: cfg.BrowserTimeout,
		}),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	cfg.Timeout = a.timeouts.Config().Lookup
	cfg.BrowserTimeout = a.timeouts.Config().Browser
	a.cfg = cfg

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Budget returns the deadline applied to a call of entry.
func (a *Aggregator) Budget(entry provider.Entry) time.Duration {
	if entry.Browser {
		return a.timeouts.BrowserBudget(entry.Timeout)
	}
	return a.timeouts.Budget(entry.Timeout)
}

// Analyze runs every registered provider against raw and returns the merged
// report. The only error is a *domain.InputError for input that does not
// normalize; in that case no provider is invoked. Digits that normalize but do
// not form a dialable number produce a report with every slot failed.
func (a *Aggregator) Analyze(ctx context.Context, raw string) (*domain.Report, error) {
	digits, err := phone.Normalize(raw)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)

	ctx, span := a.tracer.Start(ctx, "phonescope.analyze")
	defer span.End()
	telemetry.SetRedacted(span,
		attribute.String(telemetry.AttrRunID, runID),
		attribute.String(telemetry.AttrTarget, raw),
	)

	entries := a.registry.All()
	started := a.now()

	number, err := phone.Parse(digits)
	if err != nil {
		logger.Warn("number does not parse, skipping providers", "error", err, "providers", len(entries))
		span.AddEvent("number.invalid")
		results := make([]domain.LookupResult, len(entries))
		for i := range results {
			results[i] = domain.Failed("", domain.ReasonInvalidNumber)
		}
		return assemble(started, raw, entries, results), nil
	}

	logger.Info("analysis started", "providers", len(entries), "concurrency", a.cfg.Concurrency)

	results := a.fanOut(ctx, logger, number, entries)
	report := assemble(started, raw, entries, results)

	found, failed := tally(results)
	logger.Info("analysis finished",
		"found", found,
		"failed", failed,
		"duration", a.now().Sub(started),
	)
	span.SetAttributes(
		attribute.Int("phonescope.results.found", found),
		attribute.Int("phonescope.results.failed", failed),
	)
	return report, nil
}

func (a *Aggregator) fanOut(ctx context.Context, logger *slog.Logger, number phone.Number, entries []provider.Entry) []domain.LookupResult {
	results := make([]domain.LookupResult, len(entries))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	for i, entry := range entries {
		if ctx.Err() != nil {
			results[i] = domain.Failed("", domain.ReasonCancelled)
			continue
		}
		g.Go(func() error {
			results[i] = a.call(ctx, logger, number, entry)
			return nil
		})
	}

	// Lookups never return errors; failures live in the result slots.
	_ = g.Wait()
	return results
}

func (a *Aggregator) call(ctx context.Context, logger *slog.Logger, number phone.Number, entry provider.Entry) domain.LookupResult {
	if ctx.Err() != nil {
		return domain.Failed("", domain.ReasonCancelled)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.Budget(entry))
	defer cancel()

	callCtx, span := a.tracer.Start(callCtx, "phonescope.lookup", trace.WithAttributes(
		attribute.String(telemetry.AttrProvider, entry.Name),
		attribute.String(telemetry.AttrCategory, entry.Category),
	))
	defer span.End()

	start := time.Now()
	done := make(chan domain.LookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.Failed("", fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- entry.Provider.Lookup(callCtx, number)
	}()

	var result domain.LookupResult
	select {
	case result = <-done:
		if result.Status == domain.StatusFailed && callCtx.Err() != nil {
			result = domain.Failed(result.URL, abandonReason(ctx))
		}
	case <-callCtx.Done():
		result = domain.Failed("", abandonReason(ctx))
	}
	elapsed := time.Since(start)

	telemetry.RecordLookupResult(span, result)
	telemetry.RecordLookupMetrics(ctx, telemetry.LookupMetrics{
		Provider: entry.Name,
		Category: entry.Category,
		Result:   result,
		Duration: elapsed,
	})
	a.metrics.ObserveLookup(entry.Name, entry.Category, string(result.Status), elapsed)

	attrs := []any{
		"provider", entry.Name,
		"category", entry.Category,
		"status", result.Status,
		"duration", elapsed,
	}
	if result.Status == domain.StatusFailed {
		logger.Warn("lookup failed", append(attrs, "reason", result.Reason)...)
	} else {
		logger.Debug("lookup completed", attrs...)
	}
	return result
}

// abandonReason distinguishes a call that ran out of its own budget from one
// whose run was cancelled.
func abandonReason(parent context.Context) string {
	if parent.Err() != nil {
		return domain.ReasonCancelled
	}
	return domain.ReasonTimeout
}

func assemble(ts time.Time, target string, entries []provider.Entry, results []domain.LookupResult) *domain.Report {
	report := &domain.Report{Timestamp: ts, Target: target}
	index := make(map[string]int)

	for i, entry := range entries {
		ci, ok := index[entry.Category]
		if !ok {
			ci = len(report.Categories)
			index[entry.Category] = ci
			report.Categories = append(report.Categories, domain.CategoryResults{Name: entry.Category})
		}
		report.Categories[ci].Results = append(report.Categories[ci].Results, domain.ProviderResult{
			Provider: entry.Name,
			Result:   results[i],
		})
	}
	return report
}

func tally(results []domain.LookupResult) (found, failed int) {
	for _, r := range results {
		switch r.Status {
		case domain.StatusFound:
			found++
		case domain.StatusFailed:
			failed++
		}
	}
	return found, failed
}
