package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/polisai/phonescope/internal/governance"
	"github.com/polisai/phonescope/pkg/aggregator"
	"github.com/polisai/phonescope/pkg/config"
	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/httpclient"
	"github.com/polisai/phonescope/pkg/logging"
	"github.com/polisai/phonescope/pkg/provider"
	"github.com/polisai/phonescope/pkg/report"
	"github.com/polisai/phonescope/pkg/telemetry"
	"github.com/polisai/phonescope/pkg/watch"
)

const banner = `
 ┌─┐┬ ┬┌─┐┌┐┌┌─┐┌─┐┌─┐┌─┐┌─┐┌─┐
 ├─┘├─┤│ ││││├┤ └─┐│  │ │├─┘├┤
 ┴  ┴ ┴└─┘┘└┘└─┘└─┘└─┘└─┘┴  └─┘
`

var (
	progress = color.New(color.FgCyan).SprintFunc()
	success  = color.New(color.FgGreen).SprintFunc()
)

// newFetcher builds the outbound client shared by HTTP providers. Tests swap
// it for an in-memory fetcher.
var newFetcher = func(cfg httpclient.Config, logger *slog.Logger) provider.Fetcher {
	return httpclient.New(cfg, logger)
}

// breakerReporter is implemented by fetchers that track per-host breakers.
type breakerReporter interface {
	BreakerStates() map[string]governance.CircuitBreakerState
}

// app bundles everything a command needs. It is built once per invocation.
type app struct {
	cfg        *config.Config
	cli        *CLIConfig
	logger     *slog.Logger
	registry   *provider.Registry
	aggregator *aggregator.Aggregator
	writer     *report.Writer
	metrics    *telemetry.RunMetrics
	fetcher    provider.Fetcher
	shutdown   func(context.Context) error
	out        io.Writer
}

// buildConfig loads the configuration file and applies command line overrides.
func buildConfig(cli *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Silent {
		cfg.Logging.Level = "error"
	}
	if cli.Concurrency != 0 {
		cfg.Aggregator.Concurrency = cli.Concurrency
	}
	if cli.Timeout != 0 {
		cfg.Aggregator.ProviderTimeout = cli.Timeout
	}
	if cli.ReportDir != "" {
		cfg.Report.Dir = cli.ReportDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cli *CLIConfig, out, errOut io.Writer) (*app, error) {
	cfg, err := buildConfig(cli)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: errOut,
	})

	shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Endpoint:     cfg.Telemetry.OTLPEndpoint,
		Environment:  cfg.Telemetry.Environment,
		Insecure:     cfg.Telemetry.Insecure,
		Headers:      cfg.Telemetry.Headers,
		ResourceTags: cfg.Telemetry.ResourceTags,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		// Tracing is optional; a dead collector must not stop a run.
		logger.Warn("telemetry disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	fetcher := newFetcher(httpclient.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout(),
		Retry: governance.RetryConfig{
			MaxRetries: cfg.HTTP.MaxRetries,
			Jitter:     true,
		},
		RateLimit: governance.RateLimiterConfig{
			RequestsPerSecond: cfg.HTTP.RatePerHost,
			BurstSize:         1,
		},
		CircuitBreaker: governance.DefaultCircuitBreakerConfig(),
	}, logger)

	registry, err := provider.NewDefaultRegistry(provider.Options{
		Fetcher:       fetcher,
		NumverifyKey:  cfg.APIKeys.Numverify,
		TruecallerKey: cfg.APIKeys.Truecaller,
		DeepScan:      cli.DeepScan,
		Browser: provider.ChromeFactory{
			ExecPath:  cfg.Browser.ExecPath,
			UserAgent: cfg.UserAgent,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	metrics := telemetry.NewRunMetrics()

	return &app{
		cfg:      cfg,
		cli:      cli,
		logger:   logger,
		registry: registry,
		aggregator: aggregator.New(registry, aggregator.Config{
			Concurrency:    cfg.Aggregator.Concurrency,
			Timeout:        cfg.Aggregator.ProviderTimeout,
			BrowserTimeout: cfg.Aggregator.BrowserTimeout,
		}, aggregator.WithLogger(logger), aggregator.WithRunMetrics(metrics)),
		writer: report.NewWriter(report.Config{
			Dir:    cfg.Report.Dir,
			Prefix: cfg.Report.Prefix,
			Output: cli.Output,
		}, logger),
		metrics:  metrics,
		fetcher:  fetcher,
		shutdown: shutdown,
		out:      out,
	}, nil
}

// close reports tripped breakers and flushes telemetry.
func (a *app) close() {
	if br, ok := a.fetcher.(breakerReporter); ok {
		for host, state := range br.BreakerStates() {
			if state != governance.StateClosed {
				a.logger.Warn("circuit breaker not closed", "host", host, "state", state)
			}
		}
	}
	if err := a.metrics.WriteTextfile(a.cfg.Telemetry.MetricsTextfile); err != nil {
		a.logger.Warn("metrics export failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func (a *app) say(format string, args ...any) {
	if a.cli.Silent {
		return
	}
	fmt.Fprintf(a.out, format, args...)
}

// analyze runs one target end to end: aggregate, write, summarize.
func (a *app) analyze(ctx context.Context, target string) (string, error) {
	a.say("%s Analyzing target: %s\n", progress("[*]"), target)

	rep, err := a.aggregator.Analyze(ctx, target)
	if err != nil {
		return "", fmt.Errorf("analyze: %w", err)
	}

	path, err := a.writer.Write(rep, target)
	a.metrics.RecordReport(err)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if !a.cli.Silent {
		summary := report.Summarize(rep)
		summary.ReportPath = path
		summary.Print(a.out)
	}
	return path, nil
}

// runBatch analyzes every target in path. Invalid targets are skipped; a report
// that cannot be written aborts the batch. An interrupted batch keeps the
// reports already written and is not an error.
func (a *app) runBatch(ctx context.Context, path string) error {
	targets, err := watch.LoadTargets(path)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	a.logger.Info("batch started", "path", path, "targets", len(targets))

	written := 0
	for i, target := range targets {
		if ctx.Err() != nil {
			a.logger.Warn("batch interrupted", "path", path, "written", written, "remaining", len(targets)-i)
			a.say("%s batch interrupted, %d/%d reports written\n", success("[+]"), written, len(targets))
			return nil
		}
		if _, err := a.analyze(ctx, target); err != nil {
			if domain.IsInputError(err) {
				a.logger.Warn("skipping invalid target", "error", err)
				continue
			}
			return err
		}
		written++
	}

	a.logger.Info("batch finished", "path", path, "written", written, "skipped", len(targets)-written)
	a.say("%s %d/%d reports written\n", success("[+]"), written, len(targets))
	return nil
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cli, err := parseCLIConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cli, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		a.say("%s\n", progress(banner))
		_, err := a.analyze(ctx, args[0])
		return err
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		a.say("%s\n", progress(banner))
		if err := a.runBatch(ctx, args[0]); err != nil {
			return err
		}
		if !a.cli.Watch {
			return nil
		}

		w, err := watch.New(args[0], a.runBatch, a.logger)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watch: %w", err)
		}
		return nil
	})
}

func runProviders(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(_ context.Context, a *app) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-14s %-16s %s\n", "PROVIDER", "CATEGORY", "TIMEOUT")
		for _, e := range a.registry.All() {
			fmt.Fprintf(out, "%-14s %-16s %s\n", e.Name, e.Category, a.aggregator.Budget(e))
		}
		return nil
	})
}
