package telemetry

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// DefaultServiceName is reported as service.name when Config leaves it empty.
const DefaultServiceName = "phonescope"

const exporterDialTimeout = 10 * time.Second

// Config describes the telemetry bootstrap options.
type Config struct {
	ServiceName  string
	Endpoint     string
	Environment  string
	Insecure     bool
	Headers      map[string]string
	ResourceTags map[string]string
	// SampleRatio is the fraction of analyses traced. 1 traces every run, 0
	// none.
	SampleRatio float64
}

// SetupProvider installs the process-wide tracer provider and returns the
// function that flushes it. Without an endpoint tracing stays a no-op.
func SetupProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	exporter, err := otlptrace.New(dialCtx, otlptracegrpc.NewClient(cfg.exporterOptions()...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter %s: %w", cfg.Endpoint, err)
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(cfg.resourceAttributes()...),
	)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithMaxExportBatchSize(64), sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

func (c Config) exporterOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(c.Endpoint),
		otlptracegrpc.WithDialOption(
			grpc.WithReturnConnectionError(), //nolint:staticcheck // surfaces dial errors instead of hanging
		),
	}
	if c.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(c.Headers))
	}
	return opts
}

// resourceAttributes lists service identity first, then tags sorted by key.
// Tags cannot override the service name or environment.
func (c Config) resourceAttributes() []attribute.KeyValue {
	name := c.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if c.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(c.Environment))
	}

	keys := make([]string, 0, len(c.ResourceTags))
	for k := range c.ResourceTags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == string(semconv.ServiceNameKey) || k == string(semconv.DeploymentEnvironmentKey) {
			continue
		}
		attrs = append(attrs, attribute.String(k, c.ResourceTags[k]))
	}
	return attrs
}

func (c Config) sampler() sdktrace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return sdktrace.AlwaysSample()
	case c.SampleRatio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
	}
}

// Redaction strategies.
const (
	StrategyDrop    = "drop"
	StrategyMask    = "mask"
	StrategyHash    = "hash"
	StrategyReplace = "replace"
)

// Redaction names an attribute and how to scrub it.
type Redaction struct {
	Attribute string
	Strategy  string
}

// DefaultRedactions masks phone numbers and drops credentials.
var DefaultRedactions = []Redaction{
	{Attribute: AttrTarget, Strategy: StrategyMask},
	{Attribute: AttrNumber, Strategy: StrategyMask},
	{Attribute: "url.full", Strategy: StrategyHash},
	{Attribute: "http.request.header.authorization", Strategy: StrategyDrop},
}

// RedactAttributes applies redactions to attrs before export. A nil slice
// selects DefaultRedactions. Unknown strategies drop the attribute.
func RedactAttributes(redactions []Redaction, attrs []attribute.KeyValue) []attribute.KeyValue {
	if len(attrs) == 0 {
		return attrs
	}
	if redactions == nil {
		redactions = DefaultRedactions
	}

	strategies := make(map[string]string, len(redactions))
	for _, r := range redactions {
		strategy := strings.ToLower(r.Strategy)
		if strategy == "" {
			strategy = StrategyDrop
		}
		strategies[r.Attribute] = strategy
	}

	redacted := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		key := string(kv.Key)
		strategy, ok := strategies[key]
		if !ok {
			redacted = append(redacted, kv)
			continue
		}

		switch strategy {
		case StrategyMask:
			redacted = append(redacted, attribute.String(key, maskValue(kv.Value.Emit())))
		case StrategyHash:
			redacted = append(redacted, attribute.String(key, hashValue(kv.Value.Emit())))
		case StrategyReplace:
			redacted = append(redacted, attribute.String(key, "[REDACTED]"))
		}
	}

	return redacted
}

// maskValue keeps the leading country code digits and the last two digits,
// e.g. "+393401234567" becomes "+39********67".
func maskValue(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:3] + strings.Repeat("*", len(s)-5) + s[len(s)-2:]
}

// hashValue produces a deterministic token for correlation across spans.
func hashValue(s string) string {
	if s == "" {
		return "[REDACTED:empty]"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("[REDACTED:hash:%08x]", h.Sum32())
}
