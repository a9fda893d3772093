// Package config provides configuration structures and loading logic for
// phonescope.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polisai/phonescope/pkg/domain"
)

// Defaults.
const (
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultMaxRetries      = 1
	DefaultRatePerHost     = 5.0
	DefaultConcurrency     = 6
	MaxConcurrency         = 32
	DefaultProviderTimeout = 10 * time.Second
	DefaultBrowserTimeout  = 30 * time.Second
	DefaultReportDir       = "reports"
	DefaultReportPrefix    = "phonescope"
	DefaultSampleRatio     = 1.0
)

// Config holds the global configuration. It is built once by Load and treated
// as read-only afterwards.
type Config struct {
	UserAgent string `yaml:"user_agent"`

	HTTP       HTTPConfig       `yaml:"http"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Report     ReportConfig     `yaml:"report"`
	APIKeys    APIKeysConfig    `yaml:"api_keys"`
	Browser    BrowserConfig    `yaml:"browser"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// HTTPConfig holds settings for outbound requests.
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RatePerHost float64       `yaml:"rate_per_host"`
}

// AggregatorConfig holds fan-out settings.
type AggregatorConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	BrowserTimeout  time.Duration `yaml:"browser_timeout"`
}

// ReportConfig controls report file placement.
type ReportConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// APIKeysConfig holds credentials for keyed providers. Empty keys select the
// degraded behaviour of each provider.
type APIKeysConfig struct {
	Numverify  string `yaml:"numverify"`
	Truecaller string `yaml:"truecaller"`
}

// BrowserConfig configures the headless browser used by deep scans.
type BrowserConfig struct {
	ExecPath string `yaml:"exec_path"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig holds configuration for OpenTelemetry and Prometheus export.
type TelemetryConfig struct {
	OTLPEndpoint    string            `yaml:"otlp_endpoint"`
	Insecure        bool              `yaml:"insecure"`
	ServiceName     string            `yaml:"service_name"`
	Environment     string            `yaml:"environment"`
	Headers         map[string]string `yaml:"headers"`
	ResourceTags    map[string]string `yaml:"resource_tags"`
	SampleRatio     float64           `yaml:"sample_ratio"`
	MetricsTextfile string            `yaml:"metrics_textfile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		UserAgent: DefaultUserAgent,
		HTTP: HTTPConfig{
			Timeout:     DefaultHTTPTimeout,
			MaxRetries:  DefaultMaxRetries,
			RatePerHost: DefaultRatePerHost,
		},
		Aggregator: AggregatorConfig{
			Concurrency:     DefaultConcurrency,
			ProviderTimeout: DefaultProviderTimeout,
			BrowserTimeout:  DefaultBrowserTimeout,
		},
		Report: ReportConfig{
			Dir:    DefaultReportDir,
			Prefix: DefaultReportPrefix,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			SampleRatio: DefaultSampleRatio,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is chosen by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("NUMVERIFY_API_KEY"); val != "" {
		cfg.APIKeys.Numverify = val
	}
	if val := os.Getenv("TRUECALLER_API_KEY"); val != "" {
		cfg.APIKeys.Truecaller = val
	}

	if val := os.Getenv("PHONESCOPE_USER_AGENT"); val != "" {
		cfg.UserAgent = val
	}
	if val := os.Getenv("PHONESCOPE_REPORT_DIR"); val != "" {
		cfg.Report.Dir = val
	}
	if val := os.Getenv("PHONESCOPE_CONCURRENCY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: PHONESCOPE_CONCURRENCY %q is not an integer", domain.ErrConfigInvalid, val)
		}
		cfg.Aggregator.Concurrency = n
	}
	if val := os.Getenv("PHONESCOPE_CHROME_PATH"); val != "" {
		cfg.Browser.ExecPath = val
	}

	if val := os.Getenv("PHONESCOPE_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	if val := os.Getenv("PHONESCOPE_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("PHONESCOPE_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("PHONESCOPE_OTLP_HEADERS"); val != "" {
		headers, err := parseHeaders(val)
		if err != nil {
			return fmt.Errorf("%w: PHONESCOPE_OTLP_HEADERS: %w", domain.ErrConfigInvalid, err)
		}
		cfg.Telemetry.Headers = headers
	}
	if val := os.Getenv("PHONESCOPE_ENVIRONMENT"); val != "" {
		cfg.Telemetry.Environment = val
	}
	if val := os.Getenv("PHONESCOPE_METRICS_TEXTFILE"); val != "" {
		cfg.Telemetry.MetricsTextfile = val
	}
	return nil
}

// parseHeaders reads "k1=v1,k2=v2".
func parseHeaders(val string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("header %q is not key=value", pair)
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers, nil
}

// Validate checks the entire configuration. Errors wrap domain.ErrConfigInvalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("%w: http configuration: %w", domain.ErrConfigInvalid, err)
	}
	if err := c.Aggregator.Validate(); err != nil {
		return fmt.Errorf("%w: aggregator configuration: %w", domain.ErrConfigInvalid, err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("%w: report configuration: %w", domain.ErrConfigInvalid, err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging configuration: %w", domain.ErrConfigInvalid, err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("%w: telemetry configuration: %w", domain.ErrConfigInvalid, err)
	}

	return nil
}

// RequestTimeout is the timeout given to the HTTP client. It never undercuts
// the per-lookup budget, which is enforced by the aggregator's deadline.
func (c *Config) RequestTimeout() time.Duration {
	return max(c.HTTP.Timeout, c.Aggregator.ProviderTimeout)
}

// Validate performs validation of HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 5 {
		return fmt.Errorf("max_retries must be between 0 and 5, got %d", c.MaxRetries)
	}
	if c.RatePerHost < 0 {
		return fmt.Errorf("rate_per_host must not be negative, got %v", c.RatePerHost)
	}
	return nil
}

// Validate performs validation of aggregator configuration.
func (c *AggregatorConfig) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", MaxConcurrency, c.Concurrency)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider_timeout must be positive, got %s", c.ProviderTimeout)
	}
	if c.BrowserTimeout <= 0 {
		return fmt.Errorf("browser_timeout must be positive, got %s", c.BrowserTimeout)
	}
	return nil
}

// Validate performs validation of report configuration.
func (c *ReportConfig) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		c.Dir = DefaultReportDir
	}
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = DefaultReportPrefix
	}
	if strings.ContainsAny(c.Prefix, `/\`) {
		return fmt.Errorf("prefix %q must not contain path separators", c.Prefix)
	}
	return nil
}

// Validate performs validation of telemetry configuration.
func (c *TelemetryConfig) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1, got %v", c.SampleRatio)
	}
	for k := range c.Headers {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("headers must not contain an empty name")
		}
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}
	if strings.TrimSpace(c.Format) == "" {
		c.Format = "text"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}

	format := strings.TrimSpace(strings.ToLower(c.Format))
	switch format {
	case "text", "json":
		c.Format = format
	default:
		return fmt.Errorf("invalid log format %q, supported formats: text, json", c.Format)
	}
	return nil
}
