package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/polisai/phonescope/pkg/domain"
)

func TestLoadFromFile(t *testing.T) {
	configContent := `
user_agent: "phonescope-test/1.0"
http:
  timeout: 5s
  max_retries: 2
  rate_per_host: 1.5
aggregator:
  concurrency: 4
  provider_timeout: 3s
  browser_timeout: 45s
report:
  dir: "/tmp/reports"
  prefix: "MossadEye"
api_keys:
  numverify: "nv-key"
browser:
  exec_path: "/usr/bin/chromium"
logging:
  level: "DEBUG"
  format: "json"
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "phonescope-lab"
  environment: "staging"
  headers:
    authorization: "Bearer otlp"
  resource_tags:
    team: "osint"
  sample_ratio: 0.25
  metrics_textfile: "/var/lib/node_exporter/phonescope.prom"
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.UserAgent != "phonescope-test/1.0" {
		t.Errorf("Expected user agent override, got %q", cfg.UserAgent)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("Expected http timeout 5s, got %s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.MaxRetries != 2 {
		t.Errorf("Expected max_retries 2, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.HTTP.RatePerHost != 1.5 {
		t.Errorf("Expected rate_per_host 1.5, got %v", cfg.HTTP.RatePerHost)
	}
	if cfg.Aggregator.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", cfg.Aggregator.Concurrency)
	}
	if cfg.Aggregator.BrowserTimeout != 45*time.Second {
		t.Errorf("Expected browser_timeout 45s, got %s", cfg.Aggregator.BrowserTimeout)
	}
	if cfg.Report.Prefix != "MossadEye" {
		t.Errorf("Expected report prefix MossadEye, got %q", cfg.Report.Prefix)
	}
	if cfg.APIKeys.Numverify != "nv-key" {
		t.Errorf("Expected numverify key, got %q", cfg.APIKeys.Numverify)
	}
	if cfg.Browser.ExecPath != "/usr/bin/chromium" {
		t.Errorf("Expected exec_path, got %q", cfg.Browser.ExecPath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level normalized to debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected log format json, got %q", cfg.Logging.Format)
	}
	if !cfg.Telemetry.Insecure || cfg.Telemetry.OTLPEndpoint != "localhost:4317" {
		t.Errorf("Unexpected telemetry config %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.ServiceName != "phonescope-lab" || cfg.Telemetry.Environment != "staging" {
		t.Errorf("Unexpected telemetry identity %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.Headers["authorization"] != "Bearer otlp" {
		t.Errorf("Expected otlp headers, got %v", cfg.Telemetry.Headers)
	}
	if cfg.Telemetry.ResourceTags["team"] != "osint" {
		t.Errorf("Expected resource tags, got %v", cfg.Telemetry.ResourceTags)
	}
	if cfg.Telemetry.SampleRatio != 0.25 {
		t.Errorf("Expected sample_ratio 0.25, got %v", cfg.Telemetry.SampleRatio)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Aggregator.Concurrency != DefaultConcurrency {
		t.Errorf("Expected default concurrency %d, got %d", DefaultConcurrency, cfg.Aggregator.Concurrency)
	}
	if cfg.Aggregator.ProviderTimeout != DefaultProviderTimeout {
		t.Errorf("Expected default provider timeout, got %s", cfg.Aggregator.ProviderTimeout)
	}
	if cfg.Report.Dir != DefaultReportDir || cfg.Report.Prefix != DefaultReportPrefix {
		t.Errorf("Unexpected report defaults %+v", cfg.Report)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("Expected default user agent, got %q", cfg.UserAgent)
	}
	if cfg.Telemetry.SampleRatio != DefaultSampleRatio {
		t.Errorf("Expected default sample ratio, got %v", cfg.Telemetry.SampleRatio)
	}
}

func TestRequestTimeoutCoversProviderBudget(t *testing.T) {
	cfg := Default()
	if got := cfg.RequestTimeout(); got != DefaultHTTPTimeout {
		t.Errorf("Expected default request timeout %s, got %s", DefaultHTTPTimeout, got)
	}

	cfg.Aggregator.ProviderTimeout = 30 * time.Second
	if got := cfg.RequestTimeout(); got != 30*time.Second {
		t.Errorf("Expected request timeout raised to provider budget, got %s", got)
	}

	cfg.HTTP.Timeout = time.Minute
	if got := cfg.RequestTimeout(); got != time.Minute {
		t.Errorf("Expected longer http timeout kept, got %s", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		expectedErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "concurrency too high",
			mutate:      func(c *Config) { c.Aggregator.Concurrency = 64 },
			wantErr:     true,
			expectedErr: "concurrency must be between 1 and 32",
		},
		{
			name:        "zero concurrency",
			mutate:      func(c *Config) { c.Aggregator.Concurrency = 0 },
			wantErr:     true,
			expectedErr: "concurrency",
		},
		{
			name:        "negative provider timeout",
			mutate:      func(c *Config) { c.Aggregator.ProviderTimeout = -time.Second },
			wantErr:     true,
			expectedErr: "provider_timeout",
		},
		{
			name:        "too many retries",
			mutate:      func(c *Config) { c.HTTP.MaxRetries = 9 },
			wantErr:     true,
			expectedErr: "max_retries",
		},
		{
			name:        "prefix with separator",
			mutate:      func(c *Config) { c.Report.Prefix = "../evil" },
			wantErr:     true,
			expectedErr: "path separators",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			wantErr:     true,
			expectedErr: "invalid log level",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			wantErr:     true,
			expectedErr: "invalid log format",
		},
		{
			name:        "sample ratio above one",
			mutate:      func(c *Config) { c.Telemetry.SampleRatio = 1.5 },
			wantErr:     true,
			expectedErr: "sample_ratio",
		},
		{
			name:        "empty header name",
			mutate:      func(c *Config) { c.Telemetry.Headers = map[string]string{" ": "x"} },
			wantErr:     true,
			expectedErr: "headers",
		},
		{
			name:    "empty report dir falls back to default",
			mutate:  func(c *Config) { c.Report.Dir = " " },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected validation error but got none")
				}
				if !errors.Is(err, domain.ErrConfigInvalid) {
					t.Errorf("Expected error to wrap ErrConfigInvalid, got %v", err)
				}
				if tt.expectedErr != "" && !strings.Contains(err.Error(), tt.expectedErr) {
					t.Errorf("Expected error containing %q, got %q", tt.expectedErr, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no validation error but got: %v", err)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("NUMVERIFY_API_KEY", "env-nv")
	t.Setenv("TRUECALLER_API_KEY", "env-tc")
	t.Setenv("PHONESCOPE_REPORT_DIR", "/env/reports")
	t.Setenv("PHONESCOPE_CONCURRENCY", "12")
	t.Setenv("PHONESCOPE_LOG_LEVEL", "warn")
	t.Setenv("PHONESCOPE_OTLP_INSECURE", "true")
	t.Setenv("PHONESCOPE_CHROME_PATH", "/opt/chrome")
	t.Setenv("PHONESCOPE_ENVIRONMENT", "prod")
	t.Setenv("PHONESCOPE_OTLP_HEADERS", "authorization=Bearer abc, x-tenant=osint")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.APIKeys.Numverify != "env-nv" || cfg.APIKeys.Truecaller != "env-tc" {
		t.Errorf("Expected API keys from environment, got %+v", cfg.APIKeys)
	}
	if cfg.Report.Dir != "/env/reports" {
		t.Errorf("Expected report dir from environment, got %q", cfg.Report.Dir)
	}
	if cfg.Aggregator.Concurrency != 12 {
		t.Errorf("Expected concurrency 12, got %d", cfg.Aggregator.Concurrency)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %q", cfg.Logging.Level)
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Expected insecure telemetry from environment")
	}
	if cfg.Browser.ExecPath != "/opt/chrome" {
		t.Errorf("Expected chrome path from environment, got %q", cfg.Browser.ExecPath)
	}
	if cfg.Telemetry.Environment != "prod" {
		t.Errorf("Expected environment prod, got %q", cfg.Telemetry.Environment)
	}
	if cfg.Telemetry.Headers["authorization"] != "Bearer abc" || cfg.Telemetry.Headers["x-tenant"] != "osint" {
		t.Errorf("Expected otlp headers from environment, got %v", cfg.Telemetry.Headers)
	}
}

func TestEnvironmentOverrideRejectsBadInteger(t *testing.T) {
	t.Setenv("PHONESCOPE_CONCURRENCY", "many")

	_, err := Load("")
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("Expected ErrConfigInvalid, got %v", err)
	}
}

func TestEnvironmentOverrideRejectsBadHeaders(t *testing.T) {
	t.Setenv("PHONESCOPE_OTLP_HEADERS", "no-equals-sign")

	_, err := Load("")
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("Expected ErrConfigInvalid, got %v", err)
	}
}
