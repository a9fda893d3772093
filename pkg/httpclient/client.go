// Package httpclient provides the outbound HTTP client shared by every
// HTTP-backed lookup provider. It applies the configured User-Agent, per-host
// throttling, a per-host circuit breaker and retries, and is instrumented with
// OpenTelemetry.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/phonescope/internal/governance"
)

const (
	// DefaultUserAgent mimics a desktop browser; several sources serve
	// different markup to unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps how much of a response body is retained.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Config describes the client. It is copied at construction and never mutated.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxBodyBytes   int64
	Retry          governance.RetryConfig
	RateLimit      governance.RateLimiterConfig
	CircuitBreaker governance.CircuitBreakerConfig
	// Transport overrides the underlying round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Retries    int
}

// Client performs GET requests on behalf of providers.
type Client struct {
	http         *http.Client
	userAgent    string
	maxBodyBytes int64
	retry        *governance.RetryPolicy
	limiter      *governance.HostLimiter
	breakers     *governance.CircuitBreakerManager
	logger       *slog.Logger
}

// New builds a Client from cfg.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		retry:        governance.NewRetryPolicy(cfg.Retry),
		limiter:      governance.NewHostLimiter(cfg.RateLimit),
		breakers:     governance.NewCircuitBreakerManager(cfg.CircuitBreaker),
		logger:       logger,
	}
}

// UserAgent returns the User-Agent sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// BreakerStates exposes per-host circuit breaker states.
func (c *Client) BreakerStates() map[string]governance.CircuitBreakerState {
	return c.breakers.States()
}

// Get fetches rawURL. Non-2xx statuses are returned as responses, not errors;
// err is non-nil only when no response could be obtained.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = RedactURL(uerr.URL)
		}
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse url %q: missing host", RedactURL(rawURL))
	}

	breaker := c.breakers.Get(u.Host)
	if err := breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%s: %w", u.Host, err)
	}

	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		breaker.Record(false)
		return nil, fmt.Errorf("rate limit %s: %w", u.Host, err)
	}

	var resp *Response
	status, retries, err := c.retry.Do(ctx, func(ctx context.Context) (int, error) {
		r, err := c.do(ctx, u.String(), header)
		if err != nil {
			return 0, err
		}
		resp = r
		return r.StatusCode, nil
	})

	failed := status >= http.StatusInternalServerError
	if err != nil && !errors.Is(err, context.Canceled) {
		failed = true
	}
	breaker.Record(failed)
	if err != nil {
		c.logger.Debug("http request failed", "host", u.Host, "retries", retries, "error", err)
		return nil, err
	}

	resp.Retries = retries
	c.logger.Debug("http request completed", "host", u.Host, "status", resp.StatusCode, "retries", retries)
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = RedactURL(uerr.URL)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// sensitiveParams are query parameters whose values never appear in errors.
var sensitiveParams = []string{"access_key", "api_key", "apikey", "key", "token"}

// RedactURL replaces the values of credential-bearing query parameters with
// "REDACTED". Unparsable input is returned with its query removed.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	if u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for name := range q {
		for _, p := range sensitiveParams {
			if strings.EqualFold(name, p) {
				q.Set(name, "REDACTED")
				changed = true
			}
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
