package governance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryConfig defines retry behavior for outbound lookups.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int
	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier float64
	// Jitter adds up to 25% randomness to each backoff.
	Jitter bool
	// RetryableStatusCodes defines which HTTP status codes trigger a retry.
	RetryableStatusCodes map[int]bool
}

// DefaultRetryConfig returns the retry behavior used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        1,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableStatusCodes: map[int]bool{
			http.StatusRequestTimeout:     true, // 408
			http.StatusTooManyRequests:    true, // 429
			http.StatusBadGateway:         true, // 502
			http.StatusServiceUnavailable: true, // 503
			http.StatusGatewayTimeout:     true, // 504
		},
	}
}

// RetryPolicy decides whether and when an attempt is repeated.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, filling unset fields with defaults.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	defaults := DefaultRetryConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if config.RetryableStatusCodes == nil {
		config.RetryableStatusCodes = defaults.RetryableStatusCodes
	}

	return &RetryPolicy{config: config}
}

// Config returns a copy of the current retry configuration.
func (rp *RetryPolicy) Config() RetryConfig {
	return rp.config
}

// ShouldRetry reports whether attempt (zero based) should be followed by another one.
func (rp *RetryPolicy) ShouldRetry(statusCode int, err error, attempt int) bool {
	if attempt >= rp.config.MaxRetries {
		return false
	}
	if err != nil {
		return IsRetryableError(err)
	}
	return rp.config.RetryableStatusCodes[statusCode]
}

// CalculateBackoff returns the delay before the next retry attempt.
func (rp *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := time.Duration(float64(rp.config.InitialBackoff) * math.Pow(rp.config.BackoffMultiplier, float64(attempt)))
	if backoff > rp.config.MaxBackoff {
		backoff = rp.config.MaxBackoff
	}

	if rp.config.Jitter && backoff >= 4 {
		// #nosec G404 - Non-cryptographic random is acceptable for jitter
		backoff += time.Duration(rand.Int63n(int64(backoff / 4)))
	}
	return backoff
}

// Do runs fn until it yields a non-retryable outcome or the retry budget is
// spent. The status code of the last attempt is returned together with the
// number of retries performed. A retryable status on the final attempt is not
// an error; only a final transport error is.
func (rp *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (int, error)) (int, int, error) {
	var (
		statusCode int
		lastErr    error
	)

	for attempt := 0; attempt <= rp.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, attempt, err
		}

		statusCode, lastErr = fn(ctx)
		if !rp.ShouldRetry(statusCode, lastErr, attempt) {
			if lastErr != nil && attempt > 0 {
				return statusCode, attempt, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
			}
			return statusCode, attempt, lastErr
		}

		select {
		case <-ctx.Done():
			return 0, attempt, ctx.Err()
		case <-time.After(rp.CalculateBackoff(attempt)):
		}
	}

	// Unreachable: ShouldRetry refuses once attempt reaches MaxRetries.
	return statusCode, rp.config.MaxRetries, lastErr
}

// IsRetryableError determines if a transport error is worth another attempt.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The caller's budget is gone; retrying cannot help.
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
		"EOF",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// TimeoutConfig defines the per-call budgets enforced on lookups.
type TimeoutConfig struct {
	// Lookup is the budget of an ordinary lookup.
	Lookup time.Duration
	// Browser is the budget of a lookup that drives a headless browser.
	Browser time.Duration
}

// DefaultTimeoutConfig returns the default per-call budgets.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Lookup:  10 * time.Second,
		Browser: 30 * time.Second,
	}
}

// TimeoutManager hands out per-call deadlines.
type TimeoutManager struct {
	config TimeoutConfig
}

// NewTimeoutManager creates a timeout manager with the given configuration.
func NewTimeoutManager(config TimeoutConfig) *TimeoutManager {
	defaults := DefaultTimeoutConfig()
	if config.Lookup <= 0 {
		config.Lookup = defaults.Lookup
	}
	if config.Browser <= 0 {
		config.Browser = defaults.Browser
	}
	return &TimeoutManager{config: config}
}

// Config returns a copy of the current timeout configuration.
func (tm *TimeoutManager) Config() TimeoutConfig {
	return tm.config
}

// Budget resolves the effective budget for an ordinary call. A positive
// override wins.
func (tm *TimeoutManager) Budget(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return tm.config.Lookup
}

// BrowserBudget resolves the effective budget for a browser-driven call.
func (tm *TimeoutManager) BrowserBudget(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return tm.config.Browser
}
