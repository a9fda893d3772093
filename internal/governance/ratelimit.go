package governance

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterConfig defines the per-host request budget.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate per host. Values <= 0 disable limiting.
	RequestsPerSecond float64
	// BurstSize is the number of requests allowed back to back.
	BurstSize int
}

// HostLimiter throttles outbound requests per destination host. Limiters are
// created lazily the first time a host is seen.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   RateLimiterConfig
}

// NewHostLimiter creates a limiter applying config to every host.
func NewHostLimiter(config RateLimiterConfig) *HostLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	if hl == nil || hl.config.RequestsPerSecond <= 0 {
		return nil
	}
	return hl.limiter(host).Wait(ctx)
}

func (hl *HostLimiter) limiter(host string) *rate.Limiter {
	key := strings.ToLower(host)

	hl.mu.Lock()
	defer hl.mu.Unlock()

	l, ok := hl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(hl.config.RequestsPerSecond), hl.config.BurstSize)
		hl.limiters[key] = l
	}
	return l
}
