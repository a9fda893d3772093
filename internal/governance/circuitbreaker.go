package governance

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is in the open state.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	StateClosed CircuitBreakerState = "closed"
	// StateOpen indicates the circuit is open and requests are rejected.
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen indicates a single probe request is allowed through.
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig defines thresholds for circuit breaking.
type CircuitBreakerConfig struct {
	// MaxFailures is the consecutive failure count that opens the circuit.
	// Zero disables the breaker.
	MaxFailures int
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns sensible defaults for batch runs.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}
}

// CircuitBreaker tracks consecutive failures of one destination.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               CircuitBreakerState
	config              CircuitBreakerConfig
	consecutiveFailures int
	openUntil           time.Time
	probing             bool
	now                 func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the provided configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures < 0 {
		config.MaxFailures = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCircuitBreakerConfig().Timeout
	}
	return &CircuitBreaker{state: StateClosed, config: config, now: time.Now}
}

// Allow returns ErrCircuitOpen when the destination should not be contacted.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.openUntil) {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an allowed call back into the breaker.
func (cb *CircuitBreaker) Record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if !failed {
		cb.consecutiveFailures = 0
		cb.state = StateClosed
		return
	}

	cb.consecutiveFailures++
	if cb.state == StateHalfOpen || (cb.config.MaxFailures > 0 && cb.consecutiveFailures >= cb.config.MaxFailures) {
		cb.state = StateOpen
		cb.openUntil = cb.now().Add(cb.config.Timeout)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerManager keeps one breaker per host.
type CircuitBreakerManager struct {
	mu       sync.Mutex
	config   CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerManager creates a manager handing out breakers built from config.
func NewCircuitBreakerManager(config CircuitBreakerConfig) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for host, creating it on first use.
func (m *CircuitBreakerManager) Get(host string) *CircuitBreaker {
	key := strings.ToLower(host)

	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(m.config)
		m.breakers[key] = cb
	}
	return cb
}

// States returns a snapshot of every breaker's state keyed by host.
func (m *CircuitBreakerManager) States() map[string]CircuitBreakerState {
	m.mu.Lock()
	breakers := make(map[string]*CircuitBreaker, len(m.breakers))
	for host, cb := range m.breakers {
		breakers[host] = cb
	}
	m.mu.Unlock()

	out := make(map[string]CircuitBreakerState, len(breakers))
	for host, cb := range breakers {
		out[host] = cb.State()
	}
	return out
}
