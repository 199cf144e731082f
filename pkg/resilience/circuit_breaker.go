package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the position of a breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen rejects calls while the host is considered down
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls beyond the half-open probe allowance
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreakerConfig configures a breaker
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// MaxRequestsHalfOpen is how many probes may run at once
	MaxRequestsHalfOpen uint32
}

// DefaultCircuitBreakerConfig returns the defaults used for connector hosts
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

// CircuitBreaker trips after consecutive failures and probes the host again
// once Timeout has passed. Outcomes of calls admitted before a state change
// are ignored, so a slow call cannot reopen a circuit that already recovered.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         CircuitState
	generation    uint64
	failures      uint32
	probes        uint32
	openedAt      time.Time
	onStateChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, now: time.Now}
}

// Call runs fn when the circuit admits it. Only errors returned by fn count as failures.
func (cb *CircuitBreaker) Call(fn func() error) error {
	gen, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(gen, err == nil)
	return err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return 0, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.config.MaxRequestsHalfOpen {
			return 0, ErrTooManyRequests
		}
		cb.probes++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) record(gen uint64, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}

	switch {
	case ok && cb.state == StateHalfOpen:
		cb.transition(StateClosed)
	case ok:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
	default:
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			cb.transition(StateOpen)
		}
	}
}

// transition moves to state and starts a new generation. Caller holds cb.mu.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.generation++
	cb.failures = 0
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count in the closed state
func (cb *CircuitBreaker) Failures() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
}

// CircuitBreakerGroup lazily creates one breaker per key (connector host)
type CircuitBreakerGroup struct {
	mu            sync.Mutex
	breakers      map[string]*CircuitBreaker
	config        CircuitBreakerConfig
	onStateChange func(key string, from, to CircuitState)
}

// NewCircuitBreakerGroup creates a group whose breakers share config.
// onStateChange may be nil; it runs while the breaker's lock is held and must not call back into it.
func NewCircuitBreakerGroup(config CircuitBreakerConfig, onStateChange func(key string, from, to CircuitState)) *CircuitBreakerGroup {
	return &CircuitBreakerGroup{
		breakers:      make(map[string]*CircuitBreaker),
		config:        config,
		onStateChange: onStateChange,
	}
}

// Get returns the breaker for key, creating it on first use
func (g *CircuitBreakerGroup) Get(key string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(g.config)
		if g.onStateChange != nil {
			cb.onStateChange = func(from, to CircuitState) { g.onStateChange(key, from, to) }
		}
		g.breakers[key] = cb
	}
	return cb
}
