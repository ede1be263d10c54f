package merchantware

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the breaker position
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
	// ErrCircuitOpen is returned without touching the network while the breaker is open
	ErrCircuitOpen = errors.New("merchantware circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe slot is taken
	ErrTooManyRequests = errors.New("merchantware circuit breaker is probing")
)

// CircuitBreakerConfig configures when the gateway is considered down
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive transport failures before opening
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration
	// MaxProbes is the number of concurrent calls allowed while half-open
	MaxProbes uint32
}

// DefaultCircuitBreakerConfig returns the production breaker settings
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
		MaxProbes:   1,
	}
}

// CircuitBreaker stops calling Merchantware after repeated transport failures.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         CircuitState
	failures      uint32
	probes        uint32
	changedAt     time.Time
	config        CircuitBreakerConfig
	onStateChange func(from, to CircuitState)
	now           func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:     StateClosed,
		changedAt: time.Now(),
		config:    config,
		now:       time.Now,
	}
}

// OnStateChange registers a hook invoked under the breaker lock on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Call runs fn unless the breaker is open. Only errors for which tripped
// returns true count as failures; others count as a healthy round trip.
func (cb *CircuitBreaker) Call(fn func() error, tripped func(error) bool) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err != nil && (tripped == nil || tripped(err)))
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.changedAt) < cb.config.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes++
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.config.MaxProbes {
			return ErrTooManyRequests
		}
		cb.probes++
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.changedAt = cb.now()
	cb.probes = 0
	if to != StateOpen {
		cb.failures = 0
	}
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns the current position
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
}
