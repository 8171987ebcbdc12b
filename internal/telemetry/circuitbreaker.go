package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// CBState represents the circuit breaker state.
type CBState int

const (
	CBClosed   CBState = 0 // Normal operation — requests pass through
	CBOpen     CBState = 1 // Circuit tripped — requests rejected immediately
	CBHalfOpen CBState = 2 // Testing — calls pass through as probes
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects the optional Redis telemetry mirror: after
// maxFailures consecutive publish failures it opens and rejects calls for
// resetTimeout, then moves to half-open, where the next result closes it
// on success or reopens it on failure. Half-open does not limit callers to
// a single probe: calls made concurrently while half-open all run fn.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CBState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	OnStateChange func(from, to CBState)
}

// NewCircuitBreaker creates a circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CBClosed,
	}
}

// Execute runs fn through the circuit breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case CBOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(CBHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	case CBHalfOpen:
		// let the call through as a probe; the mutex is released before fn
		// runs, so concurrent half-open calls are not serialized
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == CBHalfOpen {
			cb.transition(CBOpen)
		} else if cb.failures >= cb.maxFailures {
			cb.transition(CBOpen)
		}
		return err
	}

	if cb.state == CBHalfOpen {
		cb.transition(CBClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to CBState) {
	from := cb.state
	cb.state = to
	if to == CBClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = fmt.Errorf("telemetry circuit breaker is open")
