package clients

import (
	"sync"
	"time"

	"github.com/jsamuelsen/go-ambient/internal/platform/config"
)

// State is the position of a CircuitBreaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota

	// StateOpen rejects calls until the cool-down has passed.
	StateOpen

	// StateHalfOpen admits a limited number of trial calls.
	StateHalfOpen
)

// String returns a human-readable name for the state.
func (s State) String() string {
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

// CircuitBreaker stops calls to a downstream that keeps failing, so jobs
// fail fast instead of spending their deadline on retries.
//
// State transitions:
//   - Closed to Open after MaxFailures consecutive failures
//   - Open to HalfOpen once Timeout has passed since the last failure
//   - HalfOpen to Closed after HalfOpenLimit consecutive successes
//   - HalfOpen to Open on any failure
//
// The change callback runs on the goroutine whose call caused the change,
// after the lock is released, so its log line carries that call's ambient ids.
type CircuitBreaker struct {
	mu          sync.Mutex
	cfg         config.CircuitBreakerConfig
	state       State
	failures    int
	successes   int
	trials      int // calls admitted while half-open and not yet recorded
	lastFailure time.Time

	onChange func(from, to State)
	now      func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}

	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange sets the callback invoked on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onChange = fn
}

// Allow reports whether a call may be sent. An admitted call must be
// followed by exactly one of RecordSuccess, RecordFailure or Release.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var allowed bool
	from := cb.state

	switch cb.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.cfg.Timeout {
			cb.transitionTo(StateHalfOpen)
			cb.trials = 1
			allowed = true
		}

	case StateHalfOpen:
		if cb.trials < cb.cfg.HalfOpenLimit {
			cb.trials++
			allowed = true
		}
	}

	cb.unlockAndNotify(from)

	return allowed
}

// RecordSuccess records a call that reached the downstream.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.state

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.releaseTrial()
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenLimit {
			cb.transitionTo(StateClosed)
		}
	}

	cb.unlockAndNotify(from)
}

// RecordFailure records a call the downstream did not serve.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	from := cb.state

	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		cb.releaseTrial()
		cb.transitionTo(StateOpen)
	}

	cb.unlockAndNotify(from)
}

// Release gives back an admitted call that ended without telling anything
// about the downstream, such as one cancelled by its caller.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.releaseTrial()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(to State) {
	if cb.state == to {
		return
	}

	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if to != StateHalfOpen {
		cb.trials = 0
	}
}

func (cb *CircuitBreaker) releaseTrial() {
	if cb.trials > 0 {
		cb.trials--
	}
}

func (cb *CircuitBreaker) unlockAndNotify(from State) {
	to := cb.state
	fn := cb.onChange
	cb.mu.Unlock()

	if fn != nil && from != to {
		fn(from, to)
	}
}
