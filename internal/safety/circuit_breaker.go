package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	coreerrors "github.com/tradesafe/risk-core/internal/errors"
)

// State represents the state of a resilience circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the breaker state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateChangeCallback is invoked on every state transition so external
// collaborators (notification dispatch) can react without the breaker
// depending on them.
type StateChangeCallback func(name string, from, to State, reason string)

// Config holds configuration for a circuit breaker.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes to close from half-open
	Timeout          time.Duration // open duration before probing
	HalfOpenMaxCalls int           // max in-flight probes in half-open
	ExcludedErrors   []error       // errors that never count as failures
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker protects one named fallible operation with failure
// counting and automatic recovery probing. An OPEN breaker never
// invokes the wrapped operation. Safe for concurrent use.
type CircuitBreaker struct {
	name   string
	config Config

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	halfOpenInFlight int
	totalCalls       int64
	rejectedCalls    int64
	lastFailureTime  time.Time
	openedAt         time.Time

	onStateChange StateChangeCallback
}

// NewCircuitBreaker creates a breaker for the named operation. It
// fails fast on misconfiguration rather than at call time.
func NewCircuitBreaker(name string, config Config) (*CircuitBreaker, error) {
	if config.FailureThreshold <= 0 {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryConfiguration, "safety", "NewCircuitBreaker",
			"failure_threshold must be positive, got %d", config.FailureThreshold)
	}
	if config.SuccessThreshold <= 0 {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryConfiguration, "safety", "NewCircuitBreaker",
			"success_threshold must be positive, got %d", config.SuccessThreshold)
	}
	if config.Timeout <= 0 {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryConfiguration, "safety", "NewCircuitBreaker",
			"timeout must be positive, got %v", config.Timeout)
	}
	if config.HalfOpenMaxCalls <= 0 {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryConfiguration, "safety", "NewCircuitBreaker",
			"half_open_max_calls must be positive, got %d", config.HalfOpenMaxCalls)
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}, nil
}

// SetStateChangeCallback registers the transition callback.
func (cb *CircuitBreaker) SetStateChangeCallback(callback StateChangeCallback) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = callback
}

// Call executes the operation with breaker protection. A rejected call
// returns a BREAKER_OPEN error without invoking the operation; callers
// must treat that as expected backpressure, not a fault.
func (cb *CircuitBreaker) Call(operation func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := operation()
	cb.afterCall(err)
	return err
}

// CallContext is the asynchronous calling convention. It checks ctx
// before attempting the operation and applies the exact same state
// semantics as Call.
func (cb *CircuitBreaker) CallContext(ctx context.Context, operation func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		cb.afterCall(err)
		return err
	}

	err := operation(ctx)
	cb.afterCall(err)
	return err
}

// beforeCall admits or rejects the call, transitioning OPEN->HALF_OPEN
// when the open timeout has elapsed. Rejections are counted separately
// from attempts.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) >= cb.config.Timeout {
			cb.transition(StateHalfOpen, "open timeout elapsed, probing")
		} else {
			cb.rejectedCalls++
			return cb.openError("breaker is open")
		}
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxCalls {
			cb.rejectedCalls++
			return cb.openError("half-open probe limit reached")
		}
		cb.halfOpenInFlight++
	}

	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if err != nil && !cb.isExcluded(err) {
		cb.recordFailure(err)
		return
	}
	if err == nil {
		cb.recordSuccess()
	}
	// Excluded errors count neither as success nor as failure.
}

func (cb *CircuitBreaker) isExcluded(err error) bool {
	for _, excluded := range cb.config.ExcludedErrors {
		if errors.Is(err, excluded) {
			return true
		}
	}
	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(StateClosed, "success threshold reached in half-open")
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(StateOpen, "failure threshold reached: "+err.Error())
		}
	case StateHalfOpen:
		cb.transition(StateOpen, "probe failed in half-open: "+err.Error())
	}
}

// transition changes state and fires the callback. Caller must hold
// the mutex.
func (cb *CircuitBreaker) transition(newState State, reason string) {
	oldState := cb.state
	if oldState == newState {
		return
	}
	cb.state = newState

	switch newState {
	case StateOpen:
		cb.openedAt = time.Now()
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
		cb.halfOpenInFlight = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	}

	if cb.onStateChange != nil {
		// Callback runs outside the lock to avoid deadlock with
		// subscribers that query the breaker.
		go cb.onStateChange(cb.name, oldState, newState, reason)
	}
}

func (cb *CircuitBreaker) openError(reason string) error {
	return coreerrors.Newf(coreerrors.ErrorCategoryBreakerOpen, "safety", cb.name,
		"call rejected: %s", reason).WithContext("breaker", cb.name)
}

// Name returns the protected operation's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats holds statistics about a circuit breaker.
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	Successes       int       `json:"successes"`
	TotalCalls      int64     `json:"total_calls"`
	RejectedCalls   int64     `json:"rejected_calls"`
	LastFailureTime time.Time `json:"last_failure_time"`
	OpenedAt        time.Time `json:"opened_at"`
}

// GetStatistics returns a snapshot of the breaker counters. Two calls
// with no intervening state change return identical values.
func (cb *CircuitBreaker) GetStatistics() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		Successes:       cb.successes,
		TotalCalls:      cb.totalCalls,
		RejectedCalls:   cb.rejectedCalls,
		LastFailureTime: cb.lastFailureTime,
		OpenedAt:        cb.openedAt,
	}
}

// Reset forces the breaker back to closed state and clears the
// counters, even when it is already closed mid-failure-streak.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenInFlight = 0
	cb.transition(StateClosed, "manual reset")
}

// ForceOpen forces the breaker open, e.g. during maintenance.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateOpen, "forced open")
}
