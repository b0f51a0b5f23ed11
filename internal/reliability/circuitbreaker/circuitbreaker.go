package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOpen is returned by Execute while the circuit rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker fails fast when a dependency fails repeatedly.
type CircuitBreaker struct {
	state            atomic.Value
	failureCount     atomic.Int32
	successCount     atomic.Int32
	lastFailureTime  atomic.Value
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	now              func() time.Time
	mu               sync.RWMutex
	onStateChange    func(from, to State)
}

func NewCircuitBreaker(failureThreshold, successThreshold int32, timeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
		onStateChange:    func(_, _ State) {},
	}
	cb.state.Store(StateClosed)
	return cb
}

// SetStateChangeCallback registers a callback for state transitions
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute runs fn when the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.AllowRequest() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.GetState() {
	case StateHalfOpen:
		if cb.successCount.Add(1) >= cb.successThreshold {
			cb.reset(StateClosed)
		}
	case StateClosed:
		cb.failureCount.Store(0)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	now := cb.now()
	cb.lastFailureTime.Store(&now)

	switch cb.GetState() {
	case StateClosed:
		if cb.failureCount.Add(1) >= cb.failureThreshold {
			cb.reset(StateOpen)
		}
	case StateHalfOpen:
		cb.reset(StateOpen)
	}
}

// AllowRequest reports whether a call may go through. An open circuit moves
// to half-open once timeout has elapsed since the last failure.
func (cb *CircuitBreaker) AllowRequest() bool {
	if cb.GetState() != StateOpen {
		return true
	}
	lastFailure, ok := cb.lastFailureTime.Load().(*time.Time)
	if !ok || lastFailure == nil {
		return false
	}
	if cb.now().Sub(*lastFailure) > cb.timeout {
		cb.reset(StateHalfOpen)
		return true
	}
	return false
}

func (cb *CircuitBreaker) GetState() State {
	return cb.state.Load().(State)
}

func (cb *CircuitBreaker) reset(to State) {
	cb.setState(to)
	cb.failureCount.Store(0)
	cb.successCount.Store(0)
}

func (cb *CircuitBreaker) setState(newState State) {
	oldState := cb.GetState()
	if oldState == newState {
		return
	}
	cb.state.Store(newState)
	cb.mu.RLock()
	fn := cb.onStateChange
	cb.mu.RUnlock()
	if fn != nil {
		fn(oldState, newState)
	}
}
