package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// BreakerSnapshot is a point-in-time copy of a breaker's state.
type BreakerSnapshot struct {
	Source              model.Source `json:"source"`
	State               State        `json:"state"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastFailureAt       time.Time    `json:"lastFailureAt,omitempty"`
	HalfOpenSuccesses   int          `json:"halfOpenSuccesses"`
}

// CircuitBreaker guards calls to one upstream source.
//
// closed: calls pass through; FailureThreshold consecutive failures open it.
// open: calls are rejected with a circuit_open FetchError until ResetTimeout
// has passed since the last failure, then it turns half-open.
// half_open: one probe runs at a time; RequiredHalfOpenSuccesses consecutive
// successful probes close it, any failure reopens it.
type CircuitBreaker struct {
	source           model.Source
	failureThreshold int
	resetTimeout     time.Duration
	requiredSuccess  int
	now              func() time.Time
	log              *logrus.Entry

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	halfOpenSuccesses   int
	probeInFlight       bool
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithBreakerLogger sets the logger used for state transitions.
func WithBreakerLogger(l logrus.FieldLogger) BreakerOption {
	return func(cb *CircuitBreaker) { cb.log = logging.Component(l, "circuit_breaker") }
}

// NewCircuitBreaker creates a closed breaker using the breaker fields of policy.
func NewCircuitBreaker(source model.Source, policy Policy, opts ...BreakerOption) *CircuitBreaker {
	policy = policy.Merge(DefaultPolicy())
	cb := &CircuitBreaker{
		source:           source,
		failureThreshold: policy.FailureThreshold,
		resetTimeout:     policy.ResetTimeout,
		requiredSuccess:  policy.RequiredHalfOpenSuccesses,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	if cb.log == nil {
		cb.log = logging.Component(nil, "circuit_breaker")
	}
	return cb
}

// Execute runs op if the breaker admits it and records the outcome.
// A rejected call returns a circuit_open FetchError without running op.
// Errors caused by ctx being cancelled, and local rate limiter refusals,
// are not counted against the upstream.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	opErr := op(ctx)

	if opErr != nil && (errors.Is(opErr, apperrors.ErrRateLimited) || (ctx.Err() != nil && errors.Is(opErr, ctx.Err()))) {
		cb.release(probe)
		return opErr
	}
	if opErr != nil {
		cb.onFailure(probe)
		return opErr
	}
	cb.onSuccess(probe)
	return nil
}

// State returns the current state, applying the open → half-open timeout.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

// Snapshot returns a copy of the breaker's counters.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return BreakerSnapshot{
		Source:              cb.source,
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		LastFailureAt:       cb.lastFailureAt,
		HalfOpenSuccesses:   cb.halfOpenSuccesses,
	}
}

// admit decides whether a call may run. probe is true when the call is the half-open trial.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()

	switch cb.state {
	case StateOpen:
		return false, apperrors.NewCircuitOpenError(cb.source)
	case StateHalfOpen:
		if cb.probeInFlight {
			return false, apperrors.NewCircuitOpenError(cb.source)
		}
		cb.probeInFlight = true
		return true, nil
	default:
		return false, nil
	}
}

// maybeHalfOpen moves an open breaker to half-open once the reset timeout has elapsed. Caller holds mu.
func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureAt) >= cb.resetTimeout {
		cb.transition(StateHalfOpen)
		cb.halfOpenSuccesses = 0
		cb.probeInFlight = false
	}
}

func (cb *CircuitBreaker) onSuccess(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probeInFlight = false
	}
	switch cb.state {
	case StateHalfOpen:
		if !probe {
			return
		}
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.requiredSuccess {
			cb.consecutiveFailures = 0
			cb.halfOpenSuccesses = 0
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.consecutiveFailures = 0
	}
}

func (cb *CircuitBreaker) onFailure(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probeInFlight = false
	}
	cb.lastFailureAt = cb.now()
	cb.consecutiveFailures++

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenSuccesses = 0
		cb.transition(StateOpen)
	case StateClosed:
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	cb.probeInFlight = false
	cb.mu.Unlock()
}

// transition changes state and logs it. Caller holds mu.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.log.WithFields(logrus.Fields{
		"source":               cb.source,
		"from":                 from,
		"to":                   to,
		"consecutive_failures": cb.consecutiveFailures,
	}).Warn("circuit breaker state change")
}
