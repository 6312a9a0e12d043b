package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows a single probe to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for metrics/logging.
	Name string `yaml:"-" mapstructure:"-"`
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	// RecoveryTimeout is how long to wait before letting a probe through an open circuit.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" mapstructure:"recovery_timeout"`
	// IsFailure classifies errors. Nil counts every non-nil error.
	IsFailure func(error) bool `yaml:"-" mapstructure:"-"`
	// OnStateChange is called when state changes. It runs while the breaker
	// holds its internal lock and must not call back into the breaker.
	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern on top of a
// two-step gobreaker: the guard and the outcome recording happen at
// different points of the caller's pipeline.
//
// States:
//   - Closed: Normal operation, requests pass through
//   - Open: Service is unhealthy, requests fail immediately
//   - Half-Open: exactly one probe is allowed to test recovery
type CircuitBreaker struct {
	config CircuitBreakerConfig
	cb     *gobreaker.TwoStepCircuitBreaker

	mu          sync.Mutex
	openedAt    time.Time
	lastFailure time.Time

	lastActivity atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}

	b := &CircuitBreaker{config: config}
	threshold := uint32(config.FailureThreshold)
	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: b.onStateChange,
	})
	b.touch()
	return b
}

// Allow is the guard step. It returns a done callback that must be called
// exactly once with the outcome of the guarded call, or a *CircuitOpenError
// when the call must fail fast.
//
// An outcome wrapping ErrAbandoned says nothing about the dependency and is
// not counted. A half-open trial call still has to be settled, so
// abandoning it reopens the circuit.
func (b *CircuitBreaker) Allow() (func(err error), error) {
	b.touch()
	done, err := b.cb.Allow()
	if err != nil {
		return nil, &CircuitOpenError{Operation: b.config.Name, Remaining: b.Remaining()}
	}
	trial := b.cb.State() == gobreaker.StateHalfOpen
	return func(callErr error) {
		if errors.Is(callErr, ErrAbandoned) {
			if trial {
				done(false)
			}
			return
		}
		failed := b.isFailure(callErr)
		if failed {
			b.mu.Lock()
			b.lastFailure = time.Now()
			b.mu.Unlock()
		}
		done(!failed)
	}, nil
}

// Execute runs the given function through the circuit breaker.
// Returns a *CircuitOpenError if the circuit is open.
func (b *CircuitBreaker) Execute(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}
	err = fn()
	done(err)
	return err
}

// State returns the current circuit breaker state.
func (b *CircuitBreaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	return int(b.cb.Counts().ConsecutiveFailures)
}

// LastFailure returns the time of the most recent counted failure.
func (b *CircuitBreaker) LastFailure() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailure
}

// Remaining returns the time left before an open circuit lets a probe through.
func (b *CircuitBreaker) Remaining() time.Duration {
	b.mu.Lock()
	openedAt := b.openedAt
	b.mu.Unlock()
	if openedAt.IsZero() {
		return 0
	}
	left := b.config.RecoveryTimeout - time.Since(openedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Config returns the effective configuration.
func (b *CircuitBreaker) Config() CircuitBreakerConfig {
	return b.config
}

// LastActivity returns when the breaker last guarded a call.
func (b *CircuitBreaker) LastActivity() time.Time {
	return time.Unix(0, b.lastActivity.Load())
}

func (b *CircuitBreaker) touch() {
	b.lastActivity.Store(time.Now().UnixNano())
}

func (b *CircuitBreaker) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if b.config.IsFailure != nil {
		return b.config.IsFailure(err)
	}
	return true
}

// onStateChange runs under the gobreaker lock.
func (b *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	b.mu.Lock()
	switch to {
	case gobreaker.StateOpen:
		b.openedAt = time.Now()
	case gobreaker.StateClosed:
		b.openedAt = time.Time{}
	}
	b.mu.Unlock()

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
