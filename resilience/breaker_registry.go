package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/kbukum/execkit/logger"
)

// BreakerSnapshot is a point-in-time view of one breaker.
type BreakerSnapshot struct {
	Name        string        `json:"name" yaml:"name"`
	State       State         `json:"state" yaml:"state"`
	Failures    int           `json:"failures" yaml:"failures"`
	LastFailure time.Time     `json:"last_failure,omitempty" yaml:"last_failure,omitempty"`
	Remaining   time.Duration `json:"remaining,omitempty" yaml:"remaining,omitempty"`
}

// BreakerRegistry holds one circuit breaker per operation name, created
// lazily from the default config or a per-name override.
type BreakerRegistry struct {
	mu        sync.RWMutex
	breakers  map[string]*CircuitBreaker
	defaults  CircuitBreakerConfig
	overrides map[string]CircuitBreakerConfig
	listeners []func(name string, from, to State)
	log       *logger.Logger
}

// NewBreakerRegistry creates a registry. Zero fields in defaults fall back
// to DefaultCircuitBreakerConfig values.
func NewBreakerRegistry(defaults CircuitBreakerConfig, overrides map[string]CircuitBreakerConfig) *BreakerRegistry {
	r := &BreakerRegistry{
		breakers:  make(map[string]*CircuitBreaker),
		defaults:  defaults,
		overrides: make(map[string]CircuitBreakerConfig, len(overrides)),
		log:       logger.Get("circuit-breaker"),
	}
	for name, cfg := range overrides {
		r.overrides[name] = cfg
	}
	return r
}

// Configure sets the config used for name. An existing breaker for name is
// replaced, which also resets its state.
func (r *BreakerRegistry) Configure(name string, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg
	delete(r.breakers, name)
}

// OnStateChange registers a listener notified on every breaker transition.
func (r *BreakerRegistry) OnStateChange(fn func(name string, from, to State)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Get returns the breaker for name, creating it on first use.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok = r.breakers[name]; ok {
		return b
	}

	cfg := r.defaults
	if o, ok := r.overrides[name]; ok {
		cfg = mergeBreakerConfig(cfg, o)
	}
	cfg.Name = name
	userHook := cfg.OnStateChange
	cfg.OnStateChange = func(n string, from, to State) {
		r.handleStateChange(n, from, to)
		if userHook != nil {
			userHook(n, from, to)
		}
	}

	b = NewCircuitBreaker(cfg)
	r.breakers[name] = b
	return b
}

// Guard gates a call to the named operation. See CircuitBreaker.Allow.
func (r *BreakerRegistry) Guard(name string) (func(err error), error) {
	return r.Get(name).Allow()
}

// State returns the state of the named breaker, closed if none exists yet.
func (r *BreakerRegistry) State(name string) State {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return b.State()
}

// Snapshot returns the state of every known breaker, sorted by name.
func (r *BreakerRegistry) Snapshot() []BreakerSnapshot {
	r.mu.RLock()
	list := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(list))
	for _, b := range list {
		out = append(out, BreakerSnapshot{
			Name:        b.config.Name,
			State:       b.State(),
			Failures:    b.Failures(),
			LastFailure: b.LastFailure(),
			Remaining:   b.Remaining(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PurgeIdle drops closed breakers that have not guarded a call for idle.
// Open and half-open breakers are kept so their state is not lost.
func (r *BreakerRegistry) PurgeIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	// State() may fire a transition callback that takes the registry lock,
	// so candidates are picked before locking for deletion.
	r.mu.RLock()
	candidates := make(map[string]*CircuitBreaker, len(r.breakers))
	for name, b := range r.breakers {
		candidates[name] = b
	}
	r.mu.RUnlock()

	for name, b := range candidates {
		if b.State() != StateClosed || b.Failures() > 0 || !b.LastActivity().Before(cutoff) {
			delete(candidates, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for name, b := range candidates {
		if r.breakers[name] == b {
			delete(r.breakers, name)
			purged++
		}
	}
	return purged
}

// Len returns the number of live breakers.
func (r *BreakerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}

func (r *BreakerRegistry) handleStateChange(name string, from, to State) {
	switch {
	case to == StateOpen:
		r.log.Warn("circuit breaker opened", logger.Fields(
			logger.FieldOperation, name,
			"from", from.String(),
		))
	case to == StateClosed && from == StateHalfOpen:
		r.log.Info("circuit breaker recovered", logger.Fields(logger.FieldOperation, name))
	default:
		r.log.Debug("circuit breaker state changed", logger.Fields(
			logger.FieldOperation, name,
			"from", from.String(),
			"to", to.String(),
		))
	}

	for _, fn := range r.listenersSnapshot() {
		fn(name, from, to)
	}
}

func (r *BreakerRegistry) listenersSnapshot() []func(string, State, State) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]func(string, State, State), len(r.listeners))
	copy(out, r.listeners)
	return out
}

func mergeBreakerConfig(base, o CircuitBreakerConfig) CircuitBreakerConfig {
	if o.FailureThreshold > 0 {
		base.FailureThreshold = o.FailureThreshold
	}
	if o.RecoveryTimeout > 0 {
		base.RecoveryTimeout = o.RecoveryTimeout
	}
	if o.IsFailure != nil {
		base.IsFailure = o.IsFailure
	}
	if o.OnStateChange != nil {
		base.OnStateChange = o.OnStateChange
	}
	return base
}
