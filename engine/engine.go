package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/execkit/coalesce"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/resilience"
	"github.com/kbukum/execkit/timeout"
)

// latencyWindow is the number of invocation latencies kept for Stats.
const latencyWindow = 1000

// Engine runs operations through coalescing, a concurrency governor, a
// per-operation circuit breaker and an adaptive timeout.
//
// An Engine must be initialized before use and shut down when done:
//
//	eng := engine.New(engine.DefaultConfig())
//	if err := eng.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer eng.Shutdown(context.Background())
//
//	user, err := engine.Run[*User](ctx, eng, engine.Op("fetch_user", fetch, id))
type Engine struct {
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics

	breakers  *resilience.BreakerRegistry
	governor  *resilience.Bulkhead
	coalescer *coalesce.Coalescer
	timeouts  *timeout.Manager
	admission *resilience.RateLimiter
	latency   *timeout.History

	stateMu sync.RWMutex
	state   State

	initMu      sync.Mutex
	initialized atomic.Bool

	// closeMu orders inflight.Add against Shutdown's drain.
	closeMu  sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	life       context.Context
	cancelLife context.CancelFunc
	stopLoops  chan struct{}
	loops      sync.WaitGroup

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	coalesced atomic.Int64
	rejected  atomic.Int64
	timedOut  atomic.Int64

	windowMu   sync.Mutex
	lastTotal  int64
	lastFailed int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics reports executions, rejections and state changes to m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine in the starting state. Defaults are applied to
// cfg; validation happens in Initialize.
func New(cfg Config, opts ...Option) *Engine {
	cfg.ApplyDefaults()

	e := &Engine{
		cfg:       cfg,
		log:       logger.Get("engine"),
		state:     StateStarting,
		stopLoops: make(chan struct{}),
		latency:   timeout.NewHistory(latencyWindow),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.life, e.cancelLife = context.WithCancel(context.Background())

	e.breakers = resilience.NewBreakerRegistry(cfg.Breaker, cfg.Breakers)
	e.breakers.OnStateChange(e.onBreakerChange)

	e.governor = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          cfg.Name,
		MaxConcurrent: cfg.MaxConcurrent,
		MaxWait:       cfg.AcquireTimeout,
	})
	e.coalescer = coalesce.New(cfg.Coalescing.TTL)
	e.timeouts = timeout.NewManager(cfg.Timeouts)

	if cfg.Admission.Enabled() {
		adm := cfg.Admission
		adm.Name = cfg.Name
		adm.OnLimit = func(string) { e.log.Debug("admission throttled") }
		e.admission = resilience.NewRateLimiter(adm)
	}
	return e
}

// Initialize validates the configuration and starts the health monitor.
// It is idempotent. A configuration error leaves the engine failing.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.isClosed() {
		return ErrShutdown
	}
	if e.initialized.Load() {
		return nil
	}

	if err := e.cfg.Validate(); err != nil {
		e.setState(StateFailing)
		e.log.Error("engine initialization failed", logger.Fields(logger.FieldError, err.Error()))
		return err
	}

	e.initialized.Store(true)
	e.setState(StateHealthy)

	e.loops.Add(1)
	go e.monitor()

	e.log.Info("engine initialized", logger.Fields(
		"max_concurrent", e.cfg.MaxConcurrent,
		"coalescing_ttl", e.cfg.Coalescing.TTL.String(),
		"health_interval", e.cfg.Health.Interval.String(),
	))
	return nil
}

// Execute runs op and returns its value or error. Errors from the engine
// itself are *resilience.CircuitOpenError, *resilience.TimeoutError,
// *resilience.RetryExhaustedError, ErrNotInitialized or ErrShutdown;
// anything else is the operation's own error.
func (e *Engine) Execute(ctx context.Context, op Operation, opts ...CallOption) (any, error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.inflight.Done()

	o := newCallOptions(opts)

	ctx, span := observability.StartSpan(ctx, observability.SpanExecute)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrOperationName, op.Name())
	observability.SetSpanAttribute(ctx, observability.AttrTaskID, o.task.ID)
	observability.SetSpanAttribute(ctx, observability.AttrTaskType, string(o.task.Type))

	e.total.Add(1)
	val, err := e.execute(ctx, op, o)
	if err != nil {
		e.failed.Add(1)
		observability.SetSpanError(ctx, err)
		e.log.Debug("operation failed", e.callFields(op, o, err))
		return nil, err
	}
	e.succeeded.Add(1)
	return val, nil
}

// Run executes op and asserts its value to T. A nil value yields T's zero value.
func Run[T any](ctx context.Context, e *Engine, op Operation, opts ...CallOption) (T, error) {
	var zero T
	v, err := e.Execute(ctx, op, opts...)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("operation %q returned %T, want %T", op.Name(), v, zero)
	}
	return t, nil
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Shutdown stops the health monitor, waits for in-flight calls until ctx
// ends (or ShutdownTimeout, if ctx has no deadline) and then cancels
// whatever is still running. New calls fail with ErrShutdown.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return nil
	}
	e.closed = true
	e.closeMu.Unlock()

	e.setState(StateShutdown)
	close(e.stopLoops)
	e.loops.Wait()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	drained := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
		e.log.Info("engine shut down")
	case <-ctx.Done():
		err = fmt.Errorf("drain interrupted: %w", ctx.Err())
		e.log.Warn("engine shutdown forced", logger.Fields(
			"in_flight", e.governor.InUse(),
		))
	}
	e.cancelLife()
	return err
}

func (e *Engine) enter() error {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return ErrShutdown
	}
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	e.inflight.Add(1)
	return nil
}

// ready reports why a call would be refused, without entering.
func (e *Engine) ready() error {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return ErrShutdown
	}
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	return e.closed
}

func (e *Engine) setState(next State) {
	e.stateMu.Lock()
	prev := e.state
	if prev == next || prev == StateShutdown {
		e.stateMu.Unlock()
		return
	}
	e.state = next
	e.stateMu.Unlock()

	fields := logger.Fields("from", string(prev), "to", string(next))
	switch next {
	case StateFailing, StateOverloaded:
		e.log.Warn("engine state changed", fields)
	default:
		e.log.Info("engine state changed", fields)
	}
	if e.metrics != nil {
		e.metrics.RecordStateChange(context.Background(), "engine", string(next))
	}
}

func (e *Engine) onBreakerChange(name string, _, to resilience.State) {
	if e.metrics != nil {
		e.metrics.RecordStateChange(context.Background(), "breaker:"+name, to.String())
	}
}

func (e *Engine) callFields(op Operation, o callOptions, err error) map[string]interface{} {
	fields := logger.Fields(
		logger.FieldOperation, op.Name(),
		logger.FieldTaskID, o.task.ID,
		logger.FieldTaskType, string(o.task.Type),
	)
	for k, v := range o.task.Metadata {
		fields[k] = v
	}
	if err != nil {
		fields = logger.MergeWithError(fields, err)
		var openErr *resilience.CircuitOpenError
		if errors.As(err, &openErr) {
			fields["retry_in_ms"] = openErr.Remaining.Milliseconds()
		}
	}
	return fields
}
