package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/resilience"
)

// errTimeoutCause marks a context cancelled by the engine's own timeout,
// as opposed to the caller's deadline or shutdown.
var errTimeoutCause = errors.New("invocation timeout")

// execute applies admission control and the retry budget around run.
func (e *Engine) execute(ctx context.Context, op Operation, o callOptions) (any, error) {
	if e.admission != nil {
		if err := e.admission.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if o.task.Retries <= 0 {
		return e.run(ctx, op, o)
	}

	cfg := e.cfg.Retry
	cfg.MaxAttempts = o.task.Retries + 1
	cfg.RetryIf = func(err error) bool {
		return resilience.DefaultRetryIf(err) && !errors.Is(err, ErrShutdown)
	}
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		e.log.Debug("retrying operation", logger.Fields(
			logger.FieldOperation, op.Name(),
			logger.FieldTaskID, o.task.ID,
			logger.FieldAttempt, attempt,
			"backoff_ms", backoff.Milliseconds(),
			logger.FieldError, err.Error(),
		))
	}
	return resilience.Retry(ctx, cfg, func() (any, error) {
		return e.run(ctx, op, o)
	})
}

// run resolves the operation key and either joins a pending call for it
// or starts a guarded execution.
func (e *Engine) run(ctx context.Context, op Operation, o callOptions) (any, error) {
	name := op.Name()
	if c, ok := op.(Categorized); ok {
		e.timeouts.Declare(name, c.Category())
	}
	key := OperationKey(op)

	if !o.coalesce {
		execCtx, cancel := e.bind(ctx)
		defer cancel()
		return e.guarded(execCtx, op, key, o)
	}

	// The shared execution outlives any single caller but not the engine.
	val, attached, err := e.coalescer.Do(ctx, key, func() (any, error) {
		execCtx, cancel := e.bind(context.WithoutCancel(ctx))
		defer cancel()
		return e.guarded(execCtx, op, key, o)
	})
	if attached {
		e.coalesced.Add(1)
		observability.SetSpanAttribute(ctx, observability.AttrCoalesced, true)
		if e.metrics != nil {
			e.metrics.RecordCoalesced(ctx, name)
		}
	}
	return val, err
}

// guarded holds a concurrency slot and a breaker permit around invoke and
// records the outcome.
func (e *Engine) guarded(ctx context.Context, op Operation, key string, o callOptions) (any, error) {
	name := op.Name()

	if err := e.governor.Acquire(ctx); err != nil {
		if e.metrics != nil {
			e.metrics.RecordRejection(ctx, name, "overloaded")
		}
		return nil, err
	}
	defer e.governor.Release()

	var done func(error)
	if o.breaker {
		d, err := e.breakers.Guard(name)
		if err != nil {
			e.rejected.Add(1)
			if e.metrics != nil {
				e.metrics.RecordRejection(ctx, name, "circuit_open")
			}
			return nil, err
		}
		done = d
	}

	limit := e.timeoutFor(name, o)

	if e.metrics != nil {
		e.metrics.RecordExecutionStart(ctx)
	}
	start := time.Now()
	val, err := e.invoke(ctx, op, key, limit)
	elapsed := time.Since(start)

	abandoned := err != nil && ctx.Err() != nil && !errors.Is(err, resilience.ErrTimeout)
	if !abandoned {
		e.timeouts.Record(name, elapsed)
	}
	e.latency.Add(elapsed)
	if done != nil {
		outcome := err
		if abandoned {
			// The caller or the engine gave up; the dependency did not fail.
			outcome = fmt.Errorf("%w: %w", resilience.ErrAbandoned, err)
		}
		done(outcome)
	}
	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.RecordExecutionEnd(ctx, name, status, elapsed)
	}
	return val, err
}

// invoke runs op bounded by limit. The operation's context is cancelled
// when the limit passes; invoke does not wait for it to notice.
func (e *Engine) invoke(ctx context.Context, op Operation, key string, limit time.Duration) (any, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, limit, errTimeoutCause)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, observability.SpanInvoke)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrOperationKey, key)
	observability.SetSpanAttribute(ctx, observability.AttrTimeoutMs, limit.Milliseconds())

	type result struct {
		val any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("operation %q panicked: %v", op.Name(), r)}
			}
		}()
		v, err := op.Invoke(ctx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(context.Cause(ctx), errTimeoutCause) {
			return nil, e.timeoutError(op, key, limit)
		}
		return r.val, r.err
	case <-ctx.Done():
		if errors.Is(context.Cause(ctx), errTimeoutCause) {
			return nil, e.timeoutError(op, key, limit)
		}
		return nil, ctx.Err()
	}
}

func (e *Engine) timeoutError(op Operation, key string, limit time.Duration) error {
	e.timedOut.Add(1)
	e.log.Warn("operation timed out", logger.Fields(
		logger.FieldOperation, op.Name(),
		logger.FieldOperationKey, key,
		"timeout_ms", limit.Milliseconds(),
	))
	return &resilience.TimeoutError{Operation: op.Name(), Key: key, Timeout: limit}
}

func (e *Engine) timeoutFor(name string, o callOptions) time.Duration {
	switch {
	case o.task.Timeout > 0:
		return o.task.Timeout
	case o.adaptive:
		return e.timeouts.Current(name)
	default:
		return e.timeouts.Base(name)
	}
}

// bind derives a context from parent that is also cancelled when the
// engine's lifetime ends.
func (e *Engine) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(e.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
