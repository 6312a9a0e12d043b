package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/resilience"
)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := Config{Name: "test"}
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(cfg, WithLogger(logger.Nop()))
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

func value(v any) Func {
	return func(context.Context) (any, error) { return v, nil }
}

func failing(err error) Func {
	return func(context.Context) (any, error) { return nil, err }
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestExecuteReturnsValue(t *testing.T) {
	e := newTestEngine(t, nil)

	v, err := e.Execute(context.Background(), Op("greet", value("hello")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hello" {
		t.Errorf("expected 'hello', got %v", v)
	}

	s := e.Stats()
	if s.TotalRequests != 1 || s.SuccessCount != 1 || s.FailureCount != 0 {
		t.Errorf("unexpected counters %+v", s)
	}
}

func TestExecutePropagatesOperationError(t *testing.T) {
	e := newTestEngine(t, nil)
	boom := errors.New("boom")

	_, err := e.Execute(context.Background(), Op("explode", failing(boom)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if s := e.Stats(); s.FailureCount != 1 {
		t.Errorf("expected 1 failure, got %d", s.FailureCount)
	}
}

func TestExecuteNilOperation(t *testing.T) {
	e := newTestEngine(t, nil)
	if _, err := e.Execute(context.Background(), nil); !errors.Is(err, ErrNilOperation) {
		t.Errorf("expected ErrNilOperation, got %v", err)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Execute(context.Background(), Op("crash", func(context.Context) (any, error) {
		panic("bad input")
	}))
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic to surface as an error, got %v", err)
	}
}

func TestExecuteCoalescesIdenticalCalls(t *testing.T) {
	e := newTestEngine(t, nil)

	var invocations atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	op := func() Operation {
		return Op("fetch_user", func(context.Context) (any, error) {
			if invocations.Add(1) == 1 {
				close(started)
			}
			<-release
			return "alice", nil
		}, 42)
	}

	const callers = 10
	results := make([]any, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = e.Execute(context.Background(), op())
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.Execute(context.Background(), op())
		}()
	}
	// Give the joiners time to attach before the execution finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := invocations.Load(); n != 1 {
		t.Fatalf("expected 1 invocation, got %d", n)
	}
	for i := range callers {
		if errs[i] != nil || results[i] != "alice" {
			t.Errorf("caller %d: got (%v, %v)", i, results[i], errs[i])
		}
	}
	s := e.Stats()
	if s.CoalescedCount != callers-1 {
		t.Errorf("expected %d coalesced calls, got %d", callers-1, s.CoalescedCount)
	}
	if s.TotalRequests != callers {
		t.Errorf("expected every caller counted, got %d", s.TotalRequests)
	}
}

func TestExecuteDifferentArgsDoNotCoalesce(t *testing.T) {
	e := newTestEngine(t, nil)

	var invocations atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for id := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Execute(context.Background(), Op("fetch_user", func(context.Context) (any, error) {
				invocations.Add(1)
				<-release
				return id, nil
			}, id))
		}()
	}
	waitFor(t, func() bool { return invocations.Load() == 3 })
	close(release)
	wg.Wait()

	if s := e.Stats(); s.CoalescedCount != 0 {
		t.Errorf("expected no coalescing across distinct args, got %d", s.CoalescedCount)
	}
}

func TestExecuteWithoutCoalescing(t *testing.T) {
	e := newTestEngine(t, nil)

	var invocations atomic.Int32
	release := make(chan struct{})
	op := Op("tick", func(context.Context) (any, error) {
		invocations.Add(1)
		<-release
		return nil, nil
	})

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Execute(context.Background(), op, WithoutCoalescing())
		}()
	}
	waitFor(t, func() bool { return invocations.Load() == 2 })
	close(release)
	wg.Wait()
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Breaker.FailureThreshold = 5
	})

	var invocations atomic.Int32
	op := Op("unstable_service", func(context.Context) (any, error) {
		invocations.Add(1)
		return nil, errors.New("unavailable")
	})

	for range 5 {
		if _, err := e.Execute(context.Background(), op); err == nil {
			t.Fatal("expected operation error")
		}
	}

	_, err := e.Execute(context.Background(), op)
	var openErr *resilience.CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *CircuitOpenError, got %v", err)
	}
	if openErr.Operation != "unstable_service" {
		t.Errorf("expected breaker for unstable_service, got %q", openErr.Operation)
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Error("expected errors.Is ErrCircuitOpen")
	}
	if n := invocations.Load(); n != 5 {
		t.Errorf("expected the rejected call not to invoke, got %d invocations", n)
	}
	if s := e.Stats(); s.RejectedCount != 1 {
		t.Errorf("expected 1 rejection, got %d", s.RejectedCount)
	}
}

func TestCircuitBreakerOverrideRecovers(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Breakers = map[string]resilience.CircuitBreakerConfig{
			"fetch": {FailureThreshold: 3, RecoveryTimeout: 100 * time.Millisecond},
		}
	})

	var healthy atomic.Bool
	op := Op("fetch", func(context.Context) (any, error) {
		if healthy.Load() {
			return "ok", nil
		}
		return nil, errors.New("connection refused")
	})

	for range 3 {
		_, _ = e.Execute(context.Background(), op)
	}
	if _, err := e.Execute(context.Background(), op); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit after 3 failures, got %v", err)
	}

	healthy.Store(true)
	time.Sleep(150 * time.Millisecond)

	v, err := e.Execute(context.Background(), op)
	if err != nil || v != "ok" {
		t.Fatalf("expected probe to succeed, got (%v, %v)", v, err)
	}
	if st := e.breakers.State("fetch"); st != resilience.StateClosed {
		t.Errorf("expected breaker closed after successful probe, got %s", st)
	}
}

func TestWithoutCircuitBreakerBypassesOpenBreaker(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Breaker.FailureThreshold = 1 })

	_, _ = e.Execute(context.Background(), Op("flaky", failing(errors.New("x"))))
	v, err := e.Execute(context.Background(), Op("flaky", value(1)), WithoutCircuitBreaker())
	if err != nil || v != 1 {
		t.Fatalf("expected bypass to run the operation, got (%v, %v)", v, err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := newTestEngine(t, nil)

	op := Op("slow_report", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := e.Execute(context.Background(), op, WithTimeout(20*time.Millisecond))

	var timeoutErr *resilience.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if !errors.Is(err, resilience.ErrTimeout) {
		t.Error("expected errors.Is ErrTimeout")
	}
	if timeoutErr.Timeout != 20*time.Millisecond {
		t.Errorf("expected 20ms timeout, got %s", timeoutErr.Timeout)
	}
	if s := e.Stats(); s.TimeoutCount != 1 {
		t.Errorf("expected 1 timeout, got %d", s.TimeoutCount)
	}
}

func TestExecuteTimeoutDoesNotWaitForOperation(t *testing.T) {
	e := newTestEngine(t, nil)

	block := make(chan struct{})
	defer close(block)
	op := Op("stuck", func(context.Context) (any, error) {
		<-block
		return nil, nil
	})

	start := time.Now()
	_, err := e.Execute(context.Background(), op, WithTimeout(20*time.Millisecond))
	if !errors.Is(err, resilience.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected timeout to return promptly, took %s", elapsed)
	}
}

func TestCallerCancellation(t *testing.T) {
	e := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	op := Op("wait", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := e.Execute(ctx, op)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, resilience.ErrTimeout) {
		t.Error("caller cancellation must not count as a timeout")
	}
}

func TestCallerDeadlineDoesNotTripBreaker(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Breaker.FailureThreshold = 5
	})

	slow := Op("healthy_dep", func(ctx context.Context) (any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	for range 8 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := e.Execute(ctx, slow, WithoutCoalescing())
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected the caller's deadline, got %v", err)
		}
	}

	if st := e.breakers.State("healthy_dep"); st != resilience.StateClosed {
		t.Fatalf("expected breaker to stay closed, got %s", st)
	}
	v, err := e.Execute(context.Background(), Op("healthy_dep", value("ok")), WithoutCoalescing())
	if err != nil || v != "ok" {
		t.Fatalf("expected dependency to stay reachable, got (%v, %v)", v, err)
	}
	if s := e.Stats(); s.TimeoutCount != 0 {
		t.Errorf("expected caller deadlines not to count as timeouts, got %d", s.TimeoutCount)
	}
}

func TestEngineTimeoutsTripBreaker(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Breaker.FailureThreshold = 3
	})

	op := Op("hanging_dep", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	for range 3 {
		_, err := e.Execute(context.Background(), op, WithTimeout(10*time.Millisecond), WithoutCoalescing())
		if !errors.Is(err, resilience.ErrTimeout) {
			t.Fatalf("expected timeout, got %v", err)
		}
	}

	_, err := e.Execute(context.Background(), op, WithoutCoalescing())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected engine timeouts to open the breaker, got %v", err)
	}
}

func TestConcurrencyBound(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.MaxConcurrent = 2 })

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Execute(context.Background(), Op("work", func(context.Context) (any, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			}, i))
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("expected at most 2 concurrent invocations, saw %d", p)
	}
	if s := e.Stats(); s.InFlight != 0 || s.AvailableSlots != 2 {
		t.Errorf("expected all slots released, got %+v", s)
	}
}

func TestAcquireTimeout(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.MaxConcurrent = 1
		c.AcquireTimeout = 10 * time.Millisecond
	})

	release := make(chan struct{})
	go func() {
		_, _ = e.Execute(context.Background(), Op("hold", func(context.Context) (any, error) {
			<-release
			return nil, nil
		}))
	}()
	waitFor(t, func() bool { return e.governor.InUse() == 1 })

	_, err := e.Execute(context.Background(), Op("other", value(1)))
	close(release)
	if !errors.Is(err, resilience.ErrBulkheadTimeout) {
		t.Fatalf("expected ErrBulkheadTimeout, got %v", err)
	}
}

func TestRetriesExhausted(t *testing.T) {
	e := newTestEngine(t, nil)

	var invocations atomic.Int32
	_, err := e.Execute(context.Background(), Op("flaky", func(context.Context) (any, error) {
		invocations.Add(1)
		return nil, errors.New("flaky")
	}), WithRetries(2))

	var exhausted *resilience.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *RetryExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", exhausted.Attempts)
	}
	if n := invocations.Load(); n != 3 {
		t.Errorf("expected 3 invocations, got %d", n)
	}
	if s := e.Stats(); s.TotalRequests != 1 || s.FailureCount != 1 {
		t.Errorf("expected a retried call to count once, got %+v", s)
	}
}

func TestRetriesSucceed(t *testing.T) {
	e := newTestEngine(t, nil)

	var invocations atomic.Int32
	v, err := e.Execute(context.Background(), Op("eventually", func(context.Context) (any, error) {
		if invocations.Add(1) < 3 {
			return nil, errors.New("not yet")
		}
		return "done", nil
	}), WithRetries(3))
	if err != nil || v != "done" {
		t.Fatalf("expected success on third attempt, got (%v, %v)", v, err)
	}
}

func TestRetriesStopOnOpenCircuit(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Breaker.FailureThreshold = 1 })

	var invocations atomic.Int32
	_, err := e.Execute(context.Background(), Op("fragile", func(context.Context) (any, error) {
		invocations.Add(1)
		return nil, errors.New("down")
	}), WithRetries(5))

	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected retries to stop at the open circuit, got %v", err)
	}
	if n := invocations.Load(); n != 1 {
		t.Errorf("expected 1 invocation, got %d", n)
	}
}

func TestRun(t *testing.T) {
	e := newTestEngine(t, nil)

	n, err := Run[int](context.Background(), e, Op("count", value(7)))
	if err != nil || n != 7 {
		t.Fatalf("expected 7, got (%v, %v)", n, err)
	}

	s, err := Run[string](context.Background(), e, Op("nothing", value(nil)))
	if err != nil || s != "" {
		t.Fatalf("expected zero value for nil result, got (%q, %v)", s, err)
	}

	_, err = Run[int](context.Background(), e, Op("name", value("alice")))
	if err == nil || !strings.Contains(err.Error(), "returned string, want int") {
		t.Fatalf("expected type mismatch error, got %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	e := New(DefaultConfig(), WithLogger(logger.Nop()))

	if _, err := e.Execute(context.Background(), Op("x", value(1))); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if e.State() != StateStarting {
		t.Errorf("expected starting state, got %s", e.State())
	}
}

func TestInitializeIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if e.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", e.State())
	}
}

func TestInitializeInvalidConfig(t *testing.T) {
	e := New(Config{MaxConcurrent: -1}, WithLogger(logger.Nop()))

	err := e.Initialize(context.Background())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if e.State() != StateFailing {
		t.Errorf("expected failing state, got %s", e.State())
	}
	if _, err := e.Execute(context.Background(), Op("x", value(1))); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected calls to be refused, got %v", err)
	}
}

func TestInitializeCanceledContext(t *testing.T) {
	e := New(DefaultConfig(), WithLogger(logger.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Initialize(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestShutdown(t *testing.T) {
	e := newTestEngine(t, nil)

	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if e.State() != StateShutdown {
		t.Errorf("expected shutdown state, got %s", e.State())
	}
	if _, err := e.Execute(context.Background(), Op("x", value(1))); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown, got %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("expected repeated Shutdown to be a no-op, got %v", err)
	}
	if err := e.Initialize(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected Initialize after Shutdown to fail, got %v", err)
	}
}

func TestShutdownDrainsInFlight(t *testing.T) {
	e := newTestEngine(t, nil)

	started := make(chan struct{})
	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := e.Execute(context.Background(), Op("finish", func(context.Context) (any, error) {
			close(started)
			time.Sleep(30 * time.Millisecond)
			return "finished", nil
		}))
		done <- outcome{v, err}
	}()
	<-started

	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case o := <-done:
		if o.err != nil || o.v != "finished" {
			t.Errorf("expected in-flight call to complete, got (%v, %v)", o.v, o.err)
		}
	default:
		t.Error("expected Shutdown to wait for the in-flight call")
	}
}

func TestShutdownCancelsAfterDeadline(t *testing.T) {
	e := newTestEngine(t, nil)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(context.Background(), Op("forever", func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}))
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected forced shutdown, got %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected the running call to be cancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("running call was not cancelled")
	}
}

func TestCoalescedExecutionSurvivesCallerCancel(t *testing.T) {
	e := newTestEngine(t, nil)

	release := make(chan struct{})
	var invocations atomic.Int32
	op := func() Operation {
		return Op("shared", func(ctx context.Context) (any, error) {
			invocations.Add(1)
			select {
			case <-release:
				return "shared-result", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := e.Execute(ctx, op())
		first <- err
	}()
	waitFor(t, func() bool { return invocations.Load() == 1 })

	second := make(chan any, 1)
	go func() {
		v, _ := e.Execute(context.Background(), op())
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first caller to be cancelled, got %v", err)
	}
	close(release)

	select {
	case v := <-second:
		if v != "shared-result" {
			t.Errorf("expected the attached caller to get the result, got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("attached caller never returned")
	}
	if n := invocations.Load(); n != 1 {
		t.Errorf("expected 1 invocation, got %d", n)
	}
}

func TestMetadataAndTaskContext(t *testing.T) {
	e := newTestEngine(t, nil)

	tc := NewTaskContext(TaskIOBound)
	tc.Metadata = map[string]string{"request_id": "r-1"}
	_, err := e.Execute(context.Background(), Op("lookup", value(1)),
		WithTaskContext(tc), WithMetadata("tenant", "acme"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tc.Metadata["tenant"]; ok {
		t.Error("call options must not mutate the caller's metadata map")
	}
}

func TestStatsLatencyAndTimeouts(t *testing.T) {
	e := newTestEngine(t, nil)

	for i := range 5 {
		_, _ = e.Execute(context.Background(), Op("fetch_profile", func(context.Context) (any, error) {
			time.Sleep(time.Millisecond)
			return nil, nil
		}, i))
	}
	_, _ = e.Execute(context.Background(), Op("fetch_profile", failing(fmt.Errorf("404")), "missing"))

	s := e.Stats()
	if s.AvgLatency <= 0 || s.P95Latency < s.AvgLatency/2 {
		t.Errorf("expected latency summary, got avg=%s p95=%s", s.AvgLatency, s.P95Latency)
	}
	if s.ErrorRate < 0.16 || s.ErrorRate > 0.17 {
		t.Errorf("expected error rate 1/6, got %f", s.ErrorRate)
	}
	if _, ok := s.Timeouts["fetch_profile"]; !ok {
		t.Errorf("expected a timeout entry for fetch_profile, got %v", s.Timeouts)
	}
	if len(s.Breakers) != 1 || s.Breakers[0].Name != "fetch_profile" {
		t.Errorf("expected one breaker snapshot, got %+v", s.Breakers)
	}
}

func TestAdaptiveTimeoutFallsBackToCategoryBase(t *testing.T) {
	e := newTestEngine(t, nil)

	o := newCallOptions([]CallOption{WithoutAdaptiveTimeout()})
	if got, want := e.timeoutFor("query_orders", o), e.timeouts.Base("query_orders"); got != want {
		t.Errorf("expected base timeout %s, got %s", want, got)
	}

	o = newCallOptions([]CallOption{WithTimeout(time.Second)})
	if got := e.timeoutFor("query_orders", o); got != time.Second {
		t.Errorf("expected explicit timeout, got %s", got)
	}
}
