package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescer_ExecutesOnceForConcurrentCallers(t *testing.T) {
	c := New(time.Second)

	var calls int32
	release := make(chan struct{})
	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "result", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	var attachedCount int32

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, attached, err := c.Do(context.Background(), "fetch:abc", fn)
			results[i], errs[i] = v, err
			if attached {
				atomic.AddInt32(&attachedCount, 1)
			}
		}(i)
	}

	// Let every caller register before the execution finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected 1 invocation, got %d", calls)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: unexpected error %v", i, errs[i])
		}
		if results[i] != "result" {
			t.Errorf("caller %d: expected 'result', got %v", i, results[i])
		}
	}
	if attachedCount != callers-1 {
		t.Errorf("expected %d attached callers, got %d", callers-1, attachedCount)
	}
}

func TestCoalescer_SharesError(t *testing.T) {
	c := New(time.Second)
	testErr := errors.New("upstream failed")

	var calls int32
	release := make(chan struct{})
	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, testErr
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.Do(context.Background(), "k", fn)
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected 1 invocation, got %d", calls)
	}
	for i, err := range errs {
		if !errors.Is(err, testErr) {
			t.Errorf("caller %d: expected shared error, got %v", i, err)
		}
	}
}

func TestCoalescer_RemovesEntryOnCompletion(t *testing.T) {
	c := New(time.Second)

	_, _, _ = c.Do(context.Background(), "ok", func() (any, error) { return 1, nil })
	_, _, _ = c.Do(context.Background(), "fail", func() (any, error) { return nil, errors.New("x") })

	if c.Len() != 0 {
		t.Errorf("expected no pending entries, got %d", c.Len())
	}

	// Sequential calls do not share.
	var calls int32
	for i := 0; i < 3; i++ {
		_, attached, _ := c.Do(context.Background(), "seq", func() (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		})
		if attached {
			t.Errorf("call %d: expected a fresh execution", i)
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 invocations, got %d", calls)
	}
}

func TestCoalescer_ExpiredEntryStartsNewExecution(t *testing.T) {
	c := New(20 * time.Millisecond)

	var calls int32
	release := make(chan struct{})
	slow := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}

	done := make(chan struct{})
	go func() {
		_, _, _ = c.Do(context.Background(), "k", slow)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)

	second := make(chan struct{})
	go func() {
		_, attached, _ := c.Do(context.Background(), "k", slow)
		if attached {
			t.Error("expected a caller after the TTL to start a new execution")
		}
		close(second)
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	<-done
	<-second

	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
}

func TestCoalescer_CallerCancellationDoesNotAffectOthers(t *testing.T) {
	c := New(time.Second)

	release := make(chan struct{})
	fn := func() (any, error) {
		<-release
		return "shared", nil
	}

	other := make(chan any, 1)
	go func() {
		v, _, _ := c.Do(context.Background(), "k", fn)
		other <- v
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, _, err := c.Do(ctx, "k", fn)
		cancelled <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-cancelled:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case v := <-other:
		if v != "shared" {
			t.Errorf("expected 'shared', got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining caller did not receive the result")
	}
}

func TestCoalescer_Sweep(t *testing.T) {
	c := New(10 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _, _ = c.Do(context.Background(), "stuck", func() (any, error) {
			<-release
			return nil, nil
		})
	}()

	time.Sleep(5 * time.Millisecond)
	if c.Len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", c.Len())
	}

	time.Sleep(20 * time.Millisecond)
	if n := c.Sweep(); n != 1 {
		t.Errorf("expected 1 swept entry, got %d", n)
	}
	if c.Len() != 0 {
		t.Errorf("expected no pending entries, got %d", c.Len())
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.TTL != DefaultTTL {
		t.Errorf("expected %s, got %s", DefaultTTL, cfg.TTL)
	}
}
