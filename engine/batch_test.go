package engine

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/execkit/logger"
)

func TestExecuteBatchPreservesOrder(t *testing.T) {
	e := newTestEngine(t, nil)
	errB := errors.New("B failed")

	results := e.ExecuteBatch(context.Background(), []BatchItem{
		{Op: Op("a", value("A"))},
		{Op: Op("b", failing(errB))},
		{Op: Op("c", value("C"))},
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Value != "A" || results[0].Err != nil {
		t.Errorf("item 0: got %+v", results[0])
	}
	if !errors.Is(results[1].Err, errB) {
		t.Errorf("item 1: expected B's error, got %+v", results[1])
	}
	if results[2].Value != "C" || results[2].Err != nil {
		t.Errorf("item 2: got %+v", results[2])
	}
}

func TestExecuteBatchEmpty(t *testing.T) {
	e := newTestEngine(t, nil)
	if got := e.ExecuteBatch(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestExecuteBatchNotReady(t *testing.T) {
	e := New(DefaultConfig(), WithLogger(logger.Nop()))

	results := e.ExecuteBatch(context.Background(), []BatchItem{
		{Op: Op("a", value(1))},
		{Op: Op("b", value(2))},
	})
	for i, r := range results {
		if !errors.Is(r.Err, ErrNotInitialized) {
			t.Errorf("item %d: expected ErrNotInitialized, got %v", i, r.Err)
		}
	}
}

func TestExecuteBatchNilOperation(t *testing.T) {
	e := newTestEngine(t, nil)

	results := e.ExecuteBatch(context.Background(), []BatchItem{
		{Op: Op("a", value(1))},
		{Op: nil},
	})
	if results[0].Err != nil || results[0].Value != 1 {
		t.Errorf("item 0: got %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrNilOperation) {
		t.Errorf("item 1: expected ErrNilOperation, got %v", results[1].Err)
	}
}

func TestExecuteBatchAppliesTaskType(t *testing.T) {
	e := newTestEngine(t, nil)

	var mu sync.Mutex
	seen := make(map[string]TaskType)
	record := func(name string) Operation {
		return Op(name, func(ctx context.Context) (any, error) { return nil, nil })
	}
	// The task type reaches the call options; check through a custom option.
	capture := func(name string) CallOption {
		return func(o *callOptions) {
			mu.Lock()
			seen[name] = o.task.Type
			mu.Unlock()
		}
	}

	e.ExecuteBatch(context.Background(), []BatchItem{
		{Op: record("cpu"), Type: TaskCPUBound, Options: []CallOption{capture("cpu")}},
		{Op: record("untyped"), Options: []CallOption{capture("untyped")}},
	})

	if seen["cpu"] != TaskCPUBound {
		t.Errorf("expected cpu_bound, got %q", seen["cpu"])
	}
	if seen["untyped"] != TaskMixed {
		t.Errorf("expected untyped items to default to mixed, got %q", seen["untyped"])
	}
}

func TestExecuteBatchChunksRunSequentially(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.BatchSizes = map[TaskType]int{TaskCPUBound: 2}
	})

	var running, peak atomic.Int32
	work := func(ctx context.Context) (any, error) {
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
	}

	items := make([]BatchItem, 6)
	for i := range items {
		items[i] = BatchItem{Op: Op("crunch", work, i), Type: TaskCPUBound}
	}
	for i, r := range e.ExecuteBatch(context.Background(), items) {
		if r.Err != nil {
			t.Errorf("item %d: %v", i, r.Err)
		}
	}

	if p := peak.Load(); p > 2 {
		t.Errorf("expected at most one sub-batch of 2 at a time, saw %d concurrent", p)
	}
}

func TestBatchSize(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name  string
		types []TaskType
		want  int
	}{
		{"io dominant", []TaskType{TaskIOBound, TaskIOBound, TaskCPUBound}, 50},
		{"cpu dominant", []TaskType{TaskCPUBound, TaskCPUBound, TaskIOBound}, 10},
		{"tie picks first seen", []TaskType{TaskNetworkHeavy, TaskMemoryBound}, 20},
		{"untyped is mixed", []TaskType{""}, 25},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items := make([]BatchItem, len(tc.types))
			for i, typ := range tc.types {
				items[i] = BatchItem{Type: typ}
			}
			if got := e.batchSize(items); got != tc.want {
				t.Errorf("batchSize = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBatchSizeShrinksUnderLoad(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.MaxConcurrent = 4 })

	for range 4 {
		if err := e.governor.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire: %v", err)
		}
	}
	defer func() {
		for range 4 {
			e.governor.Release()
		}
	}()

	// Full utilization halves the io_bound size.
	if got := e.batchSize([]BatchItem{{Type: TaskIOBound}}); got != 25 {
		t.Errorf("expected 25 at full utilization, got %d", got)
	}
}

func TestBatchSizeNeverBelowOne(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.MaxConcurrent = 1
		c.BatchSizes = map[TaskType]int{TaskCPUBound: 1}
	})
	if err := e.governor.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer e.governor.Release()

	if got := e.batchSize([]BatchItem{{Type: TaskCPUBound}}); got != 1 {
		t.Errorf("expected minimum size 1, got %d", got)
	}
}

func TestGroupByTypeExtremePriorities(t *testing.T) {
	items := []BatchItem{
		{Priority: math.MinInt}, // 0
		{Priority: math.MaxInt}, // 1
		{Priority: 0},           // 2
		{Priority: math.MinInt}, // 3
	}

	groups := groupByType(items)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %v", groups)
	}
	if want := []int{1, 2, 0, 3}; !slices.Equal(groups[0], want) {
		t.Errorf("got %v, want %v", groups[0], want)
	}
}

func TestGroupByType(t *testing.T) {
	items := []BatchItem{
		{Type: TaskIOBound, Priority: 1},  // 0
		{Type: TaskCPUBound, Priority: 0}, // 1
		{Type: TaskIOBound, Priority: 5},  // 2
		{Type: TaskCPUBound, Priority: 3}, // 3
		{Type: TaskIOBound, Priority: 1},  // 4
		{Priority: 9},                     // 5
	}

	groups := groupByType(items)
	want := [][]int{
		{2, 0, 4},
		{3, 1},
		{5},
	}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %v", len(want), groups)
	}
	for i := range want {
		if !slices.Equal(groups[i], want[i]) {
			t.Errorf("group %d: got %v, want %v", i, groups[i], want[i])
		}
	}
}
