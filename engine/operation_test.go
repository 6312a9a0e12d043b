package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/execkit/timeout"
)

func TestOperationKey(t *testing.T) {
	noArgs := Op("list_users", value(nil))
	if got := OperationKey(noArgs); got != "list_users" {
		t.Errorf("expected bare name without args, got %q", got)
	}

	a := OperationKey(Op("fetch_user", value(nil), 42))
	b := OperationKey(Op("fetch_user", value(nil), 42))
	c := OperationKey(Op("fetch_user", value(nil), 43))
	if a != b {
		t.Errorf("expected equal keys for equal args, got %q and %q", a, b)
	}
	if a == c {
		t.Errorf("expected different keys for different args, both %q", a)
	}
	if a[:len("fetch_user:")] != "fetch_user:" {
		t.Errorf("expected key prefixed by name, got %q", a)
	}
}

type namedOp struct{ name string }

func (o namedOp) Name() string                          { return o.name }
func (o namedOp) Invoke(context.Context) (any, error) { return nil, nil }

func TestOperationKeyWithoutArguments(t *testing.T) {
	if got := OperationKey(namedOp{name: "plain"}); got != "plain" {
		t.Errorf("expected name for operations without Arguments, got %q", got)
	}
}

func TestFingerprint(t *testing.T) {
	type filter struct {
		Status string
		Limit  int
	}

	if Fingerprint(1, "a") == Fingerprint("a", 1) {
		t.Error("expected argument order to matter")
	}
	if Fingerprint(filter{"open", 10}) != Fingerprint(filter{"open", 10}) {
		t.Error("expected equal structs to fingerprint equally")
	}
	if Fingerprint(map[string]int{"a": 1, "b": 2}) != Fingerprint(map[string]int{"b": 2, "a": 1}) {
		t.Error("expected map fingerprints to ignore insertion order")
	}
	// Channels cannot be JSON encoded and fall back to %#v.
	if Fingerprint(make(chan int)) == "" {
		t.Error("expected a fingerprint for non-JSON values")
	}
}

func TestFuncOpCategory(t *testing.T) {
	e := newTestEngine(t, nil)

	op := Op("crunch", value(nil)).WithCategory(timeout.CategoryCache)
	if _, err := e.Execute(context.Background(), op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.timeouts.Category("crunch"); got != timeout.CategoryCache {
		t.Errorf("expected declared category cache, got %s", got)
	}

	if _, err := e.Execute(context.Background(), Op("query_orders", value(nil))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.timeouts.Category("query_orders"); got != timeout.CategoryDatabase {
		t.Errorf("expected inferred category database, got %s", got)
	}
}

func TestNewCallOptionsDefaults(t *testing.T) {
	o := newCallOptions(nil)
	if o.task.ID == "" {
		t.Error("expected a generated task ID")
	}
	if o.task.Type != TaskMixed {
		t.Errorf("expected mixed task type, got %s", o.task.Type)
	}
	if !o.breaker || !o.coalesce || !o.adaptive {
		t.Errorf("expected every pipeline stage enabled, got %+v", o)
	}
}

func TestCallOptions(t *testing.T) {
	o := newCallOptions([]CallOption{
		WithTaskType(TaskNetworkHeavy),
		WithTimeout(2 * time.Second),
		WithPriority(7),
		WithRetries(2),
		WithMetadata("tenant", "acme"),
		WithoutCircuitBreaker(),
		WithoutCoalescing(),
		WithoutAdaptiveTimeout(),
	})
	if o.task.Type != TaskNetworkHeavy || o.task.Timeout != 2*time.Second ||
		o.task.Priority != 7 || o.task.Retries != 2 {
		t.Errorf("unexpected task context %+v", o.task)
	}
	if o.task.Metadata["tenant"] != "acme" {
		t.Errorf("expected metadata, got %v", o.task.Metadata)
	}
	if o.breaker || o.coalesce || o.adaptive {
		t.Errorf("expected stages disabled, got %+v", o)
	}
}

func TestWithTaskContextKeepsID(t *testing.T) {
	tc := TaskContext{ID: "job-1", Type: TaskIOBound}
	o := newCallOptions([]CallOption{WithTaskContext(tc)})
	if o.task.ID != "job-1" || o.task.Type != TaskIOBound {
		t.Errorf("expected task context to be used as is, got %+v", o.task)
	}

	o = newCallOptions([]CallOption{WithTaskContext(TaskContext{})})
	if o.task.ID == "" || o.task.Type != TaskMixed {
		t.Errorf("expected missing fields filled in, got %+v", o.task)
	}
}

func TestNewTaskContext(t *testing.T) {
	a, b := NewTaskContext(TaskCPUBound), NewTaskContext(TaskCPUBound)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique IDs, got %q and %q", a.ID, b.ID)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.MaxConcurrent != 100 {
		t.Errorf("expected max_concurrent 100, got %d", c.MaxConcurrent)
	}
	if c.Breaker.FailureThreshold != 5 || c.Breaker.RecoveryTimeout != 60*time.Second {
		t.Errorf("unexpected breaker defaults %+v", c.Breaker)
	}
	if c.Health.FailingErrorRate != 0.5 || c.Health.DegradedErrorRate != 0.25 {
		t.Errorf("unexpected health thresholds %+v", c.Health)
	}
	if c.BatchSizes[TaskIOBound] != 50 || c.BatchSizes[TaskCPUBound] != 10 {
		t.Errorf("unexpected batch sizes %v", c.BatchSizes)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestConfigBatchSizeOverride(t *testing.T) {
	c := Config{BatchSizes: map[TaskType]int{TaskIOBound: 8}}
	c.ApplyDefaults()
	if c.BatchSizes[TaskIOBound] != 8 || c.BatchSizes[TaskMixed] != 25 {
		t.Errorf("expected override merged into defaults, got %v", c.BatchSizes)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max concurrent", func(c *Config) { c.MaxConcurrent = -1 }},
		{"degraded above failing", func(c *Config) { c.Health.DegradedErrorRate = 0.9 }},
		{"error rate above one", func(c *Config) { c.Health.FailingErrorRate = 1.5 }},
		{"unknown batch type", func(c *Config) { c.BatchSizes["gpu_bound"] = 4 }},
		{"negative admission rate", func(c *Config) { c.Admission.Rate = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
