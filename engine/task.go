package engine

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// TaskType is a coarse resource profile used to size batches.
type TaskType string

// Task types.
const (
	TaskCPUBound     TaskType = "cpu_bound"
	TaskIOBound      TaskType = "io_bound"
	TaskMemoryBound  TaskType = "memory_bound"
	TaskNetworkHeavy TaskType = "network_heavy"
	TaskMixed        TaskType = "mixed"
)

// DefaultBatchSizes returns the unscaled sub-batch size of each task type.
func DefaultBatchSizes() map[TaskType]int {
	return map[TaskType]int{
		TaskCPUBound:     10,
		TaskIOBound:      50,
		TaskNetworkHeavy: 20,
		TaskMemoryBound:  15,
		TaskMixed:        25,
	}
}

func taskTypeNames() []string {
	return []string{
		string(TaskCPUBound),
		string(TaskIOBound),
		string(TaskMemoryBound),
		string(TaskNetworkHeavy),
		string(TaskMixed),
	}
}

// TaskContext describes a single call.
type TaskContext struct {
	ID       string            `json:"id" yaml:"id"`
	Type     TaskType          `json:"type" yaml:"type"`
	Priority int               `json:"priority" yaml:"priority"`
	Timeout  time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries  int               `json:"retries,omitempty" yaml:"retries,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewTaskContext returns a TaskContext of type t with a fresh ID.
func NewTaskContext(t TaskType) TaskContext {
	return TaskContext{ID: uuid.NewString(), Type: t}
}

// CallOption adjusts a single Execute call.
type CallOption func(*callOptions)

type callOptions struct {
	task     TaskContext
	breaker  bool
	coalesce bool
	adaptive bool
}

func newCallOptions(opts []CallOption) callOptions {
	o := callOptions{
		task:     TaskContext{Type: TaskMixed},
		breaker:  true,
		coalesce: true,
		adaptive: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.task.ID == "" {
		o.task.ID = uuid.NewString()
	}
	if o.task.Type == "" {
		o.task.Type = TaskMixed
	}
	return o
}

// WithTaskContext replaces the call's TaskContext. A missing ID is filled in.
func WithTaskContext(tc TaskContext) CallOption {
	return func(o *callOptions) {
		tc.Metadata = maps.Clone(tc.Metadata)
		o.task = tc
	}
}

// WithTaskType sets the call's task type.
func WithTaskType(t TaskType) CallOption {
	return func(o *callOptions) { o.task.Type = t }
}

// WithTimeout sets an explicit timeout, bypassing the adaptive one.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.task.Timeout = d }
}

// WithPriority sets the call's priority. Higher runs first within a batch group.
func WithPriority(p int) CallOption {
	return func(o *callOptions) { o.task.Priority = p }
}

// WithRetries retries a failed call up to n more times.
func WithRetries(n int) CallOption {
	return func(o *callOptions) { o.task.Retries = n }
}

// WithMetadata attaches correlation data to the call.
func WithMetadata(key, value string) CallOption {
	return func(o *callOptions) {
		if o.task.Metadata == nil {
			o.task.Metadata = make(map[string]string)
		}
		o.task.Metadata[key] = value
	}
}

// WithoutCircuitBreaker skips the breaker for this call. Its outcome is not
// recorded into the breaker either.
func WithoutCircuitBreaker() CallOption {
	return func(o *callOptions) { o.breaker = false }
}

// WithoutCoalescing always starts a fresh execution for this call.
func WithoutCoalescing() CallOption {
	return func(o *callOptions) { o.coalesce = false }
}

// WithoutAdaptiveTimeout bounds the call by its category's base timeout
// instead of the adaptive one.
func WithoutAdaptiveTimeout() CallOption {
	return func(o *callOptions) { o.adaptive = false }
}
