package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/execkit/logger"
)

// Func is a Component assembled from plain functions. Start runs at most
// once until Stop is called.
type Func struct {
	name        string
	mu          sync.RWMutex
	started     bool
	lastError   error
	start       func(ctx context.Context) error
	stop        func(ctx context.Context) error
	healthCheck func(ctx context.Context) error
}

var _ Component = (*Func)(nil)

// NewFunc creates a component that runs start when the registry starts it.
func NewFunc(name string, start func(context.Context) error) *Func {
	return &Func{name: name, start: start}
}

// Name returns the component name.
func (f *Func) Name() string {
	return f.name
}

// Start runs the start function using double-check locking.
func (f *Func) Start(ctx context.Context) error {
	f.mu.RLock()
	if f.started {
		f.mu.RUnlock()
		return nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return nil
	}
	if f.start == nil {
		return fmt.Errorf("no start function for component: %s", f.name)
	}

	if err := f.start(ctx); err != nil {
		f.lastError = err
		return fmt.Errorf("failed to start %s: %w", f.name, err)
	}

	f.started = true
	f.lastError = nil
	logger.Debug("Func component started", logger.Fields(logger.FieldComponent, f.name))
	return nil
}

// Started reports whether Start has succeeded since the last Stop.
func (f *Func) Started() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.started
}

// Stop runs the stop function, if any, and marks the component stopped.
func (f *Func) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		return nil
	}
	f.started = false
	if f.stop != nil {
		return f.stop(ctx)
	}
	return nil
}

// Health reports unhealthy until started, then defers to the health check.
func (f *Func) Health(ctx context.Context) Health {
	h := Health{Name: f.name, Status: StatusHealthy}

	f.mu.RLock()
	started, lastErr := f.started, f.lastError
	f.mu.RUnlock()

	switch {
	case lastErr != nil:
		h.Status = StatusUnhealthy
		h.Message = lastErr.Error()
	case !started:
		h.Status = StatusUnhealthy
		h.Message = "not started"
	case f.healthCheck != nil:
		if err := f.healthCheck(ctx); err != nil {
			h.Status = StatusUnhealthy
			h.Message = err.Error()
		}
	}
	return h
}

// WithStop sets the function run by Stop.
func (f *Func) WithStop(fn func(context.Context) error) *Func {
	f.stop = fn
	return f
}

// WithHealthCheck sets a custom health check function.
func (f *Func) WithHealthCheck(fn func(context.Context) error) *Func {
	f.healthCheck = fn
	return f
}
