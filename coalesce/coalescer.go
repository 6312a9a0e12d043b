// Package coalesce merges concurrent identical calls into one underlying
// execution. Callers that ask for a key while a call for it is pending
// attach to that call and receive its value or error.
package coalesce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a pending call accepts new callers.
const DefaultTTL = 5 * time.Second

// Config configures a Coalescer.
type Config struct {
	// TTL bounds how long a pending call accepts new callers. Once it has
	// passed, the next caller starts a fresh execution.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

type entry struct {
	created time.Time
}

// Coalescer deduplicates in-flight calls by key.
type Coalescer struct {
	group singleflight.Group
	ttl   time.Duration

	mu      sync.Mutex
	pending map[string]*entry
}

// New creates a Coalescer. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration) *Coalescer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Coalescer{
		ttl:     ttl,
		pending: make(map[string]*entry),
	}
}

// Do runs fn for key unless a call for key is already pending, in which
// case it waits for that call instead. attached reports whether this
// caller joined an existing call rather than starting one.
//
// fn runs on its own goroutine and is not bound to ctx: if ctx ends first
// the caller stops waiting and gets ctx.Err(), while the execution and
// any other attached callers carry on.
func (c *Coalescer) Do(ctx context.Context, key string, fn func() (any, error)) (val any, attached bool, err error) {
	c.Sweep()

	c.mu.Lock()
	e, attached := c.pending[key]
	if !attached {
		e = &entry{created: time.Now()}
		c.pending[key] = e
	}
	// DoChan only registers the call, fn runs on another goroutine.
	ch := c.group.DoChan(key, func() (any, error) {
		defer c.release(key, e)
		return fn()
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		c.release(key, e)
		return res.Val, attached, res.Err
	case <-ctx.Done():
		return nil, attached, ctx.Err()
	}
}

// Sweep drops pending entries older than the TTL so the next caller for
// their key starts a new execution. It returns the number dropped.
func (c *Coalescer) Sweep() int {
	cutoff := time.Now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.pending {
		if e.created.Before(cutoff) {
			delete(c.pending, key)
			c.group.Forget(key)
			n++
		}
	}
	return n
}

// Len returns the number of pending keys.
func (c *Coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// TTL returns the configured coalescing window.
func (c *Coalescer) TTL() time.Duration {
	return c.ttl
}

func (c *Coalescer) release(key string, e *entry) {
	c.mu.Lock()
	if c.pending[key] == e {
		delete(c.pending, key)
	}
	c.mu.Unlock()
}
