// Package timeout derives per-operation timeouts from observed latency.
//
// Until an operation has MinSamples recorded durations its timeout is the
// base timeout of its category. After that it is the p95 of the recent
// history times a safety margin, clamped to [0.5×base, 3×base].
package timeout

import (
	"sync"
	"time"
)

// Config configures a Manager.
type Config struct {
	// BaseTimeouts overrides the base timeout of individual categories.
	BaseTimeouts map[Category]time.Duration `yaml:"base_timeouts" mapstructure:"base_timeouts"`
	// HistorySize is the number of samples kept per operation.
	HistorySize int `yaml:"history_size" mapstructure:"history_size" validate:"gte=0"`
	// MinSamples is the number of samples needed before adapting.
	MinSamples int `yaml:"min_samples" mapstructure:"min_samples" validate:"gte=0"`
	// Percentile is the latency percentile the timeout follows.
	Percentile float64 `yaml:"percentile" mapstructure:"percentile" validate:"gte=0,lte=1"`
	// SafetyMargin multiplies the percentile latency.
	SafetyMargin float64 `yaml:"safety_margin" mapstructure:"safety_margin" validate:"gte=0"`
	// MinFactor and MaxFactor clamp the result relative to the base timeout.
	MinFactor float64 `yaml:"min_factor" mapstructure:"min_factor" validate:"gte=0"`
	MaxFactor float64 `yaml:"max_factor" mapstructure:"max_factor" validate:"gte=0"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	base := DefaultBaseTimeouts()
	for cat, d := range c.BaseTimeouts {
		if d > 0 {
			base[cat] = d
		}
	}
	c.BaseTimeouts = base

	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.Percentile <= 0 {
		c.Percentile = 0.95
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = 1.5
	}
	if c.MinFactor <= 0 {
		c.MinFactor = 0.5
	}
	if c.MaxFactor <= 0 {
		c.MaxFactor = 3
	}
}

// Manager keeps a latency history per operation name.
type Manager struct {
	cfg Config

	mu         sync.RWMutex
	histories  map[string]*History
	categories map[string]Category
}

// NewManager creates a Manager. Zero fields of cfg take their defaults.
func NewManager(cfg Config) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		cfg:        cfg,
		histories:  make(map[string]*History),
		categories: make(map[string]Category),
	}
}

// Declare pins the category of name instead of inferring it.
func (m *Manager) Declare(name string, c Category) {
	if c == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[name] = c
}

// Category returns the declared or inferred category of name.
func (m *Manager) Category(name string) Category {
	m.mu.RLock()
	c, ok := m.categories[name]
	m.mu.RUnlock()
	if ok {
		return c
	}
	return InferCategory(name)
}

// Base returns the base timeout of name's category.
func (m *Manager) Base(name string) time.Duration {
	if d, ok := m.cfg.BaseTimeouts[m.Category(name)]; ok {
		return d
	}
	return m.cfg.BaseTimeouts[CategoryDefault]
}

// Record appends a latency sample for name.
func (m *Manager) Record(name string, d time.Duration) {
	m.history(name).Add(d)
}

// Current returns the timeout to apply to the next call of name.
func (m *Manager) Current(name string) time.Duration {
	base := m.Base(name)

	m.mu.RLock()
	h, ok := m.histories[name]
	m.mu.RUnlock()
	if !ok {
		return base
	}

	values := h.Values()
	if len(values) < m.cfg.MinSamples {
		return base
	}

	adaptive := time.Duration(float64(Percentile(values, m.cfg.Percentile)) * m.cfg.SafetyMargin)
	lo := time.Duration(float64(base) * m.cfg.MinFactor)
	hi := time.Duration(float64(base) * m.cfg.MaxFactor)
	return max(lo, min(adaptive, hi))
}

// Samples returns the number of samples recorded for name.
func (m *Manager) Samples(name string) int {
	m.mu.RLock()
	h, ok := m.histories[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return h.Len()
}

// Snapshot returns the current timeout of every operation with history.
func (m *Manager) Snapshot() map[string]time.Duration {
	m.mu.RLock()
	names := make([]string, 0, len(m.histories))
	for name := range m.histories {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make(map[string]time.Duration, len(names))
	for _, name := range names {
		out[name] = m.Current(name)
	}
	return out
}

// Purge drops histories that have not received a sample for idle.
func (m *Manager) Purge(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for name, h := range m.histories {
		if h.LastSeen().Before(cutoff) {
			delete(m.histories, name)
			n++
		}
	}
	return n
}

// Len returns the number of operations with history.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.histories)
}

func (m *Manager) history(name string) *History {
	m.mu.RLock()
	h, ok := m.histories[name]
	m.mu.RUnlock()
	if ok {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.histories[name]; ok {
		return h
	}
	h = NewHistory(m.cfg.HistorySize)
	m.histories[name] = h
	return h
}
