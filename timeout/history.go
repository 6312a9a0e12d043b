package timeout

import (
	"math"
	"slices"
	"sync"
	"time"
)

// DefaultHistorySize is the number of samples kept per operation.
const DefaultHistorySize = 100

// History is a bounded FIFO of latency samples. When full, each new
// sample overwrites the oldest one.
type History struct {
	mu       sync.Mutex
	samples  []time.Duration
	next     int
	full     bool
	lastSeen time.Time
}

// NewHistory creates a History holding at most size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{samples: make([]time.Duration, size)}
}

// Add appends a sample, evicting the oldest when the buffer is full.
func (h *History) Add(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = d
	h.next = (h.next + 1) % len(h.samples)
	if h.next == 0 {
		h.full = true
	}
	h.lastSeen = time.Now()
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lenLocked()
}

// Cap returns the maximum number of samples.
func (h *History) Cap() int {
	return len(h.samples)
}

// Values returns the samples oldest first.
func (h *History) Values() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		return slices.Clone(h.samples[:h.next])
	}
	out := make([]time.Duration, 0, len(h.samples))
	out = append(out, h.samples[h.next:]...)
	return append(out, h.samples[:h.next]...)
}

// Percentile returns the nearest-rank p-th percentile (p in (0, 1]) of the
// held samples, or 0 when empty.
func (h *History) Percentile(p float64) time.Duration {
	return Percentile(h.Values(), p)
}

// Mean returns the average sample, or 0 when empty.
func (h *History) Mean() time.Duration {
	values := h.Values()
	if len(values) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range values {
		sum += v
	}
	return sum / time.Duration(len(values))
}

// LastSeen returns when the last sample was added.
func (h *History) LastSeen() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeen
}

func (h *History) lenLocked() int {
	if h.full {
		return len(h.samples)
	}
	return h.next
}

// Percentile returns the nearest-rank p-th percentile of values. values is
// not modified.
func Percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
