package engine

import (
	"time"

	"github.com/kbukum/execkit/resilience"
)

// Stats is a point-in-time view of an Engine.
type Stats struct {
	State          State                        `json:"state" yaml:"state"`
	TotalRequests  int64                        `json:"total_requests" yaml:"total_requests"`
	SuccessCount   int64                        `json:"success_count" yaml:"success_count"`
	FailureCount   int64                        `json:"failure_count" yaml:"failure_count"`
	CoalescedCount int64                        `json:"coalesced_count" yaml:"coalesced_count"`
	RejectedCount  int64                        `json:"rejected_count" yaml:"rejected_count"`
	TimeoutCount   int64                        `json:"timeout_count" yaml:"timeout_count"`
	InFlight       int                          `json:"in_flight" yaml:"in_flight"`
	AvailableSlots int                          `json:"available_slots" yaml:"available_slots"`
	MaxConcurrent  int                          `json:"max_concurrent" yaml:"max_concurrent"`
	AvgLatency     time.Duration                `json:"avg_latency" yaml:"avg_latency"`
	P95Latency     time.Duration                `json:"p95_latency" yaml:"p95_latency"`
	ErrorRate      float64                      `json:"error_rate" yaml:"error_rate"`
	Breakers       []resilience.BreakerSnapshot `json:"breakers" yaml:"breakers"`
	Timeouts       map[string]time.Duration     `json:"timeouts" yaml:"timeouts"`
}

// Stats returns the engine's counters, latency summary over the last
// invocations and per-operation breaker states and current timeouts.
// ErrorRate is cumulative since construction.
func (e *Engine) Stats() Stats {
	s := Stats{
		State:          e.State(),
		TotalRequests:  e.total.Load(),
		SuccessCount:   e.succeeded.Load(),
		FailureCount:   e.failed.Load(),
		CoalescedCount: e.coalesced.Load(),
		RejectedCount:  e.rejected.Load(),
		TimeoutCount:   e.timedOut.Load(),
		InFlight:       e.governor.InUse(),
		AvailableSlots: e.governor.Available(),
		MaxConcurrent:  e.governor.MaxConcurrent(),
		AvgLatency:     e.latency.Mean(),
		P95Latency:     e.latency.Percentile(0.95),
		Breakers:       e.breakers.Snapshot(),
		Timeouts:       e.timeouts.Snapshot(),
	}
	if s.TotalRequests > 0 {
		s.ErrorRate = float64(s.FailureCount) / float64(s.TotalRequests)
	}
	return s
}
