package engine

import (
	"time"

	"github.com/kbukum/execkit/logger"
)

func (e *Engine) monitor() {
	defer e.loops.Done()

	ticker := time.NewTicker(e.cfg.Health.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopLoops:
			return
		case <-ticker.C:
			e.evaluate()
			e.janitor()
		}
	}
}

// evaluate derives the engine state from the error rate since the previous
// evaluation and the governor's free slots.
func (e *Engine) evaluate() State {
	e.windowMu.Lock()
	total, failed := e.total.Load(), e.failed.Load()
	dt, df := total-e.lastTotal, failed-e.lastFailed
	e.lastTotal, e.lastFailed = total, failed
	e.windowMu.Unlock()

	var rate float64
	if dt > 0 {
		rate = float64(df) / float64(dt)
	}

	lowSlots := min(e.cfg.Health.LowSlots, e.cfg.MaxConcurrent)
	next := classify(rate, e.governor.Available(), lowSlots, e.cfg.Health)
	e.setState(next)
	return next
}

// classify applies the health rules in order: failing, overloaded, degraded.
// Overloaded (no free slots) extends the error-rate and low-slot rules and is
// checked before degraded, which would otherwise also match a full engine.
func classify(errorRate float64, available, lowSlots int, cfg HealthConfig) State {
	switch {
	case errorRate > cfg.FailingErrorRate:
		return StateFailing
	case available == 0:
		return StateOverloaded
	case errorRate > cfg.DegradedErrorRate, available < lowSlots:
		return StateDegraded
	default:
		return StateHealthy
	}
}

// janitor drops bookkeeping for operations with no recent activity.
func (e *Engine) janitor() {
	idle := e.cfg.Health.IdleTTL
	swept := e.coalescer.Sweep()
	histories := e.timeouts.Purge(idle)
	breakers := e.breakers.PurgeIdle(idle)

	if swept+histories+breakers > 0 {
		e.log.Debug("purged idle entries", logger.Fields(
			"pending", swept,
			"histories", histories,
			"breakers", breakers,
		))
	}
}
