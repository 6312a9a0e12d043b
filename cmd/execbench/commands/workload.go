package commands

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/kbukum/execkit/engine"
)

var errSynthetic = errors.New("synthetic failure")

// Operation names are chosen so the timeout manager infers a different
// category for each.
var operationNames = []string{"fetch_item", "query_orders", "compute_score", "cache_lookup"}

var operationTypes = []engine.TaskType{
	engine.TaskNetworkHeavy,
	engine.TaskIOBound,
	engine.TaskCPUBound,
	engine.TaskMemoryBound,
}

// workload produces synthetic operations. Calls sharing a key are
// identical and coalesce while one is in flight.
type workload struct {
	latency     time.Duration
	jitter      time.Duration
	failureRate float64
	keys        int
}

func (w workload) key(i int) int {
	if w.keys <= 0 {
		return i
	}
	return i % w.keys
}

// op returns the i-th operation and its task type.
func (w workload) op(i int) (engine.Operation, engine.TaskType) {
	k := w.key(i)
	n := k % len(operationNames)
	return engine.Op(operationNames[n], w.work, k), operationTypes[n]
}

func (w workload) work(ctx context.Context) (any, error) {
	d := w.latency
	if w.jitter > 0 {
		d += rand.N(w.jitter)
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	if w.failureRate > 0 && rand.Float64() < w.failureRate {
		return nil, errSynthetic
	}
	return d.String(), nil
}
