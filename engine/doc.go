// Package engine runs operations through a fixed pipeline: identical
// concurrent calls are coalesced into one execution, a global governor
// bounds parallelism, a per-operation circuit breaker fails fast while an
// operation is failing, and each invocation is bounded by an adaptive
// timeout learned from its recent latency.
//
// Operations are values implementing Operation; Op adapts a function.
// Arguments passed to Op are part of the operation key, so calls coalesce
// only when name and arguments match:
//
//	op := engine.Op("fetch_user", func(ctx context.Context) (any, error) {
//	    return users.Get(ctx, id)
//	}, id)
//	v, err := eng.Execute(ctx, op, engine.WithTaskType(engine.TaskIOBound))
//
// A background monitor reclassifies the engine as healthy, degraded,
// overloaded or failing from the windowed error rate and free slots, and
// purges bookkeeping for idle operations.
package engine
