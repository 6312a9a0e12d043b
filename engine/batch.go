package engine

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
)

// BatchItem is one entry of ExecuteBatch.
type BatchItem struct {
	Op       Operation
	Type     TaskType
	Priority int
	Options  []CallOption
}

// BatchResult holds the outcome of the BatchItem at the same index.
type BatchResult struct {
	Value any
	Err   error
}

// ExecuteBatch runs items grouped by task type. Within a group, items run
// in priority order in sub-batches sized for the group's dominant task type
// and the current load; the items of a sub-batch run concurrently. A failed
// item never aborts the batch: results[i] always describes items[i].
func (e *Engine) ExecuteBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))
	if len(items) == 0 {
		return results
	}

	if err := e.ready(); err != nil {
		for i := range results {
			results[i].Err = err
		}
		return results
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanBatch)
	defer span.End()

	size := e.batchSize(items)
	groups := groupByType(items)
	observability.SetSpanAttribute(ctx, "batch.size", len(items))
	observability.SetSpanAttribute(ctx, "batch.chunk_size", size)

	e.log.Debug("executing batch", logger.Fields(
		"items", len(items),
		"groups", len(groups),
		"chunk_size", size,
	))

	for _, group := range groups {
		for chunk := range slices.Chunk(group, size) {
			var wg sync.WaitGroup
			for _, idx := range chunk {
				wg.Go(func() {
					results[idx] = e.executeItem(ctx, items[idx])
				})
			}
			wg.Wait()
		}
	}
	return results
}

func (e *Engine) executeItem(ctx context.Context, item BatchItem) BatchResult {
	if item.Op == nil {
		return BatchResult{Err: ErrNilOperation}
	}
	opts := make([]CallOption, 0, len(item.Options)+2)
	opts = append(opts, WithTaskType(itemType(item)), WithPriority(item.Priority))
	opts = append(opts, item.Options...)

	v, err := e.Execute(ctx, item.Op, opts...)
	return BatchResult{Value: v, Err: err}
}

// batchSize is the dominant task type's size scaled down by governor
// utilization, never below 1.
func (e *Engine) batchSize(items []BatchItem) int {
	var order []TaskType
	counts := make(map[TaskType]int)
	for _, it := range items {
		t := itemType(it)
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}
	dominant := order[0]
	for _, t := range order[1:] {
		if counts[t] > counts[dominant] {
			dominant = t
		}
	}

	base, ok := e.cfg.BatchSizes[dominant]
	if !ok || base <= 0 {
		base = e.cfg.BatchSizes[TaskMixed]
	}
	size := int(float64(base) * (1 - 0.5*e.governor.Utilization()))
	return max(size, 1)
}

// groupByType returns item indexes grouped by task type in order of first
// appearance, each group stably sorted by descending priority.
func groupByType(items []BatchItem) [][]int {
	var order []TaskType
	byType := make(map[TaskType][]int)
	for i, it := range items {
		t := itemType(it)
		if _, ok := byType[t]; !ok {
			order = append(order, t)
		}
		byType[t] = append(byType[t], i)
	}

	groups := make([][]int, 0, len(order))
	for _, t := range order {
		g := byType[t]
		slices.SortStableFunc(g, func(a, b int) int {
			return cmp.Compare(items[b].Priority, items[a].Priority)
		})
		groups = append(groups, g)
	}
	return groups
}

func itemType(it BatchItem) TaskType {
	if it.Type == "" {
		return TaskMixed
	}
	return it.Type
}
