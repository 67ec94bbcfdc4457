package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// taskResult pairs one task's value with its error so a single failed task
// never hides the others.
type taskResult[R any] struct {
	value R
	err   error
}

// collectAll runs one task per item concurrently, at most limit at a time,
// and returns a result slice indexable by original position: results[i]
// belongs to items[i] no matter which task finished first. Every task
// resolves; there are no partial result sets. Tasks must not share mutable
// state beyond read-only config.
func collectAll[T, R any](ctx context.Context, items []T, limit int, task func(ctx context.Context, index int, item T) (R, error)) []taskResult[R] {
	results := make([]taskResult[R], len(items))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			// Each goroutine owns exactly one slot; no lock needed.
			v, err := task(ctx, i, item)
			results[i] = taskResult[R]{value: v, err: err}
			return nil
		})
	}
	// Tasks always return nil, so Wait only synchronizes.
	_ = g.Wait()

	return results
}
