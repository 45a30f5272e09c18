// Package work provides the bounded fan-out and retry primitives shared by
// the classification and extraction stages.
package work

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result carries one item's outcome, slotted by input index so completion
// order can never reorder or corrupt downstream merging.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Map runs fn over items with at most workers concurrent invocations and
// returns one Result per item, in input order. Item errors are captured in
// their slot, not propagated: one item's failure must not abort its siblings.
// Cancellation of ctx stops scheduling; unscheduled items report ctx.Err().
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, index int, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i := range items {
		i := i
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			v, err := fn(gctx, i, items[i])
			results[i].Value = v
			results[i].Err = err
			return nil
		})
	}

	// Workers never return errors, so Wait only blocks until completion.
	_ = eg.Wait()
	return results
}
