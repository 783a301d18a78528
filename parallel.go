package synchrony

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach calls fn for every index in [0, count). With more than one worker
// the calls run concurrently, bounded by the configured worker count; the
// first error cancels the context passed to the remaining calls.
func (e *Engine) forEach(ctx context.Context, count int, fn func(ctx context.Context, i int) error) error {
	workers := min(e.cfg.workers(), count)

	// Sequential processing
	if workers <= 1 {
		for i := range count {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	// Parallel processing
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range count {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// chunk returns the half-open bounds of part i when n items are split into
// parts contiguous chunks of near-equal size.
func chunk(n, parts, i int) (lo, hi int) {
	size, rem := n/parts, n%parts
	lo = i*size + min(i, rem)
	hi = lo + size
	if i < rem {
		hi++
	}
	return lo, hi
}
