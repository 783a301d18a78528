package synchrony

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/tphakala/go-synchrony/internal/recurrence"
)

// Threshold returns E(k,n): the largest distance threshold on the search
// grid for which fewer than PRef of the neighbours of position n in
// channel k are closer than the threshold. The result is cached for the
// lifetime of the run. An exhausted search returns NaN and a *SearchError,
// and stays poisoned for every later lookup.
func (e *Engine) Threshold(ctx context.Context, k, n int) (float64, error) {
	if err := e.checkChannel(k); err != nil {
		return 0, err
	}
	if err := e.checkPosition(n); err != nil {
		return 0, err
	}
	tables, _ := e.state()
	s, err := e.set(ctx, tables[k], k, n)
	if err != nil {
		return 0, err
	}
	if s.err != nil {
		return math.NaN(), s.err
	}
	return s.threshold, nil
}

// set returns the cached recurrence set for (k, n), scanning the window on
// a miss. A cancelled context aborts before the scan and nothing is cached.
func (e *Engine) set(ctx context.Context, table *thresholdTable, k, n int) (*recurrenceSet, error) {
	if s, ok := table.get(n); ok {
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return table.put(n, e.scan(k, n)), nil
}

// scan computes the distances from the embedding vector at n to every
// neighbour, solves for the threshold and records which neighbours recur.
func (e *Engine) scan(k, n int) *recurrenceSet {
	buf := e.scratch.get()
	defer e.scratch.put(buf)

	for j := range buf.dist {
		buf.dist[j] = e.space.Distance(buf.diff, k, n, e.nb.Neighbor(n, j))
	}

	res, err := e.crit.Solve(buf.dist)
	if err != nil {
		return &recurrenceSet{
			threshold: math.NaN(),
			err: &SearchError{
				Channel:  k,
				Position: n,
				MaxSteps: e.crit.MaxSteps,
				Err:      err,
			},
		}
	}

	return &recurrenceSet{
		threshold: res.Threshold,
		steps:     res.Steps,
		mask:      recurrence.Build(buf.dist, res.Threshold),
	}
}

// column returns the recurrence sets of every channel at position n.
func (e *Engine) column(ctx context.Context, tables []*thresholdTable, n int) ([]*recurrenceSet, error) {
	col := make([]*recurrenceSet, len(tables))
	for k, t := range tables {
		s, err := e.set(ctx, t, k, n)
		if err != nil {
			return nil, err
		}
		col[k] = s
	}
	return col, nil
}

// fillTables computes the recurrence sets of every channel at every
// aggregation position. Channels are independent and are handed to
// separate workers; each worker owns its output row until the barrier at
// the end of the phase.
func (e *Engine) fillTables(ctx context.Context) ([][]*recurrenceSet, error) {
	tables, _ := e.state()
	channels := len(tables)
	out := make([][]*recurrenceSet, channels)

	var done atomic.Int64
	err := e.forEach(ctx, channels, func(ctx context.Context, k int) error {
		sets := make([]*recurrenceSet, len(e.positions))
		for i, n := range e.positions {
			s, err := e.set(ctx, tables[k], k, n)
			if err != nil {
				return err
			}
			sets[i] = s
		}
		out[k] = sets
		e.progress(StageThresholds, int(done.Add(1)), channels)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// poisoned joins the search errors of any poisoned sets, or returns nil.
func poisoned(sets ...*recurrenceSet) error {
	var errs []error
	for _, s := range sets {
		if s.err != nil {
			errs = append(errs, s.err)
		}
	}
	return errors.Join(errs...)
}

// causes lists every poisoned set of a filled table in channel, position order.
func causes(sets [][]*recurrenceSet) []*SearchError {
	var out []*SearchError
	for _, row := range sets {
		for _, s := range row {
			if s.err != nil {
				out = append(out, s.err)
			}
		}
	}
	return out
}
