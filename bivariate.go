package synchrony

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/mat"
)

// Bivariate returns BS(k,r,n): the number of neighbours m of n at which
// channel k recurs within E(k,n) and channel r recurs within E(r,n),
// scaled by 1/(2·PRef·(W2-W1)).
func (e *Engine) Bivariate(ctx context.Context, k, r, n int) (float64, error) {
	if err := e.checkCrossChannel(); err != nil {
		return 0, err
	}
	for _, ch := range []int{k, r} {
		if err := e.checkChannel(ch); err != nil {
			return 0, err
		}
	}
	if err := e.checkPosition(n); err != nil {
		return 0, err
	}

	tables, _ := e.state()
	sk, err := e.set(ctx, tables[k], k, n)
	if err != nil {
		return 0, err
	}
	sr, err := e.set(ctx, tables[r], r, n)
	if err != nil {
		return 0, err
	}
	if err := poisoned(sk, sr); err != nil {
		return math.NaN(), err
	}
	return e.win.Scale() * float64(sk.mask.AndCount(sr.mask)), nil
}

// PairwiseMatrix returns the M×M matrix BSL whose cell (k,r) is the mean of
// BS(k,r,n) over the subsampled positions. Every ordered pair is evaluated,
// including k == r.
//
// The run has two phases separated by a barrier: first the threshold table
// of each channel is filled (one worker per channel), then matrix rows are
// computed from the shared read-only tables (one worker per row). Cells
// that depend on an exhausted threshold search are NaN and listed in a
// *PoisonedError returned together with the matrix.
func (e *Engine) PairwiseMatrix(ctx context.Context) (*mat.Dense, error) {
	if err := e.checkCrossChannel(); err != nil {
		return nil, err
	}

	sets, err := e.fillTables(ctx)
	if err != nil {
		return nil, err
	}

	channels := len(sets)
	count := len(e.positions)
	norm := e.win.Scale() / float64(count)
	values := make([]float64, channels*channels)
	flagged := make([][]Cell, channels)

	var done atomic.Int64
	err = e.forEach(ctx, channels, func(ctx context.Context, k int) error {
		totals := make([]float64, channels)
		for r := range channels {
			if err := ctx.Err(); err != nil {
				return err
			}
			total, ok := pairCount(sets[k], sets[r])
			if !ok {
				totals[r] = math.NaN()
				flagged[k] = append(flagged[k], Cell{Row: k, Col: r})
				continue
			}
			totals[r] = float64(total)
		}
		f64.Scale(values[k*channels:(k+1)*channels], totals, norm)
		e.progress(StageMatrix, int(done.Add(1)), channels)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := mat.NewDense(channels, channels, values)

	var cells []Cell
	for _, row := range flagged {
		cells = append(cells, row...)
	}
	if len(cells) > 0 {
		return m, &PoisonedError{Cells: cells, Causes: causes(sets)}
	}
	return m, nil
}

// pairCount sums the joint recurrence counts of two channels over all
// aggregation positions. It reports false if any position is poisoned in
// either channel.
func pairCount(a, b []*recurrenceSet) (int64, bool) {
	var total int64
	for i, sa := range a {
		sb := b[i]
		if sa.err != nil || sb.err != nil {
			return 0, false
		}
		total += int64(sa.mask.AndCount(sb.mask))
	}
	return total, true
}
