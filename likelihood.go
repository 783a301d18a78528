package synchrony

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/tphakala/go-synchrony/internal/recurrence"
)

// Recurrences returns H(n,m): the number of channels k whose embedding
// vectors at n and m are closer than E(k,n). The threshold is always the
// one at n, so H(n,m) and H(m,n) generally differ.
func (e *Engine) Recurrences(ctx context.Context, n, m int) (int, error) {
	if err := e.checkPosition(n); err != nil {
		return 0, err
	}
	if m < 0 || m >= e.space.Span() {
		return 0, fmt.Errorf("%w: position %d has no complete embedding, valid starts are [0, %d)",
			ErrIndexOutOfRange, m, e.space.Span())
	}

	tables, rows := e.state()
	col, err := e.column(ctx, tables, n)
	if err != nil {
		return 0, err
	}
	if err := poisoned(col...); err != nil {
		return 0, err
	}

	if j, ok := e.nb.Index(n, m); ok {
		return int(e.row(rows, n, col)[j]), nil
	}

	buf := e.scratch.get()
	defer e.scratch.put(buf)
	count := 0
	for k, s := range col {
		if e.space.Distance(buf.diff, k, n, m) < s.threshold {
			count++
		}
	}
	return count, nil
}

// row returns H(n, ·) over the neighbour window of n. col must hold the
// unpoisoned recurrence sets of every channel at n.
func (e *Engine) row(rows *rowCache, n int, col []*recurrenceSet) []int32 {
	if r, ok := rows.get(n); ok {
		return r
	}
	counts := make([]int32, e.nb.Len())
	for _, s := range col {
		s.mask.Accumulate(counts)
	}
	return rows.put(n, counts)
}

// Likelihood returns S(k,n): for every neighbour m at which channel k
// recurs, the fraction of the other channels that recur too, summed and
// scaled by 1/(2·PRef·(W2-W1)). Independent channels give values near
// PRef; fully synchronised channels give values near 1.
func (e *Engine) Likelihood(ctx context.Context, k, n int) (float64, error) {
	if err := e.checkCrossChannel(); err != nil {
		return 0, err
	}
	if err := e.checkChannel(k); err != nil {
		return 0, err
	}
	if err := e.checkPosition(n); err != nil {
		return 0, err
	}

	tables, rows := e.state()
	col, err := e.column(ctx, tables, n)
	if err != nil {
		return 0, err
	}
	if err := poisoned(col...); err != nil {
		return math.NaN(), err
	}

	others := int64(e.rec.Channels() - 1)
	return e.win.Scale() * float64(otherRecurrences(col[k].mask, e.row(rows, n, col))) / float64(others), nil
}

// otherRecurrences returns Σ (H(n,m) - 1) over the neighbours m in mask.
func otherRecurrences(mask recurrence.Mask, row []int32) int64 {
	return mask.Sum(row) - int64(mask.Count())
}

// ChannelLikelihood returns SL(k), the mean of S(k,n) over the
// subsampled positions.
func (e *Engine) ChannelLikelihood(ctx context.Context, k int) (float64, error) {
	if err := e.checkChannel(k); err != nil {
		return 0, err
	}
	sl, err := e.channelLikelihoods(ctx, []int{k})
	if sl == nil {
		return 0, err
	}
	return sl[0], err
}

// ChannelLikelihoods returns SL(k) for every channel. Channels that depend
// on an exhausted threshold search are NaN and reported through a
// *PoisonedError returned alongside the values.
func (e *Engine) ChannelLikelihoods(ctx context.Context) ([]float64, error) {
	channels := make([]int, e.rec.Channels())
	for k := range channels {
		channels[k] = k
	}
	return e.channelLikelihoods(ctx, channels)
}

func (e *Engine) channelLikelihoods(ctx context.Context, channels []int) ([]float64, error) {
	if err := e.checkCrossChannel(); err != nil {
		return nil, err
	}

	sets, err := e.fillTables(ctx)
	if err != nil {
		return nil, err
	}
	_, rows := e.state()

	// H rows per position, split into contiguous chunks per worker.
	count := len(e.positions)
	rowsAt := make([][]int32, count)
	parts := min(e.cfg.workers(), count)
	err = e.forEach(ctx, parts, func(ctx context.Context, p int) error {
		lo, hi := chunk(count, parts, p)
		col := make([]*recurrenceSet, len(sets))
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			for k := range sets {
				col[k] = sets[k][i]
			}
			if poisoned(col...) != nil {
				continue
			}
			rowsAt[i] = e.row(rows, e.positions[i], col)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	norm := e.win.Scale() / float64(int64(e.rec.Channels()-1)*int64(count))
	out := make([]float64, len(channels))
	flagged := make([]bool, len(channels))

	var done atomic.Int64
	err = e.forEach(ctx, len(channels), func(ctx context.Context, i int) error {
		k := channels[i]
		var total int64
		for p, row := range rowsAt {
			if row == nil {
				flagged[i] = true
				break
			}
			total += otherRecurrences(sets[k][p].mask, row)
		}
		if flagged[i] {
			out[i] = math.NaN()
		} else {
			out[i] = float64(total) * norm
		}
		e.progress(StageLikelihoods, int(done.Add(1)), len(channels))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var cells []Cell
	for i, bad := range flagged {
		if bad {
			cells = append(cells, Cell{Row: channels[i], Col: channels[i]})
		}
	}
	if len(cells) > 0 {
		return out, &PoisonedError{Cells: cells, Causes: causes(sets)}
	}
	return out, nil
}
