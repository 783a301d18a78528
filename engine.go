package synchrony

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tphakala/go-synchrony/internal/embed"
	"github.com/tphakala/go-synchrony/internal/recurrence"
)

// Engine computes synchronization likelihood statistics for one recording
// and one set of parameters. It owns every cache of the run: thresholds per
// (channel, position) and recurrence counts per reference position. The
// caches are append-only and never shared between engines, so a parameter
// change always means a new Engine (or Reset).
//
// All methods are safe for concurrent use.
type Engine struct {
	rec   *Recording
	cfg   Config
	win   Window
	nb    recurrence.Window
	crit  recurrence.Criterion
	space *embed.Space

	lo, hi    int // estimator positions are [lo, hi)
	positions []int

	mu      sync.Mutex // guards tables and rows pointers across Reset
	tables  []*thresholdTable
	rows    *rowCache
	scratch *bufferPool
}

// New creates an engine for rec. The configuration is copied.
func New(rec *Recording, cfg *Config) (*Engine, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: recording is nil", ErrInvalidParameters)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidParameters)
	}

	win, err := cfg.Window(rec.SampleRate())
	if err != nil {
		return nil, err
	}

	space, err := embed.New(rec.data.RawMatrix(), win.Dimension, win.Lag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	// Every neighbour m of n needs a complete embedding vector, so the
	// upper bound comes from the embedding span, not from N.
	lo, hi := win.W2, space.Span()-win.W2
	positions := make([]int, 0, max((hi-lo)/win.Stride, 0))
	for n := lo; n < hi-1; n += win.Stride {
		positions = append(positions, n)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: %d samples leave no positions for W1=%d, W2=%d",
			ErrInvalidParameters, rec.Samples(), win.W1, win.W2)
	}

	e := &Engine{
		rec:   rec,
		cfg:   *cfg,
		win:   win,
		nb:    recurrence.Window{W1: win.W1, W2: win.W2},
		space: space,
		crit: recurrence.Criterion{
			PRef:     cfg.PRef,
			Step:     cfg.Step,
			MaxSteps: cfg.MaxSteps,
		},
		lo:        lo,
		hi:        hi,
		positions: positions,
	}
	e.scratch = newBufferPool(e.nb.Len(), win.Dimension)
	e.Reset()
	return e, nil
}

// Reset discards every cached threshold and recurrence count.
func (e *Engine) Reset() {
	tables := make([]*thresholdTable, e.rec.Channels())
	for k := range tables {
		tables[k] = newThresholdTable()
	}
	e.mu.Lock()
	e.tables = tables
	e.rows = newRowCache()
	e.mu.Unlock()
}

// Recording returns the recording the engine reads.
func (e *Engine) Recording() *Recording { return e.rec }

// Window returns the derived window parameters.
func (e *Engine) Window() Window { return e.win }

// Positions returns the subsampled positions averaged by the aggregators.
func (e *Engine) Positions() []int { return slices.Clone(e.positions) }

// ValidRange returns the half-open range [lo, hi) of positions at which
// the per-position estimators are defined.
func (e *Engine) ValidRange() (lo, hi int) { return e.lo, e.hi }

// Embedding returns the delay-embedded vector of channel k starting at n.
func (e *Engine) Embedding(k, n int) ([]float64, error) {
	v, err := e.space.Vector(nil, k, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexOutOfRange, err)
	}
	return v, nil
}

// Distance returns the Euclidean distance between the embedding vectors of
// channel k at starts a and b.
func (e *Engine) Distance(k, a, b int) (float64, error) {
	for _, n := range []int{a, b} {
		if err := e.space.Check(k, n); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrIndexOutOfRange, err)
		}
	}
	buf := e.scratch.get()
	defer e.scratch.put(buf)
	return e.space.Distance(buf.diff, k, a, b), nil
}

func (e *Engine) state() ([]*thresholdTable, *rowCache) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables, e.rows
}

func (e *Engine) checkChannel(k int) error {
	if k < 0 || k >= e.rec.Channels() {
		return fmt.Errorf("%w: channel %d not in [0, %d)", ErrIndexOutOfRange, k, e.rec.Channels())
	}
	return nil
}

func (e *Engine) checkPosition(n int) error {
	if n < e.lo || n >= e.hi {
		return fmt.Errorf("%w: position %d has no full window, valid range is [%d, %d)",
			ErrIndexOutOfRange, n, e.lo, e.hi)
	}
	return nil
}

func (e *Engine) checkCrossChannel() error {
	if e.rec.Channels() < 2 {
		return fmt.Errorf("%w: cross-channel likelihood needs at least 2 channels, have %d",
			ErrInvalidParameters, e.rec.Channels())
	}
	return nil
}

func (e *Engine) progress(stage string, done, total int) {
	if e.cfg.Progress != nil {
		e.cfg.Progress(Progress{Stage: stage, Done: done, Total: total})
	}
}
