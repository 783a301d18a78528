package synchrony

import (
	"fmt"
	"math"
	"runtime"
)

// Config holds the engine parameters.
type Config struct {
	// Dimension is the embedding dimension d. Each embedding vector holds
	// Dimension samples of one channel.
	Dimension int

	// Lag is the spacing T, in samples, between consecutive elements of an
	// embedding vector.
	Lag int

	// PRef is the reference probability: the threshold for a position is
	// chosen so that fewer than PRef of its neighbours fall inside it.
	// Must be in (0, 1].
	PRef float64

	// Stride is the subsampling step Q over positions when averaging
	// per-position likelihoods. Larger strides trade resolution for speed.
	Stride int

	// W2 is the outer bound of the neighbour window in samples.
	// Set to 0 to derive it as half the sample rate.
	W2 int

	// Step is the grid step δ of the threshold search.
	Step float64

	// MaxSteps bounds the threshold search. A position whose neighbour
	// fraction does not reach PRef within MaxSteps increments of Step is
	// reported as exhausted instead of searched forever.
	MaxSteps int64

	// Workers caps the number of goroutines used by the parallel phases.
	// Set to 0 to use GOMAXPROCS.
	Workers int

	// EnableParallel computes per-channel threshold tables and matrix rows
	// concurrently. Results are bit-identical to sequential runs.
	EnableParallel bool

	// Progress, when set, is called after each unit of work completes.
	// It is called from worker goroutines and must be safe for concurrent use.
	Progress func(Progress)
}

// Progress reports completion of one phase of a run.
type Progress struct {
	Stage string // "thresholds", "likelihoods" or "matrix"
	Done  int
	Total int
}

// Stage names passed to Config.Progress.
const (
	StageThresholds  = "thresholds"
	StageLikelihoods = "likelihoods"
	StageMatrix      = "matrix"
)

// DefaultConfig returns a configuration with the standard synchronization
// likelihood parameters and parallel processing enabled.
func DefaultConfig() *Config {
	return &Config{
		Dimension:      DefaultDimension,
		Lag:            DefaultLag,
		PRef:           DefaultPRef,
		Stride:         DefaultStride,
		Step:           DefaultStep,
		MaxSteps:       DefaultMaxSteps,
		EnableParallel: true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dimension < 1 {
		return fmt.Errorf("%w: dimension must be at least 1", ErrInvalidParameters)
	}

	if c.Lag < 1 {
		return fmt.Errorf("%w: lag must be at least 1", ErrInvalidParameters)
	}

	if !(c.PRef > 0 && c.PRef <= 1) {
		return fmt.Errorf("%w: reference probability must be in (0, 1], got %v", ErrInvalidParameters, c.PRef)
	}

	if c.Stride < 1 {
		return fmt.Errorf("%w: stride must be at least 1", ErrInvalidParameters)
	}

	if c.W2 < 0 {
		return fmt.Errorf("%w: W2 must not be negative", ErrInvalidParameters)
	}

	if !(c.Step > 0) || math.IsInf(c.Step, 0) {
		return fmt.Errorf("%w: threshold step must be positive and finite, got %v", ErrInvalidParameters, c.Step)
	}

	if c.MaxSteps < 1 {
		return fmt.Errorf("%w: max steps must be at least 1", ErrInvalidParameters)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidParameters)
	}

	return nil
}

// Window derives the window parameters for a recording sampled at
// sampleRate. W1 is the Theiler window (d-1)·T; W2 is taken from the
// configuration or derived as floor(sampleRate/2).
func (c *Config) Window(sampleRate float64) (Window, error) {
	if err := c.Validate(); err != nil {
		return Window{}, err
	}

	w2 := c.W2
	if w2 == 0 {
		if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
			return Window{}, fmt.Errorf("%w: cannot derive W2 from sample rate %v", ErrInvalidParameters, sampleRate)
		}
		w2 = int(math.Floor(sampleRate / w2RateDivisor))
	}

	w := Window{
		Dimension: c.Dimension,
		Lag:       c.Lag,
		W1:        (c.Dimension - 1) * c.Lag,
		W2:        w2,
		PRef:      c.PRef,
		Stride:    c.Stride,
	}
	if w.W2 <= w.W1 {
		return Window{}, fmt.Errorf("%w: W2 (%d) must exceed the Theiler window W1 (%d)", ErrInvalidParameters, w.W2, w.W1)
	}
	return w, nil
}

// workers returns the effective worker count.
func (c *Config) workers() int {
	if !c.EnableParallel {
		return 1
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Window holds the derived parameters of one engine run.
type Window struct {
	Dimension int     // embedding dimension d
	Lag       int     // embedding lag T
	W1        int     // Theiler window (d-1)·T
	W2        int     // outer neighbour bound
	PRef      float64 // reference probability
	Stride    int     // subsampling stride Q
}

// Neighbors returns the number of neighbours per position, 2·(W2-W1).
func (w Window) Neighbors() int {
	return 2 * (w.W2 - w.W1)
}

// Scale returns the likelihood normalisation 1/(2·PRef·(W2-W1)).
func (w Window) Scale() float64 {
	return 1 / (2 * w.PRef * float64(w.W2-w.W1))
}
