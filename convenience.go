package synchrony

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Common EEG sample rates. With the default W2 derivation the neighbour
// window spans half a second, e.g. W2 = 128 samples at [Rate256].
const (
	Rate128  = 128
	Rate250  = 250
	Rate256  = 256
	Rate500  = 500
	Rate512  = 512
	Rate1000 = 1000
)

// Result is the output of one complete run.
type Result struct {
	// Window holds the derived parameters of the run.
	Window Window

	// Positions are the subsampled positions that were averaged.
	Positions []int

	// Labels name the rows and columns of Matrix and the entries of
	// Likelihoods, in recording order.
	Labels []string

	// Matrix is the pairwise likelihood matrix BSL.
	Matrix *mat.Dense

	// Likelihoods holds SL(k) for every channel.
	Likelihoods []float64
}

// Analyze runs a fresh engine over rec and returns both the pairwise
// matrix and the per-channel likelihoods. When some thresholds are
// exhausted the partial result is returned together with a
// *PoisonedError; any other error yields a nil result.
func Analyze(ctx context.Context, rec *Recording, cfg *Config) (*Result, error) {
	e, err := New(rec, cfg)
	if err != nil {
		return nil, err
	}

	m, matrixErr := e.PairwiseMatrix(ctx)
	if m == nil {
		return nil, matrixErr
	}
	sl, slErr := e.ChannelLikelihoods(ctx)
	if sl == nil {
		return nil, slErr
	}

	return &Result{
		Window:      e.Window(),
		Positions:   e.Positions(),
		Labels:      rec.Labels(),
		Matrix:      m,
		Likelihoods: sl,
	}, mergePoisoned(matrixErr, slErr)
}

// PairwiseLikelihood computes the pairwise matrix for per-channel sample
// slices with the default configuration.
func PairwiseLikelihood(channels [][]float64, sampleRate float64) (*mat.Dense, error) {
	rec, err := FromChannels(channels, sampleRate)
	if err != nil {
		return nil, err
	}
	e, err := New(rec, DefaultConfig())
	if err != nil {
		return nil, err
	}
	return e.PairwiseMatrix(context.Background())
}

// mergePoisoned keeps the matrix report when both aggregates are
// poisoned; they share the same causes.
func mergePoisoned(matrixErr, slErr error) error {
	var p *PoisonedError
	if errors.As(matrixErr, &p) {
		return p
	}
	if errors.As(slErr, &p) {
		return p
	}
	return nil
}
