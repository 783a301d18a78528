// Package embed provides delay-embedding access and the Euclidean distance
// kernel over a row-major multichannel sample buffer.
//
// An embedding vector for channel k at start position n is
//
//	{ x[k][n], x[k][n+T], ..., x[k][n+(d-1)T] }
//
// where d is the embedding dimension and T the lag. Vectors are never
// materialised during a distance computation; the difference is gathered
// straight into a caller-owned scratch buffer and reduced with the
// SIMD dot product from github.com/tphakala/simd.
package embed

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/blas/blas64"
)

// ErrOutOfRange is returned when a channel or start position has no
// complete embedding vector.
var ErrOutOfRange = errors.New("embedding out of range")

// Space is a read-only view of an M×N recording with fixed embedding
// parameters. It holds no mutable state and is safe for concurrent use.
type Space struct {
	data     []float64
	stride   int
	channels int
	samples  int
	dim      int
	lag      int
	span     int // number of start positions with a complete vector
}

// New creates a Space over a row-major general matrix.
// The matrix data is referenced, not copied, and must not be modified
// while the Space is in use.
func New(m blas64.General, dim, lag int) (*Space, error) {
	if dim < 1 || lag < 1 {
		return nil, fmt.Errorf("embed: dimension and lag must be positive (d=%d, T=%d)", dim, lag)
	}
	if m.Rows < 1 || m.Cols < 1 {
		return nil, fmt.Errorf("embed: empty matrix %dx%d", m.Rows, m.Cols)
	}
	reach := (dim - 1) * lag
	return &Space{
		data:     m.Data,
		stride:   m.Stride,
		channels: m.Rows,
		samples:  m.Cols,
		dim:      dim,
		lag:      lag,
		span:     max(m.Cols-reach, 0),
	}, nil
}

// Dim returns the embedding dimension d.
func (s *Space) Dim() int { return s.dim }

// Lag returns the embedding lag T.
func (s *Space) Lag() int { return s.lag }

// Channels returns the channel count M.
func (s *Space) Channels() int { return s.channels }

// Samples returns the sample count N.
func (s *Space) Samples() int { return s.samples }

// Span returns the number of start positions n for which
// n+(d-1)T < N, i.e. the valid starts are [0, Span()).
func (s *Space) Span() int { return s.span }

// Check reports whether (k, n) addresses a complete embedding vector.
func (s *Space) Check(k, n int) error {
	if k < 0 || k >= s.channels {
		return fmt.Errorf("%w: channel %d not in [0, %d)", ErrOutOfRange, k, s.channels)
	}
	if n < 0 || n >= s.span {
		return fmt.Errorf("%w: start %d not in [0, %d)", ErrOutOfRange, n, s.span)
	}
	return nil
}

// Vector writes the embedding vector for (k, n) into dst and returns it.
// dst is grown when its capacity is below the embedding dimension.
func (s *Space) Vector(dst []float64, k, n int) ([]float64, error) {
	if err := s.Check(k, n); err != nil {
		return nil, err
	}
	if cap(dst) < s.dim {
		dst = make([]float64, s.dim)
	}
	dst = dst[:s.dim]
	row := s.data[k*s.stride:]
	for i := range s.dim {
		dst[i] = row[n+i*s.lag]
	}
	return dst, nil
}

// Distance returns the Euclidean distance between the embedding vectors
// of channel k at starts a and b. scratch must hold at least Dim()
// elements. Bounds are not checked; callers validate positions with Check.
func (s *Space) Distance(scratch []float64, k, a, b int) float64 {
	row := s.data[k*s.stride:]
	diff := scratch[:s.dim]
	if s.lag == 1 {
		xa := row[a : a+s.dim]
		xb := row[b : b+s.dim]
		for i := range diff {
			diff[i] = xa[i] - xb[i]
		}
	} else {
		for i := range diff {
			off := i * s.lag
			diff[i] = row[a+off] - row[b+off]
		}
	}
	return math.Sqrt(f64.DotProductUnsafe(diff, diff))
}
