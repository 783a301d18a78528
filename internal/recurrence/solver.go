package recurrence

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrNoCrossing is returned when the neighbour fraction does not reach the
// reference probability within the step budget.
var ErrNoCrossing = errors.New("neighbour fraction never reaches reference probability")

// Criterion parameterises the threshold search.
//
// The search is the monotone linear scan e = 0, δ, 2δ, ... that stops at
// the first e whose neighbour fraction reaches PRef, returning the
// previous grid point. Because the fraction only changes at neighbour
// distances, the crossing is located from the order statistics of one
// distance scan instead of re-scanning the window per step; the result is
// the same grid point the scan would return.
type Criterion struct {
	PRef     float64 // reference probability, in (0, 1]
	Step     float64 // grid step δ
	MaxSteps int64   // δ increments allowed before giving up
}

// Result describes a successful search.
type Result struct {
	// Threshold is the largest grid point whose neighbour fraction is
	// strictly below PRef.
	Threshold float64

	// Steps is the number of δ increments the linear scan makes before
	// the fraction reaches PRef.
	Steps int64

	// Rank is the number of neighbours that must be closer than e for
	// the fraction to reach PRef.
	Rank int
}

// Rank returns the smallest neighbour count c with c/total >= PRef.
func (c Criterion) Rank(total int) int {
	if total <= 0 {
		return 0
	}
	n := float64(total)
	r := int(math.Ceil(c.PRef * n))
	for r > 0 && float64(r-1)/n >= c.PRef {
		r--
	}
	for r <= total && float64(r)/n < c.PRef {
		r++
	}
	return r
}

// Solve returns the threshold for one reference position given the
// distances from its embedding vector to every neighbour. dist is not
// modified. Non-finite distances never count as neighbours.
func (c Criterion) Solve(dist []float64) (Result, error) {
	rank := c.Rank(len(dist))
	if rank < 1 {
		return Result{}, fmt.Errorf("invalid criterion: rank %d for %d neighbours", rank, len(dist))
	}

	finite := make([]float64, 0, len(dist))
	for _, d := range dist {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			finite = append(finite, d)
		}
	}
	if len(finite) < rank {
		return Result{Rank: rank}, fmt.Errorf("%w: %d of %d distances finite, %d needed",
			ErrNoCrossing, len(finite), len(dist), rank)
	}
	slices.Sort(finite)
	crossing := finite[rank-1]

	// Largest grid index whose point is <= crossing.
	q := crossing / c.Step
	if q >= float64(c.MaxSteps) {
		return Result{Rank: rank}, fmt.Errorf("%w: distance %g needs more than %d steps of %g",
			ErrNoCrossing, crossing, c.MaxSteps, c.Step)
	}
	i := int64(q)
	for float64(i+1)*c.Step <= crossing {
		i++
	}
	for i > 0 && float64(i)*c.Step > crossing {
		i--
	}
	if i+1 > c.MaxSteps {
		return Result{Rank: rank}, fmt.Errorf("%w: distance %g needs more than %d steps of %g",
			ErrNoCrossing, crossing, c.MaxSteps, c.Step)
	}

	return Result{
		Threshold: float64(i) * c.Step,
		Steps:     i + 1,
		Rank:      rank,
	}, nil
}
