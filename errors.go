package synchrony

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the engine.
var (
	// ErrInvalidParameters indicates parameters that leave nothing to
	// compute: W2 <= W1, fewer than two channels for a cross-channel
	// statistic, or no valid positions after window exclusion.
	ErrInvalidParameters = errors.New("invalid synchronization parameters")

	// ErrThresholdSearchExhausted indicates that the adaptive threshold
	// search hit its step cap before the neighbour fraction reached PRef.
	ErrThresholdSearchExhausted = errors.New("threshold search exhausted")

	// ErrIndexOutOfRange indicates a channel or position without a full
	// neighbour window.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// SearchError reports a threshold search that did not terminate within the
// step cap for one (channel, position) cell. The cell stays poisoned for the
// rest of the run.
type SearchError struct {
	Channel  int
	Position int
	MaxSteps int64
	Err      error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("channel %d position %d: %v (cap %d steps): %v",
		e.Channel, e.Position, ErrThresholdSearchExhausted, e.MaxSteps, e.Err)
}

// Unwrap makes errors.Is match both ErrThresholdSearchExhausted and the
// underlying solver error.
func (e *SearchError) Unwrap() []error {
	return []error{ErrThresholdSearchExhausted, e.Err}
}

// Cell addresses one flagged output value. For the pairwise matrix it is
// the (Row, Col) cell; for per-channel likelihoods Row == Col == channel.
type Cell struct {
	Row int
	Col int
}

// PoisonedError is returned together with an aggregate whose flagged
// entries were set to NaN because they depend on exhausted threshold
// searches.
type PoisonedError struct {
	Cells  []Cell
	Causes []*SearchError
}

func (e *PoisonedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d output cells flagged by %d exhausted threshold searches", len(e.Cells), len(e.Causes))
	if len(e.Causes) > 0 {
		fmt.Fprintf(&b, "; first: %v", e.Causes[0])
	}
	return b.String()
}

// Unwrap returns the underlying search errors.
func (e *PoisonedError) Unwrap() []error {
	errs := make([]error, len(e.Causes))
	for i, c := range e.Causes {
		errs[i] = c
	}
	return errs
}
