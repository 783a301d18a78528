package synchrony

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Recording is an M×N matrix of samples (one row per channel) with its
// sample rate. The engine only reads it; the matrix must not be modified
// while an Engine built on it is in use.
type Recording struct {
	data   *mat.Dense
	rate   float64
	labels []string
}

// NewRecording wraps a channels×samples matrix. labels may be nil, in which
// case channels are named ch0, ch1, ...
func NewRecording(data *mat.Dense, sampleRate float64, labels []string) (*Recording, error) {
	if data == nil || data.IsEmpty() {
		return nil, fmt.Errorf("%w: empty recording", ErrInvalidParameters)
	}
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate must be positive and finite, got %v", ErrInvalidParameters, sampleRate)
	}

	rows, _ := data.Dims()
	if rows > maxChannels {
		return nil, fmt.Errorf("%w: too many channels (max %d)", ErrInvalidParameters, maxChannels)
	}
	for k := range rows {
		row := data.RawRowView(k)
		if floats.HasNaN(row) || math.IsInf(floats.Max(row), 1) || math.IsInf(floats.Min(row), -1) {
			return nil, fmt.Errorf("%w: channel %d contains non-finite samples", ErrInvalidParameters, k)
		}
	}

	if labels == nil {
		labels = make([]string, rows)
		for k := range labels {
			labels[k] = fmt.Sprintf("ch%d", k)
		}
	} else {
		if len(labels) != rows {
			return nil, fmt.Errorf("%w: %d labels for %d channels", ErrInvalidParameters, len(labels), rows)
		}
		seen := make(map[string]struct{}, rows)
		for _, l := range labels {
			if _, dup := seen[l]; dup {
				return nil, fmt.Errorf("%w: duplicate channel label %q", ErrInvalidParameters, l)
			}
			seen[l] = struct{}{}
		}
		labels = slices.Clone(labels)
	}

	return &Recording{data: data, rate: sampleRate, labels: labels}, nil
}

// FromChannels builds a recording from per-channel sample slices of equal
// length. The samples are copied.
func FromChannels(channels [][]float64, sampleRate float64, labels ...string) (*Recording, error) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, fmt.Errorf("%w: empty recording", ErrInvalidParameters)
	}
	n := len(channels[0])
	data := mat.NewDense(len(channels), n, nil)
	for k, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("%w: channel %d has %d samples, want %d", ErrInvalidParameters, k, len(ch), n)
		}
		data.SetRow(k, ch)
	}
	if len(labels) == 0 {
		labels = nil
	}
	return NewRecording(data, sampleRate, labels)
}

// Channels returns the channel count M.
func (r *Recording) Channels() int {
	rows, _ := r.data.Dims()
	return rows
}

// Samples returns the per-channel sample count N.
func (r *Recording) Samples() int {
	_, cols := r.data.Dims()
	return cols
}

// SampleRate returns the sample rate in samples per second.
func (r *Recording) SampleRate() float64 { return r.rate }

// Labels returns a copy of the channel labels in row order.
func (r *Recording) Labels() []string { return slices.Clone(r.labels) }

// Channel returns a copy of channel k's samples.
func (r *Recording) Channel(k int) []float64 {
	return slices.Clone(r.data.RawRowView(k))
}

// Matrix returns the underlying sample matrix. It must be treated as read-only.
func (r *Recording) Matrix() mat.Matrix { return r.data }

// Duration returns the recording length in seconds.
func (r *Recording) Duration() float64 {
	return float64(r.Samples()) / r.rate
}

// Exclude returns a recording without the channels named in labels.
// Labels that do not name a channel are ignored. Channel order is kept.
func (r *Recording) Exclude(labels ...string) (*Recording, error) {
	drop := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		drop[l] = struct{}{}
	}
	keep := make([]int, 0, len(r.labels))
	for k, l := range r.labels {
		if _, ok := drop[l]; !ok {
			keep = append(keep, k)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: excluding %d labels leaves no channels", ErrInvalidParameters, len(labels))
	}
	return r.rows(keep)
}

// Pick returns a recording holding only the named channels, in the order
// given.
func (r *Recording) Pick(labels ...string) (*Recording, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no channels picked", ErrInvalidParameters)
	}
	idx := make([]int, len(labels))
	for i, l := range labels {
		k := slices.Index(r.labels, l)
		if k < 0 {
			return nil, fmt.Errorf("%w: unknown channel label %q", ErrInvalidParameters, l)
		}
		if slices.Contains(idx[:i], k) {
			return nil, fmt.Errorf("%w: channel %q picked twice", ErrInvalidParameters, l)
		}
		idx[i] = k
	}
	return r.rows(idx)
}

// Crop returns the samples between startSec and endSec. An endSec of zero
// or less keeps everything after startSec. The result shares storage with r.
func (r *Recording) Crop(startSec, endSec float64) (*Recording, error) {
	n := r.Samples()
	start := int(math.Round(startSec * r.rate))
	end := n
	if endSec > 0 {
		end = int(math.Round(endSec * r.rate))
	}
	if start < 0 || end > n || start >= end {
		return nil, fmt.Errorf("%w: crop [%v, %v) s outside recording of %v s",
			ErrInvalidParameters, startSec, endSec, r.Duration())
	}
	view, ok := r.data.Slice(0, r.Channels(), start, end).(*mat.Dense)
	if !ok {
		return nil, fmt.Errorf("unexpected matrix type %T", view)
	}
	return &Recording{data: view, rate: r.rate, labels: slices.Clone(r.labels)}, nil
}

func (r *Recording) rows(idx []int) (*Recording, error) {
	data := mat.NewDense(len(idx), r.Samples(), nil)
	labels := make([]string, len(idx))
	for i, k := range idx {
		data.SetRow(i, r.data.RawRowView(k))
		labels[i] = r.labels[k]
	}
	return &Recording{data: data, rate: r.rate, labels: labels}, nil
}
