// Package testutil provides synthetic recordings and reusable assertions
// for synchronization likelihood tests.
package testutil

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-12
	ChanceTolerance  = 0.03 // spread of SL around PRef for independent noise
)

// Sine returns n samples of a unit sine wave at freq Hz sampled at rate Hz.
func Sine(n int, freq, rate, phase float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.Sin(2*math.Pi*freq*float64(i)/rate + phase)
	}
	return s
}

// Noise returns n samples of Gaussian white noise with standard deviation
// sigma. The same seed always yields the same samples.
func Noise(n int, sigma float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	s := make([]float64, n)
	for i := range s {
		s[i] = sigma * rng.NormFloat64()
	}
	return s
}

// Scaled returns a copy of s multiplied by gain.
func Scaled(s []float64, gain float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = gain * v
	}
	return out
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, fmt.Sprintf("found NaN: s[%d] is NaN", i), msgAndArgs...)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, fmt.Sprintf("found Inf: s[%d] is Inf", i), msgAndArgs...)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [min, max].
func AssertAllInRange(t *testing.T, s []float64, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, fmt.Sprintf("value out of range: s[%d]=%f is outside [%f, %f]",
				i, v, minVal, maxVal), msgAndArgs...)
		}
	}
	return true
}

// AssertMonotonic verifies that a slice is monotonically non-decreasing.
func AssertMonotonic(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return assert.Fail(t, fmt.Sprintf("not monotonic: s[%d]=%f < s[%d]=%f",
				i, s[i], i-1, s[i-1]), msgAndArgs...)
		}
	}
	return true
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, fmt.Sprintf("value out of range: %f is outside [%f, %f]",
			value, minVal, maxVal), msgAndArgs...)
	}
	return true
}
