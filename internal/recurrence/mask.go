package recurrence

import "math/bits"

const wordBits = 64

// Mask is a fixed-size bit set over neighbour indices. Bit j is set when
// neighbour j recurs with the reference position.
type Mask []uint64

// NewMask returns an empty mask able to hold n bits.
func NewMask(n int) Mask {
	return make(Mask, (n+wordBits-1)/wordBits)
}

// Set sets bit j.
func (m Mask) Set(j int) {
	m[j/wordBits] |= 1 << (uint(j) % wordBits)
}

// Has reports whether bit j is set.
func (m Mask) Has(j int) bool {
	return m[j/wordBits]&(1<<(uint(j)%wordBits)) != 0
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	total := 0
	for _, w := range m {
		total += bits.OnesCount64(w)
	}
	return total
}

// AndCount returns the number of bits set in both m and o.
// Both masks must have the same length.
func (m Mask) AndCount(o Mask) int {
	total := 0
	for i, w := range m {
		total += bits.OnesCount64(w & o[i])
	}
	return total
}

// Build returns a mask with bit j set for every dist[j] < threshold.
func Build(dist []float64, threshold float64) Mask {
	m := NewMask(len(dist))
	for j, d := range dist {
		if d < threshold {
			m.Set(j)
		}
	}
	return m
}

// Accumulate adds 1 to counts[j] for every set bit j of m.
func (m Mask) Accumulate(counts []int32) {
	for i, w := range m {
		base := i * wordBits
		for w != 0 {
			j := bits.TrailingZeros64(w)
			counts[base+j]++
			w &= w - 1
		}
	}
}

// Sum returns the sum of counts[j] over the set bits j of m.
func (m Mask) Sum(counts []int32) int64 {
	var total int64
	for i, w := range m {
		base := i * wordBits
		for w != 0 {
			j := bits.TrailingZeros64(w)
			total += int64(counts[base+j])
			w &= w - 1
		}
	}
	return total
}
