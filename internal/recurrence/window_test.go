package recurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowNeighbors(t *testing.T) {
	w := Window{W1: 2, W2: 5}
	const n = 10

	got := make([]int, w.Len())
	for j := range got {
		got[j] = w.Neighbor(n, j)
	}
	assert.Equal(t, []int{5, 6, 7, 13, 14, 15}, got)

	for j, m := range got {
		idx, ok := w.Index(n, m)
		assert.True(t, ok)
		assert.Equal(t, j, idx)
	}
}

func TestWindowIndexExcludesTheilerBand(t *testing.T) {
	w := Window{W1: 2, W2: 5}
	const n = 10

	for _, m := range []int{4, 8, 9, 10, 11, 12, 16} {
		_, ok := w.Index(n, m)
		assert.False(t, ok, "m=%d should be outside the window", m)
	}
}

func TestWindowWithoutTheilerBand(t *testing.T) {
	w := Window{W1: 0, W2: 3}
	const n = 5

	got := make([]int, w.Len())
	for j := range got {
		got[j] = w.Neighbor(n, j)
	}
	assert.Equal(t, []int{2, 3, 4, 6, 7, 8}, got)

	_, ok := w.Index(n, n)
	assert.False(t, ok)
}
