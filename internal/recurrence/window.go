package recurrence

// Window describes the neighbour set of a reference position n:
//
//	[n-W2, n-W1) ∪ (n+W1, n+W2]
//
// Neighbours are indexed j in [0, Len()), the left block first in
// ascending position order, then the right block.
type Window struct {
	W1 int // Theiler window
	W2 int // outer bound
}

// Half returns the size of one side of the window, W2-W1.
func (w Window) Half() int {
	return w.W2 - w.W1
}

// Len returns the number of neighbours, 2·(W2-W1).
func (w Window) Len() int {
	return 2 * w.Half()
}

// Neighbor returns the position of neighbour j of reference position n.
func (w Window) Neighbor(n, j int) int {
	half := w.Half()
	if j < half {
		return n - w.W2 + j
	}
	return n + w.W1 + 1 + (j - half)
}

// Index returns the neighbour index of position m relative to n, and
// false when m lies outside the window (including the Theiler band).
func (w Window) Index(n, m int) (int, bool) {
	d := m - n
	switch {
	case d >= -w.W2 && d < -w.W1:
		return d + w.W2, true
	case d > w.W1 && d <= w.W2:
		return w.Half() + d - w.W1 - 1, true
	default:
		return 0, false
	}
}
