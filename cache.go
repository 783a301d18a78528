package synchrony

import (
	"sync"

	"github.com/tphakala/go-synchrony/internal/recurrence"
)

// recurrenceSet is one threshold table entry: E(k,n) and the neighbours of
// n that fall inside it. A poisoned entry carries err instead.
type recurrenceSet struct {
	threshold float64
	steps     int64
	mask      recurrence.Mask
	err       *SearchError
}

// thresholdTable memoises recurrence sets of one channel keyed by position.
type thresholdTable struct {
	mu   sync.Mutex
	sets map[int]*recurrenceSet
}

func newThresholdTable() *thresholdTable {
	return &thresholdTable{sets: make(map[int]*recurrenceSet)}
}

func (t *thresholdTable) get(n int) (*recurrenceSet, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sets[n]
	return s, ok
}

// put stores s unless another goroutine got there first, and returns the
// stored entry. Entries are pure functions of their key, so either copy is
// equally valid.
func (t *thresholdTable) put(n int, s *recurrenceSet) *recurrenceSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.sets[n]; ok {
		return prev
	}
	t.sets[n] = s
	return s
}

// rowCache memoises H(n, m) for all neighbours m of a reference position n.
type rowCache struct {
	mu   sync.Mutex
	rows map[int][]int32
}

func newRowCache() *rowCache {
	return &rowCache{rows: make(map[int][]int32)}
}

func (c *rowCache) get(n int) ([]int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[n]
	return r, ok
}

func (c *rowCache) put(n int, row []int32) []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.rows[n]; ok {
		return prev
	}
	c.rows[n] = row
	return row
}

// scanBuffers holds per-goroutine scratch space for one window scan.
type scanBuffers struct {
	dist []float64
	diff []float64
}

type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(neighbors, dim int) *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				return &scanBuffers{
					dist: make([]float64, neighbors),
					diff: make([]float64, dim),
				}
			},
		},
	}
}

func (p *bufferPool) get() *scanBuffers {
	return p.pool.Get().(*scanBuffers)
}

func (p *bufferPool) put(b *scanBuffers) {
	p.pool.Put(b)
}
