package synchrony

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-synchrony/internal/testutil"
)

func TestNewPositions(t *testing.T) {
	e := newTestEngine(t, noiseRecording(t, 2, testSamples), testConfig())

	w := e.Window()
	assert.Equal(t, 9, w.W1)
	assert.Equal(t, 50, w.W2)

	lo, hi := e.ValidRange()
	assert.Equal(t, 50, lo)
	assert.Equal(t, testSamples-9-50, hi)

	pos := e.Positions()
	require.NotEmpty(t, pos)
	assert.Equal(t, lo, pos[0])
	for i := 1; i < len(pos); i++ {
		assert.Equal(t, w.Stride, pos[i]-pos[i-1])
	}
	assert.Less(t, pos[len(pos)-1], hi-1)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, testConfig())
	require.ErrorIs(t, err, ErrInvalidParameters)

	rec := noiseRecording(t, 2, testSamples)
	_, err = New(rec, nil)
	require.ErrorIs(t, err, ErrInvalidParameters)

	cfg := testConfig()
	cfg.W2 = 5
	_, err = New(rec, cfg)
	require.ErrorIs(t, err, ErrInvalidParameters, "W2 inside the Theiler window")

	short := noiseRecording(t, 2, 100)
	_, err = New(short, testConfig())
	require.ErrorIs(t, err, ErrInvalidParameters, "no positions left")
}

func TestEmbeddingAndDistance(t *testing.T) {
	rec := noiseRecording(t, 2, testSamples)
	e := newTestEngine(t, rec, testConfig())

	v, err := e.Embedding(1, 100)
	require.NoError(t, err)
	assert.Equal(t, rec.Channel(1)[100:110], v)

	d, err := e.Distance(0, 100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-15)

	a, _ := e.Embedding(0, 100)
	b, _ := e.Embedding(0, 140)
	var want float64
	for i := range a {
		want += (a[i] - b[i]) * (a[i] - b[i])
	}
	d, err = e.Distance(0, 100, 140)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(want), d, 1e-12)

	_, err = e.Embedding(0, testSamples-9)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = e.Distance(2, 100, 140)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestThresholdOutOfRange(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, noiseRecording(t, 2, testSamples), testConfig())
	lo, hi := e.ValidRange()

	_, err := e.Threshold(ctx, 0, lo-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = e.Threshold(ctx, 0, hi)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = e.Threshold(ctx, 0, testSamples-50)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = e.Threshold(ctx, 2, lo)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = e.Threshold(ctx, 1, lo)
	require.NoError(t, err)
	_, err = e.Threshold(ctx, 1, hi-1)
	require.NoError(t, err)
}

func TestThresholdFractionBelowReference(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, noiseRecording(t, 2, testSamples), testConfig())
	w := e.Window()

	for _, n := range e.Positions()[:20] {
		eps, err := e.Threshold(ctx, 0, n)
		require.NoError(t, err)
		assert.Greater(t, eps, 0.0)

		inside := 0
		for m := n - w.W2; m <= n+w.W2; m++ {
			if abs(m-n) <= w.W1 {
				continue
			}
			d, err := e.Distance(0, n, m)
			require.NoError(t, err)
			if d < eps {
				inside++
			}
		}
		assert.Less(t, float64(inside)/float64(w.Neighbors()), w.PRef, "position %d", n)
	}
}

func TestThresholdMonotoneInReferenceProbability(t *testing.T) {
	ctx := context.Background()
	rec := noiseRecording(t, 2, testSamples)

	const positions = 10
	prefs := []float64{0.02, 0.05, 0.1, 0.3}
	series := make([][]float64, positions) // thresholds per position, by increasing pref
	for _, pref := range prefs {
		cfg := testConfig()
		cfg.PRef = pref
		e := newTestEngine(t, rec, cfg)

		for i, n := range e.Positions()[:positions] {
			eps, err := e.Threshold(ctx, 1, n)
			require.NoError(t, err)
			series[i] = append(series[i], eps)
		}
	}
	for i, s := range series {
		require.Len(t, s, len(prefs))
		testutil.AssertMonotonic(t, s, "position index %d", i)
	}
}

func TestRecurrencesMatchDefinition(t *testing.T) {
	ctx := context.Background()
	rec := noiseRecording(t, 4, testSamples)
	e := newTestEngine(t, rec, testConfig())
	n := e.Positions()[5]

	// Inside the window, just past it, and far away.
	for _, m := range []int{n - 50, n - 10, n + 10, n + 37, n + 50, n + 51, n + 400, 0} {
		var want int
		for k := range rec.Channels() {
			eps, err := e.Threshold(ctx, k, n)
			require.NoError(t, err)
			d, err := e.Distance(k, n, m)
			require.NoError(t, err)
			if d < eps {
				want++
			}
		}
		got, err := e.Recurrences(ctx, n, m)
		require.NoError(t, err)
		assert.Equal(t, want, got, "H(%d,%d)", n, m)
	}

	_, err := e.Recurrences(ctx, n, testSamples)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestRecurrencesAsymmetric(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, noiseRecording(t, 4, testSamples), testConfig())
	lo, hi := e.ValidRange()

	found := false
	for n := lo; n < hi-60 && !found; n += 7 {
		for m := n + 10; m <= n+50; m++ {
			nm, err := e.Recurrences(ctx, n, m)
			require.NoError(t, err)
			mn, err := e.Recurrences(ctx, m, n)
			require.NoError(t, err)
			if nm != mn {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "H(n,m) should differ from H(m,n) for some pair")
}

func TestLikelihoodBounds(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, coupledRecording(t), testConfig())

	positions := e.Positions()[:50]
	for k := range 3 {
		values := make([]float64, 0, len(positions))
		for _, n := range positions {
			s, err := e.Likelihood(ctx, k, n)
			require.NoError(t, err)
			values = append(values, s)
		}
		testutil.AssertAllInRange(t, values, 0, 1, "channel %d", k)
	}

	values := make([]float64, 0, len(positions))
	for _, n := range positions {
		bs, err := e.Bivariate(ctx, 0, 1, n)
		require.NoError(t, err)
		values = append(values, bs)
	}
	testutil.AssertAllInRange(t, values, 0, 1)
}

func TestEstimatorsOutOfRange(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, noiseRecording(t, 2, testSamples), testConfig())
	w := e.Window()
	lo, hi := e.ValidRange()
	require.Equal(t, testSamples-w.W1-w.W2, hi)

	tests := []struct {
		name string
		n    int
	}{
		{"negative", -1},
		{"before W2", lo - 1},
		{"embedding reaches past end", testSamples - w.W1 - w.W2},
		{"just below N-W2", testSamples - w.W2 - 1},
		{"N-W2", testSamples - w.W2},
		{"last sample", testSamples - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Likelihood(ctx, 0, tt.n)
			require.ErrorIs(t, err, ErrIndexOutOfRange)
			_, err = e.Bivariate(ctx, 0, 1, tt.n)
			require.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}

	// Both ends of the valid range are accepted.
	for _, n := range []int{lo, hi - 1} {
		_, err := e.Likelihood(ctx, 0, n)
		require.NoError(t, err)
		_, err = e.Bivariate(ctx, 0, 1, n)
		require.NoError(t, err)
	}
}

func TestIndependentNoiseNearChance(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	e := newTestEngine(t, noiseRecording(t, 4, 4000), cfg)

	sl, err := e.ChannelLikelihoods(ctx)
	require.NoError(t, err)
	require.Len(t, sl, 4)
	testutil.AssertNoNaNOrInf(t, sl)
	for k, v := range sl {
		assert.InDelta(t, cfg.PRef, v, testutil.ChanceTolerance, "channel %d", k)
	}

	m, err := e.PairwiseMatrix(ctx)
	require.NoError(t, err)
	for k := range 4 {
		for r := range 4 {
			if k != r {
				assert.InDelta(t, cfg.PRef, m.At(k, r), testutil.ChanceTolerance, "cell %d,%d", k, r)
			}
		}
	}
}

func TestPairwiseMatrixCoupledChannels(t *testing.T) {
	e := newTestEngine(t, coupledRecording(t), testConfig())

	m, err := e.PairwiseMatrix(context.Background())
	require.NoError(t, err)
	rows, cols := m.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 3, cols)

	// Identical channels recur at identical neighbours.
	assert.InDelta(t, m.At(0, 0), m.At(0, 1), 1e-12)
	assert.InDelta(t, m.At(1, 1), m.At(1, 0), 1e-12)

	assert.Greater(t, m.At(0, 1), 0.5)
	assert.Less(t, m.At(0, 2), 0.3)
	assert.Less(t, m.At(1, 2), 0.3)
	assert.Greater(t, m.At(0, 1), 3*m.At(0, 2))

	// BS(k,r,n) depends on both channels symmetrically.
	assert.InDelta(t, m.At(0, 2), m.At(2, 0), 1e-12)
	assert.InDelta(t, m.At(1, 2), m.At(2, 1), 1e-12)
}

func TestPairwiseMatrixIdenticalChannels(t *testing.T) {
	sine := testutil.Sine(testSamples, 7.3, testRate, 0)
	rec, err := FromChannels([][]float64{sine, sine, sine, sine}, testRate)
	require.NoError(t, err)
	e := newTestEngine(t, rec, testConfig())

	m, err := e.PairwiseMatrix(context.Background())
	require.NoError(t, err)

	// Every cell is close to (rank-1)/(PRef·L) = 4/4.1.
	rows, cols := m.Dims()
	for k := range rows {
		for r := range cols {
			assert.Greater(t, m.At(k, r), 0.9, "cell %d,%d", k, r)
			assert.InDelta(t, m.At(0, 0), m.At(k, r), 1e-12, "cell %d,%d", k, r)
		}
	}
}

func TestPairwiseMatrixIsMeanOfBivariate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, coupledRecording(t), testConfig())

	m, err := e.PairwiseMatrix(ctx)
	require.NoError(t, err)

	for _, pair := range [][2]int{{0, 1}, {0, 2}, {2, 2}} {
		var sum float64
		for _, n := range e.Positions() {
			bs, err := e.Bivariate(ctx, pair[0], pair[1], n)
			require.NoError(t, err)
			sum += bs
		}
		assert.InDelta(t, sum/float64(len(e.Positions())), m.At(pair[0], pair[1]), 1e-9)
	}
}

func TestChannelLikelihoodIsMeanOfLikelihood(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, coupledRecording(t), testConfig())

	sl, err := e.ChannelLikelihoods(ctx)
	require.NoError(t, err)

	for k := range 3 {
		var sum float64
		for _, n := range e.Positions() {
			s, err := e.Likelihood(ctx, k, n)
			require.NoError(t, err)
			sum += s
		}
		assert.InDelta(t, sum/float64(len(e.Positions())), sl[k], 1e-9, "channel %d", k)

		one, err := e.ChannelLikelihood(ctx, k)
		require.NoError(t, err)
		assert.InDelta(t, sl[k], one, 0)
	}
	assert.Greater(t, sl[0], sl[2])
}

func TestSingleChannelRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, noiseRecording(t, 1, testSamples), testConfig())
	n := e.Positions()[0]

	_, err := e.PairwiseMatrix(ctx)
	require.ErrorIs(t, err, ErrInvalidParameters)
	_, err = e.ChannelLikelihoods(ctx)
	require.ErrorIs(t, err, ErrInvalidParameters)
	_, err = e.Likelihood(ctx, 0, n)
	require.ErrorIs(t, err, ErrInvalidParameters)
	_, err = e.Bivariate(ctx, 0, 0, n)
	require.ErrorIs(t, err, ErrInvalidParameters)

	// Per-channel thresholds do not need a second channel.
	_, err = e.Threshold(ctx, 0, n)
	require.NoError(t, err)
}

func TestExhaustedSearchPoisonsOutputs(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxSteps = 1
	e := newTestEngine(t, noiseRecording(t, 3, testSamples), cfg)
	n := e.Positions()[0]

	eps, err := e.Threshold(ctx, 0, n)
	require.ErrorIs(t, err, ErrThresholdSearchExhausted)
	assert.True(t, math.IsNaN(eps))

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Channel)
	assert.Equal(t, n, se.Position)
	assert.Equal(t, int64(1), se.MaxSteps)

	// The poisoned entry is cached, not retried.
	_, again := e.Threshold(ctx, 0, n)
	assert.ErrorIs(t, again, ErrThresholdSearchExhausted)

	m, err := e.PairwiseMatrix(ctx)
	require.ErrorIs(t, err, ErrThresholdSearchExhausted)
	require.NotNil(t, m)
	var pe *PoisonedError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, pe.Cells, 9)
	assert.NotEmpty(t, pe.Causes)
	for k := range 3 {
		for r := range 3 {
			assert.True(t, math.IsNaN(m.At(k, r)), "cell %d,%d", k, r)
		}
	}

	sl, err := e.ChannelLikelihoods(ctx)
	require.ErrorAs(t, err, &pe)
	require.Len(t, sl, 3)
	for _, v := range sl {
		assert.True(t, math.IsNaN(v))
	}

	s, err := e.Likelihood(ctx, 1, n)
	require.ErrorIs(t, err, ErrThresholdSearchExhausted)
	assert.True(t, math.IsNaN(s))
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, coupledRecording(t), testConfig())

	first, err := e.PairwiseMatrix(ctx)
	require.NoError(t, err)
	again, err := e.PairwiseMatrix(ctx)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, again))

	e.Reset()
	fresh, err := e.PairwiseMatrix(ctx)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, fresh))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, parallel := range []bool{false, true} {
		cfg := testConfig()
		cfg.EnableParallel = parallel
		cfg.Workers = 4
		e := newTestEngine(t, noiseRecording(t, 3, testSamples), cfg)

		_, err := e.PairwiseMatrix(ctx)
		require.ErrorIs(t, err, context.Canceled)
		_, err = e.ChannelLikelihoods(ctx)
		require.ErrorIs(t, err, context.Canceled)
		_, err = e.Threshold(ctx, 0, e.Positions()[0])
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestProgressReported(t *testing.T) {
	var stages []Progress
	cfg := testConfig()
	cfg.Progress = func(p Progress) { stages = append(stages, p) }
	e := newTestEngine(t, noiseRecording(t, 3, testSamples), cfg)

	_, err := e.PairwiseMatrix(context.Background())
	require.NoError(t, err)

	require.Len(t, stages, 6)
	assert.Equal(t, Progress{Stage: StageThresholds, Done: 3, Total: 3}, stages[2])
	assert.Equal(t, Progress{Stage: StageMatrix, Done: 3, Total: 3}, stages[5])
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
