package synchrony

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-synchrony/internal/testutil"
)

const (
	testRate    = 100.0 // derived W2 = 50
	testSamples = 2000
)

// testConfig returns the default configuration run sequentially.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.EnableParallel = false
	return cfg
}

// noiseRecording returns channels of independent white noise.
func noiseRecording(t *testing.T, channels, samples int) *Recording {
	t.Helper()
	data := make([][]float64, channels)
	for k := range data {
		data[k] = testutil.Noise(samples, 1, uint64(k+1))
	}
	rec, err := FromChannels(data, testRate)
	require.NoError(t, err)
	return rec
}

// coupledRecording returns two identical sine channels and one noise channel.
func coupledRecording(t *testing.T) *Recording {
	t.Helper()
	sine := testutil.Sine(testSamples, 7.3, testRate, 0)
	rec, err := FromChannels([][]float64{
		sine,
		sine,
		testutil.Noise(testSamples, 1, 42),
	}, testRate, "a", "b", "noise")
	require.NoError(t, err)
	return rec
}

func newTestEngine(t *testing.T, rec *Recording, cfg *Config) *Engine {
	t.Helper()
	e, err := New(rec, cfg)
	require.NoError(t, err)
	return e
}
