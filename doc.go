// Package synchrony computes synchronization likelihood between the channels
// of a multichannel recording such as EEG.
//
// Each channel is delay-embedded: the vector of channel k at position n holds
// the samples x[k][n], x[k][n+T], ..., x[k][n+(d-1)T]. For every position an
// adaptive distance threshold E(k,n) is chosen so that a fraction just below
// PRef of the neighbouring vectors lie closer than it. Neighbours are the
// positions m with W1 < |n-m| <= W2, where W1 = (d-1)T excludes overlapping
// vectors and W2 defaults to half the sample rate.
//
// Two channels are synchronised when they recur at the same neighbours. The
// engine provides:
//
//   - Threshold: E(k,n)
//   - Recurrences: H(n,m), the number of channels recurring at m relative to n
//   - Likelihood and ChannelLikelihoods: S(k,n) and its mean SL(k)
//   - Bivariate and PairwiseMatrix: BS(k,r,n) and the M×M matrix of its means
//
// Independent channels give values near PRef; identical channels give values
// near 1.
//
// # Quick Start
//
// For a pairwise matrix with default parameters:
//
//	m, err := synchrony.PairwiseLikelihood(channels, 256)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For repeated queries against one recording:
//
//	rec, err := synchrony.FromChannels(channels, 256, labels...)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	e, err := synchrony.New(rec, synchrony.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sl, err := e.ChannelLikelihoods(ctx)
//
// # Caching and concurrency
//
// An Engine caches every threshold and recurrence row it computes for the
// lifetime of the run. Thresholds are pure functions of the recording and
// parameters, so cached and freshly computed values are identical. With
// Config.EnableParallel the aggregates fill per-channel threshold tables
// concurrently and then compute matrix rows concurrently; counts are
// accumulated as integers, so results are bit-identical to sequential runs.
//
// # Exhausted searches
//
// The threshold search is bounded by Config.MaxSteps. A position whose search
// runs out of steps is poisoned: queries that need it return NaN together
// with an error matching ErrThresholdSearchExhausted, and aggregates return
// their remaining values alongside a *PoisonedError.
package synchrony
