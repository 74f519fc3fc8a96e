package predictor

import (
	"time"

	"github.com/montanaflynn/stats"

	"go.viam.com/insertion-control/info"
)

// Taylor is the V1 local Taylor approximator (§4.4), used for drift
// detection. It is ported from the backward-difference construction in
// original_source/src/predictor/taylor_approx.rs, generalized to an
// arbitrary order N (the spec fixes N=2).
type Taylor struct {
	// N is the Taylor polynomial order; the spec fixes this at 2.
	N int
	// MaxLatency rejects a prediction if the newest sample in the window is
	// older than this, or if the window's mean inter-sample interval
	// exceeds it.
	MaxLatency time.Duration
	// MaxLatencyStd rejects a prediction if the window's inter-sample
	// interval standard deviation exceeds this.
	MaxLatencyStd time.Duration
}

// NewTaylor builds the V1 predictor with the spec's fixed order (2).
func NewTaylor(maxLatency, maxLatencyStd time.Duration) *Taylor {
	return &Taylor{N: 2, MaxLatency: maxLatency, MaxLatencyStd: maxLatencyStd}
}

// Predict implements Predictor.
func (t *Taylor) Predict(samples []info.DistanceSample, asOf time.Time) (Func, bool) {
	windowLen := t.N + 1
	if len(samples) < windowLen {
		return nil, false
	}
	window := samples[len(samples)-windowLen:]

	newest := window[len(window)-1]
	if asOf.Sub(newest.Timestamp) > t.MaxLatency {
		return nil, false
	}

	intervalsMS := make([]float64, 0, windowLen-1)
	for i := 1; i < len(window); i++ {
		intervalsMS = append(intervalsMS, float64(window[i].Timestamp.Sub(window[i-1].Timestamp).Milliseconds()))
	}
	meanMS, err := stats.Mean(intervalsMS)
	if err != nil {
		return nil, false
	}
	stdMS, err := stats.StandardDeviation(intervalsMS)
	if err != nil {
		return nil, false
	}
	if meanMS > float64(t.MaxLatency.Milliseconds()) || stdMS > float64(t.MaxLatencyStd.Milliseconds()) {
		return nil, false
	}

	values := make([]float64, windowLen)
	for i, s := range window {
		if !s.OK() {
			return nil, false
		}
		values[i] = float64(s.ValueNM)
	}

	coefs := taylorCoefs(values, t.N, meanMS)
	return func(tauMS float64) float64 {
		v := 0.0
		tauPow := 1.0
		for _, c := range coefs {
			v += c * tauPow
			tauPow *= tauMS
		}
		return v
	}, true
}

// taylorCoefs computes successive backward differences of data (oldest
// first), each scaled by the mean sample interval and divided by the
// running factorial, exactly as _get_taylor_coefs in
// original_source/src/predictor/taylor_approx.rs does.
func taylorCoefs(data []float64, n int, latencyMS float64) []float64 {
	current := append([]float64(nil), data...)
	coefs := make([]float64, 0, n+1)
	coefs = append(coefs, current[len(current)-1])

	factorial := 1.0
	for i := 0; i < n; i++ {
		factorial *= float64(i + 1)
		next := make([]float64, len(current)-1)
		for j := range next {
			next[j] = (current[j+1] - current[j]) / latencyMS
		}
		coefs = append(coefs, next[len(next)-1]/factorial)
		current = next
	}
	return coefs
}
