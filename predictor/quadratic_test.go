package predictor

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/insertion-control/info"
)

// trueSurface is the quadratic the synthetic samples below are drawn from,
// parameterised by ms-after-the-latest-sample (tau=0 is the latest sample).
// Its value is a whole number of nm at every sample offset below, so the
// uint64 samples lie exactly on it.
func trueSurface(tauMS float64) float64 {
	return 1000 + 2*tauMS + 0.04*tauMS*tauMS
}

func quadraticSamples(base time.Time) []info.DistanceSample {
	offsets := []int{-100, -75, -50, -25, 0}
	samples := make([]info.DistanceSample, len(offsets))
	for i, off := range offsets {
		samples[i] = info.DistanceSample{
			ValueNM:   uint64(math.Round(trueSurface(float64(off)))),
			Timestamp: base.Add(time.Duration(off) * time.Millisecond),
		}
	}
	return samples
}

func TestQuadraticDeclinesWithTooFewSurvivors(t *testing.T) {
	q := NewQuadratic(125*time.Millisecond, 50*time.Millisecond)
	base := time.Now()
	samples := quadraticSamples(base)[:4]
	_, ok := q.Predict(samples, base)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestQuadraticDeclinesWhenOldestTooStale(t *testing.T) {
	q := NewQuadratic(50*time.Millisecond, 50*time.Millisecond)
	base := time.Now()
	samples := quadraticSamples(base)
	_, ok := q.Predict(samples, base)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestQuadraticDropsErrorVariants(t *testing.T) {
	q := NewQuadratic(125*time.Millisecond, 50*time.Millisecond)
	base := time.Now()
	samples := quadraticSamples(base)
	withNoise := append([]info.DistanceSample{{Err: someErr{}, Timestamp: base.Add(-125 * time.Millisecond)}}, samples...)
	f, ok := q.Predict(withNoise, base)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(f(0)-trueSurface(0)) < 1, test.ShouldBeTrue)
}

func TestQuadraticRecoversExactFit(t *testing.T) {
	q := NewQuadratic(125*time.Millisecond, 50*time.Millisecond)
	base := time.Now()
	samples := quadraticSamples(base)
	f, ok := q.Predict(samples, base)
	test.That(t, ok, test.ShouldBeTrue)
	for _, tau := range []float64{-100, -50, 0, 25, 50} {
		test.That(t, math.Abs(f(tau)-trueSurface(tau)) < 1e-3, test.ShouldBeTrue)
	}
}

func TestQuadraticIdempotence(t *testing.T) {
	q := NewQuadratic(125*time.Millisecond, 50*time.Millisecond)
	base := time.Now()
	samples := quadraticSamples(base)
	f1, ok1 := q.Predict(samples, base)
	f2, ok2 := q.Predict(samples, base)
	test.That(t, ok1, test.ShouldBeTrue)
	test.That(t, ok2, test.ShouldBeTrue)
	for _, tau := range []float64{-10, 0, 40} {
		test.That(t, f1(tau), test.ShouldEqual, f2(tau))
	}
}
