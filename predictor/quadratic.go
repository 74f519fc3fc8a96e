package predictor

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/insertion-control/info"
)

// Quadratic is the V2 least-squares quadratic predictor (§4.4), used for
// thrust timing. It is ported from the normal-equations regression in
// original_source/src/predictor/quadratic_regression.rs, which used
// nalgebra's DMatrix; here the equivalent overdetermined solve is done with
// gonum.org/v1/gonum/mat (the linear-algebra library the teacher's go.mod
// carries for motionplan/kinematics).
type Quadratic struct {
	// Size is the regression window size (LR_SIZE in the spec, fixed at 5).
	Size int
	// MaxAge rejects a prediction if the oldest surviving sample in the
	// window is staler than this (LR_SIZE * 25ms in the spec).
	MaxAge time.Duration
	// MaxLatency rejects a prediction if the window's mean inter-sample
	// interval exceeds this.
	MaxLatency time.Duration
}

// NewQuadratic builds the V2 predictor with the spec's fixed window size (5).
func NewQuadratic(maxAge, maxLatency time.Duration) *Quadratic {
	return &Quadratic{Size: 5, MaxAge: maxAge, MaxLatency: maxLatency}
}

// Predict implements Predictor.
func (q *Quadratic) Predict(samples []info.DistanceSample, asOf time.Time) (Func, bool) {
	survivors := make([]info.DistanceSample, 0, len(samples))
	for _, s := range samples {
		if s.OK() {
			survivors = append(survivors, s)
		}
	}
	if len(survivors) < q.Size {
		return nil, false
	}
	window := survivors[len(survivors)-q.Size:]

	if asOf.Sub(window[0].Timestamp) > q.MaxAge {
		return nil, false
	}

	intervalsMS := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		intervalsMS = append(intervalsMS, float64(window[i].Timestamp.Sub(window[i-1].Timestamp).Milliseconds()))
	}
	meanMS := 0.0
	for _, v := range intervalsMS {
		meanMS += v
	}
	meanMS /= float64(len(intervalsMS))
	if meanMS > float64(q.MaxLatency.Milliseconds()) {
		return nil, false
	}

	coefs, ok := regress(window)
	if !ok {
		return nil, false
	}
	c0, c1, c2 := coefs[0], coefs[1], coefs[2]
	return func(tauMS float64) float64 {
		return c0 + c1*tauMS + c2*tauMS*tauMS
	}, true
}

// regress solves the least-squares quadratic fit of window's values against
// time-before-latest (negated, so the fitted function is naturally
// parameterised by *future* offset from the latest sample).
func regress(window []info.DistanceSample) ([3]float64, bool) {
	latest := window[len(window)-1].Timestamp
	rows := len(window)

	xData := make([]float64, 0, rows*3)
	yData := make([]float64, 0, rows)
	for _, s := range window {
		t := float64(latest.Sub(s.Timestamp).Milliseconds())
		xData = append(xData, 1, -t, t*t)
		yData = append(yData, float64(s.ValueNM))
	}

	x := mat.NewDense(rows, 3, xData)
	y := mat.NewVecDense(rows, yData)

	var coefs mat.VecDense
	if err := coefs.SolveVec(x, y); err != nil {
		return [3]float64{}, false
	}
	return [3]float64{coefs.AtVec(0), coefs.AtVec(1), coefs.AtVec(2)}, true
}
