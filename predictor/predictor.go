// Package predictor implements the pluggable surface-motion predictors
// (§4.4). Both variants share one contract: given a distance history
// (possibly containing error-variant samples) they either decline ("not
// yet able to decide") or return a function of future-offset milliseconds
// to predicted gap in nm.
package predictor

import (
	"time"

	"go.viam.com/insertion-control/info"
)

// Func predicts the surface gap, in nm, tauMS milliseconds after the
// predictor's reference timestamp. It is a plain float64 so the root finder
// and the drift check can both evaluate it directly.
type Func func(tauMS float64) float64

// Predictor is the capability both V1 (Taylor) and V2 (least-squares) satisfy.
// asOf is the "now" the predictor should judge staleness against;
// DistanceIngest passes the timestamp of the sample being checked and
// SequencerFSM the timestamp of the newest snapshot sample.
type Predictor interface {
	// Predict returns (f, true) if the history supports a prediction, or
	// (nil, false) if the predictor declines.
	Predict(samples []info.DistanceSample, asOf time.Time) (Func, bool)
}
