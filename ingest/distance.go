// Package ingest implements DistanceIngest and StateIngest (§4.3, actuator
// half of §4.2): the two activities that drain sampler replies into Info,
// run the safety checks, and raise the move-permit signal.
package ingest

import (
	"context"
	"math"

	"go.viam.com/insertion-control/config"
	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/info"
	"go.viam.com/insertion-control/logging"
	"go.viam.com/insertion-control/phase"
	"go.viam.com/insertion-control/predictor"
)

// Distance is DistanceIngest (§4.3).
type Distance struct {
	results   <-chan device.DistanceResult
	info      *info.Info
	permit    *info.Permit
	predictor predictor.Predictor
	cfg       config.Config
	logger    logging.Logger
}

// NewDistance constructs DistanceIngest. The predictor passed in is the V1
// drift-detection variant (§4.3 step 4); thrust timing uses a separate V2
// instance owned by the sequencer.
func NewDistance(
	results <-chan device.DistanceResult,
	info *info.Info,
	permit *info.Permit,
	drift predictor.Predictor,
	cfg config.Config,
	logger logging.Logger,
) *Distance {
	return &Distance{results: results, info: info, permit: permit, predictor: drift, cfg: cfg, logger: logger}
}

// Run drains results until ctx is cancelled.
func (d *Distance) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-d.results:
			d.ingest(res)
		}
	}
}

func (d *Distance) ingest(res device.DistanceResult) {
	now := info.Now()
	sample := info.DistanceSample{ValueNM: res.ValueNM, Err: res.Err, Timestamp: now}
	d.info.AppendDistance(sample)

	if res.Err != nil {
		return
	}

	if d.info.Phase().CanPanic() && sample.ValueNM < d.cfg.MinClearanceNM/2 {
		d.info.TransitionTo(phase.Panic, false)
		d.logger.Warnw("clearance breach, entering panic", "gap_nm", sample.ValueNM)
	}

	if d.info.Phase().CanPanic() {
		d.checkDrift(sample)
	}

	if sample.ValueNM < d.cfg.PremoveTriggerNM {
		d.info.PublishNotifiedSnapshot()
		d.permit.Signal()
	}
}

// checkDrift implements Panic check B (§4.3 step 4). The predictor is
// evaluated over history strictly older than sample, so its extrapolated
// value at sample's timestamp is a genuine forecast rather than a trivial
// self-comparison.
func (d *Distance) checkDrift(sample info.DistanceSample) {
	snapshot := d.info.DistanceSnapshot()
	if len(snapshot) == 0 {
		return
	}
	history := snapshot[:len(snapshot)-1]

	f, ok := d.predictor.Predict(history, sample.Timestamp)
	anomalous := !ok
	if ok {
		reference := history[len(history)-1]
		tauMS := float64(sample.Timestamp.Sub(reference.Timestamp).Milliseconds())
		predicted := f(tauMS)
		if math.Abs(float64(sample.ValueNM)-predicted) > float64(d.cfg.MaxPredErrNM) {
			anomalous = true
		}
	}

	var streak uint64
	if anomalous {
		streak = d.info.IncrementConsecutiveErrors()
	} else {
		d.info.ResetConsecutiveErrors()
		return
	}

	if streak > d.cfg.MaxConsecErr && d.info.Phase().CanPanic() {
		d.info.TransitionTo(phase.Panic, false)
		d.logger.Warnw("prediction drift burst, entering panic", "consecutive_errors", streak)
	}
}
