// Package sequencer implements SequencerFSM (§4.5): the activity that
// consumes the commanded-depth list, drives the discrete phase graph, and
// times each thrust by intersecting the predicted surface motion with the
// needle's acceleration profile.
package sequencer

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/insertion-control/config"
	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/info"
	"go.viam.com/insertion-control/logging"
	"go.viam.com/insertion-control/phase"
	"go.viam.com/insertion-control/predictor"
	"go.viam.com/insertion-control/rootfind"
)

// rootFindMargin pads τ_max beyond the theoretical worst-case needle travel
// time, so a root sitting exactly at the boundary is not missed by the scan.
const rootFindMargin = 50.0

// FSM is SequencerFSM.
type FSM struct {
	channels  device.Channels
	info      *info.Info
	permit    *info.Permit
	predictor predictor.Predictor
	finder    rootfind.Finder
	cfg       config.Config
	clock     clock.Clock
	logger    logging.Logger
}

// New constructs SequencerFSM. predictor must be the V2 least-squares
// variant (§4.4, §4.5.5); the V1 variant belongs to DistanceIngest.
func New(
	channels device.Channels,
	inf *info.Info,
	permit *info.Permit,
	thrustPredictor predictor.Predictor,
	finder rootfind.Finder,
	cfg config.Config,
	clk clock.Clock,
	logger logging.Logger,
) *FSM {
	return &FSM{
		channels:  channels,
		info:      inf,
		permit:    permit,
		predictor: thrustPredictor,
		finder:    finder,
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
	}
}

// Run walks depths in order, returning one Outcome per depth that was
// actually processed (§6, P3) — a run truncated by a fatal actuator error
// stops short, per §7's "pipeline ends, remaining depths get no outcome".
func (f *FSM) Run(ctx context.Context, depths []uint64) []info.Outcome {
	for _, depth := range depths {
		if ctx.Err() != nil || f.info.Phase() == phase.Dead {
			break
		}
		outcome, fatal := f.runDepth(ctx, depth)
		if fatal {
			break
		}
		f.info.AppendOutcome(outcome)
	}
	f.info.TransitionTo(phase.Dead, true)
	f.signalDead()
	return f.info.Outcomes()
}

func (f *FSM) signalDead() {
	select {
	case f.channels.Dead <- struct{}{}:
	default:
	}
}

// runDepth drives one commanded depth to a definitive outcome (§4.5 steps
// 1-4). fatal reports a terminal actuator failure: the caller appends no
// outcome and stops the run.
func (f *FSM) runDepth(ctx context.Context, depth uint64) (info.Outcome, bool) {
	for {
		if ctx.Err() != nil {
			return info.Failure, true
		}
		switch f.info.Phase() {
		case phase.Dead:
			return info.Failure, true
		case phase.Panic:
			f.panicRoutine(ctx)
		case phase.OutOfBrainUncalibrated:
			f.calibrate(ctx)
		case phase.OutOfBrainCalibrated:
			outcome := f.insertIBOpenLoop(ctx, depth)
			if f.info.Phase() == phase.Dead {
				return info.Failure, true
			}
			return outcome, false
		default:
			// InBrain should never be observed at the top of this loop; a
			// stray observation here is treated as transient and re-polled.
		}
	}
}

// panicRoutine implements §4.5.1: drive both axes to 0, tagged
// from_panic=true throughout, then transition OutOfBrainUncalibrated once
// both moves land.
func (f *FSM) panicRoutine(ctx context.Context) {
	if !f.moveBot(ctx, device.Move{Axis: device.NeedleZAxis, TargetNM: 0}, phase.Panic, true) {
		return
	}
	if !f.moveBot(ctx, device.Move{Axis: device.InserterZAxis, TargetNM: 0}, phase.Panic, true) {
		return
	}
	f.info.TransitionTo(phase.OutOfBrainUncalibrated, true)
}

// calibrate implements §4.5.2.
func (f *FSM) calibrate(ctx context.Context) {
	f.info.ResetConsecutiveErrors()
	f.info.ClearDistanceHistory()
	f.info.ClearPreMoveLocation()
	start := f.clock.Now()

	for {
		if ctx.Err() != nil {
			return
		}
		if f.info.DistanceLen() >= f.cfg.CalibrationSamples {
			if front, ok := f.info.DistanceFront(); ok && !front.Timestamp.Before(start) {
				break
			}
		}
		f.sleep(ctx, f.cfg.CalibrationPollInterval)
	}

	minD, ok := minNonError(f.info.DistanceSnapshot())
	if !ok || minD <= f.cfg.MinClearanceNM {
		f.logger.Errorw("calibration minimum-clearance check failed, retrying", "min_nm", minD)
		return
	}
	preMove := minD - f.cfg.MinClearanceNM
	f.info.SetPreMoveLocation(preMove)

	if !f.moveBot(ctx, device.Move{Axis: device.InserterZAxis, TargetNM: preMove}, phase.OutOfBrainUncalibrated, false) {
		return
	}
	if !f.moveBot(ctx, device.Move{Axis: device.NeedleZAxis, TargetNM: 0}, phase.OutOfBrainCalibrated, false) {
		return
	}
	f.info.ClearDistanceHistory()
}

func minNonError(samples []info.DistanceSample) (uint64, bool) {
	var min uint64
	found := false
	for _, s := range samples {
		if !s.OK() {
			continue
		}
		if !found || s.ValueNM < min {
			min = s.ValueNM
			found = true
		}
	}
	return min, found
}

// insertIBOpenLoop implements §4.5.3.
func (f *FSM) insertIBOpenLoop(ctx context.Context, depth uint64) info.Outcome {
	f.info.TransitionTo(phase.InBrain, false)
	start := f.clock.Now()

	for f.info.Phase() != phase.Panic && f.clock.Now().Sub(start) < f.cfg.MaxIBTime {
		if err := f.awaitPermitOrDeadline(ctx, start); err != nil {
			break
		}
		if f.info.Phase() == phase.Panic {
			break
		}

		target, ok := f.computeThrustTarget(depth)
		if !ok {
			continue
		}

		err := f.doMove(ctx, device.Move{Axis: device.NeedleZAxis, TargetNM: target})
		switch {
		case err == nil:
			f.retract(ctx)
			return info.Success
		case device.IsPositionError(err):
			f.info.TransitionTo(phase.Dead, true)
		default:
			f.logger.Warnw("in-brain move failed, retracting", "err", err)
			f.retract(ctx)
			return info.Failure
		}
		break
	}

	switch f.info.Phase() {
	case phase.Panic:
		f.panicRoutine(ctx)
	case phase.Dead:
		// a fatal actuator error already ended the run; no further motion.
	default:
		f.retract(ctx)
	}
	return info.Failure
}

// awaitPermitOrDeadline blocks for a MovePermit, the MAX_IB_TIME deadline
// (measured against the injected clock, not wall time), or ctx cancellation.
func (f *FSM) awaitPermitOrDeadline(ctx context.Context, start time.Time) error {
	remaining := f.cfg.MaxIBTime - f.clock.Now().Sub(start)
	if remaining <= 0 {
		return context.DeadlineExceeded
	}
	select {
	case <-f.permit.C():
		return nil
	case <-f.clock.After(remaining):
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retract implements the common "needle -> 0, transition OOBC" recovery
// shared by a successful thrust, a failed thrust, and a MAX_IB_TIME timeout.
func (f *FSM) retract(ctx context.Context) {
	f.moveBot(ctx, device.Move{Axis: device.NeedleZAxis, TargetNM: 0}, phase.OutOfBrainCalibrated, false)
}

// computeThrustTarget implements §4.5.5. f(τ) is the V2 predictor evaluated
// over the MovePermit snapshot; g(τ)=(A/4)τ² is the needle's advance
// profile; h(τ)=f(τ)+D-g(τ) is handed to the root finder as an opaque
// function rather than as extracted polynomial coefficients, since
// rootfind.Finder operates on any continuous Func (§1: the root finder is a
// named external collaborator, not part of the core's math).
func (f *FSM) computeThrustTarget(depth uint64) (uint64, bool) {
	snapshot := f.info.NotifiedSnapshot().Samples
	if len(snapshot) == 0 {
		return 0, false
	}
	latest := snapshot[len(snapshot)-1]
	if !latest.OK() || latest.ValueNM > f.cfg.MaxDistFromPremoveToMoveNM {
		return 0, false
	}

	fn, ok := f.predictor.Predict(snapshot, latest.Timestamp)
	if !ok {
		return 0, false
	}

	depthF := float64(depth)
	accel := f.cfg.NeedleAccelNMPerMS2
	h := func(tauMS float64) float64 {
		return fn(tauMS) + depthF - (accel/4.0)*tauMS*tauMS
	}
	tauMax := math.Sqrt(4.0*float64(f.cfg.CommandedDepthMaxNM)/accel) + rootFindMargin

	tauStar, ok := f.finder.SmallestNonNegativeRoot(h, 0, tauMax)
	if !ok {
		return 0, false
	}

	target := math.Floor(fn(tauStar)) + depthF
	if target < 0 {
		return 0, false
	}
	return uint64(target), true
}

// moveBot implements §4.5.4: issue the move, retry recoverable errors
// indefinitely, escalate PositionError to Dead, and transition to nextPhase
// tagged fromPanic on success. Used only for non-in-brain motions.
func (f *FSM) moveBot(ctx context.Context, move device.Move, nextPhase phase.Phase, fromPanic bool) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		err := f.doMove(ctx, move)
		switch {
		case err == nil:
			f.info.TransitionTo(nextPhase, fromPanic)
			return true
		case device.IsPositionError(err):
			f.info.TransitionTo(phase.Dead, true)
			return false
		default:
			f.logger.Warnw("recoverable actuator error, retrying move", "move", move.String(), "err", err)
			f.sleep(ctx, f.cfg.ThrustRetryInterval)
		}
	}
}

func (f *FSM) doMove(ctx context.Context, move device.Move) error {
	reply := make(chan error, 1)
	select {
	case f.channels.MoveRequests <- device.MoveRequest{Move: move, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FSM) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-f.clock.After(d):
	case <-ctx.Done():
	}
}
