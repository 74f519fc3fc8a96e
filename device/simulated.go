package device

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/utils"

	"go.viam.com/insertion-control/logging"
)

// SurfaceFunc reports the surface gap, in nm, as a function of elapsed
// simulation time. DefaultSurfaceFunc reproduces boundary scenario 1 from
// SPEC_FULL.md, ported from the quasi-periodic brain_location_fn closure in
// original_source/src/robot_chat.rs.
type SurfaceFunc func(elapsed time.Duration) uint64

// DefaultSurfaceFunc is s(t) = 7e6 + 5e5*sin(6t/1000) + 1e6*sin(t/1000), t in ms.
//
// This is the literal scenario-1 formula and is never offset by the
// inserter's own position, matching brain_location_fn in
// original_source/src/robot_chat.rs exactly (the reference harness compares
// this raw reading against MIN_CLEARANCE directly too — see
// process_distances in original_source/src/controller.rs). At this
// amplitude the reading never nears MIN_CLEARANCE/PREMOVE_TRIGGER, so a run
// against it calibrates but every in-brain thrust times out waiting for
// MovePermit; it is kept for scenario-1 fidelity and for exercising
// DistanceIngest/Sequencer against a calibration-only surface, not as a
// demonstration of a completed insertion. Use DemoSurfaceFunc for that.
func DefaultSurfaceFunc(elapsed time.Duration) uint64 {
	t := float64(elapsed.Milliseconds())
	v := 7_000_000.0 + 5e5*math.Sin(6*t/1000) + 1e6*math.Sin(t/1000)
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// DemoSurfaceFunc oscillates in the few-hundred-thousand-nm band around
// PREMOVE_TRIGGER/MIN_CLEARANCE so a simulated run actually crosses the
// premove threshold and drives in-brain thrusts to completion. It has no
// counterpart in original_source; it exists only so cmd/insertion-control
// has a runnable default that reaches Success outcomes.
func DemoSurfaceFunc(elapsed time.Duration) uint64 {
	t := float64(elapsed.Milliseconds())
	v := 300_000.0 + 1e5*math.Sin(t/2000) + 2e4*math.Sin(t/300)
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// FaultRates controls independent fault-injection probabilities for the two
// simulated channels, mirroring distance_errors/move_errors in
// original_source/src/robot_chat.rs.
type FaultRates struct {
	// Distance is the probability a distance request returns a
	// CommunicationError instead of a reading.
	Distance float64
	// Move is the probability a move completes only partially and returns a
	// ConnectionError.
	Move float64
}

const (
	needleVelocityNMPerMS   = 250_000.0
	inserterVelocityNMPerMS = 9_500.0
	simDistanceLatency      = 15 * time.Millisecond
)

// Simulated is a simulated two-axis actuator plus co-located distance
// sensor, serving the §6 channel contracts. It is the out-of-scope
// collaborator named in §1, supplemented per SPEC_FULL.md with a
// trapezoidal-profile needle move and a constant-velocity inserter move.
type Simulated struct {
	Channels Channels

	clock       clock.Clock
	rng         *rand.Rand
	surface     SurfaceFunc
	faults      FaultRates
	needleAccel float64
	logger      logging.Logger

	initTime time.Time

	mu        sync.Mutex
	inserterZ uint64
	needleZ   uint64
}

// NewSimulated constructs a simulated device. needleAccelNMPerMS2 should
// match config.Config.NeedleAccelNMPerMS2 so the simulated needle motion is
// consistent with the controller's thrust-timing model.
func NewSimulated(
	channels Channels,
	clk clock.Clock,
	surface SurfaceFunc,
	faults FaultRates,
	needleAccelNMPerMS2 float64,
	logger logging.Logger,
) *Simulated {
	if surface == nil {
		surface = DefaultSurfaceFunc
	}
	return &Simulated{
		Channels:    channels,
		clock:       clk,
		rng:         rand.New(rand.NewSource(1)),
		surface:     surface,
		faults:      faults,
		needleAccel: needleAccelNMPerMS2,
		logger:      logger,
		initTime:    clk.Now(),
	}
}

// Run starts the three serving loops (distance, state, move) and blocks
// until ctx is cancelled or the dead channel fires.
func (s *Simulated) Run(ctx context.Context) {
	workers := utils.NewBackgroundStoppableWorkers(
		func(ctx context.Context) { s.serveDistance(ctx) },
		func(ctx context.Context) { s.serveState(ctx) },
		func(ctx context.Context) { s.serveMoves(ctx) },
	)
	defer workers.Stop()

	select {
	case <-ctx.Done():
	case <-s.Channels.Dead:
	}
}

func (s *Simulated) serveDistance(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.Channels.DistanceRequests:
			req := req
			utils.PanicCapturingGo(func() { s.replyDistance(ctx, req) })
		}
	}
}

func (s *Simulated) replyDistance(ctx context.Context, req DistanceRequest) {
	select {
	case <-s.clock.After(simDistanceLatency):
	case <-ctx.Done():
		return
	}
	if s.faults.Distance > 0 && s.rng.Float64() < s.faults.Distance {
		req.Reply <- DistanceResult{Err: CommunicationError("simulated sensor link error")}
		return
	}
	gap := s.surface(s.clock.Since(s.initTime))
	req.Reply <- DistanceResult{ValueNM: gap}
}

func (s *Simulated) serveState(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.Channels.StateRequests:
			s.mu.Lock()
			inserterZ, needleZ := s.inserterZ, s.needleZ
			s.mu.Unlock()
			req.Reply <- StateResult{InserterZNM: inserterZ, NeedleZNM: needleZ}
		}
	}
}

func (s *Simulated) serveMoves(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.Channels.MoveRequests:
			s.executeMove(ctx, req)
		}
	}
}

// executeMove simulates one move to completion before accepting the next;
// the real actuator cannot execute two moves concurrently either.
func (s *Simulated) executeMove(ctx context.Context, req MoveRequest) {
	s.mu.Lock()
	var start uint64
	switch req.Move.Axis {
	case InserterZAxis:
		start = s.inserterZ
	case NeedleZAxis:
		start = s.needleZ
	}
	s.mu.Unlock()

	willFault := s.faults.Move > 0 && s.rng.Float64() < s.faults.Move
	target := req.Move.TargetNM
	if willFault {
		partial := s.rng.Float64()
		target = partialTarget(start, req.Move.TargetNM, partial)
	}

	total := s.moveDuration(req.Move.Axis, start, target)
	select {
	case <-s.clock.After(total):
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	switch req.Move.Axis {
	case InserterZAxis:
		s.inserterZ = target
	case NeedleZAxis:
		s.needleZ = target
	}
	s.mu.Unlock()

	if willFault {
		req.Reply <- ConnectionError("simulated partial move fault")
		return
	}
	req.Reply <- nil
}

func (s *Simulated) moveDuration(axis Axis, start, target uint64) time.Duration {
	distance := math.Abs(float64(target) - float64(start))
	switch axis {
	case NeedleZAxis:
		return needleMoveDuration(distance, s.needleAccel)
	default:
		return time.Duration(distance/inserterVelocityNMPerMS) * time.Millisecond
	}
}

// needleMoveDuration implements the trapezoidal-velocity-profile total time
// from original_source/src/robot_chat.rs#calculate_needlez_move_time.
func needleMoveDuration(distanceNM, accel float64) time.Duration {
	if accel <= 0 {
		return 0
	}
	v := needleVelocityNMPerMS
	dMin := v * v / accel
	var totalMS float64
	if distanceNM < dMin {
		totalMS = 2.0 * math.Sqrt(distanceNM/accel)
	} else {
		tAccel := v / accel
		dAccel := 0.5 * accel * tAccel * tAccel
		dCruise := distanceNM - 2*dAccel
		tCruise := dCruise / v
		totalMS = tAccel + tCruise + tAccel
	}
	return time.Duration(totalMS * float64(time.Millisecond))
}

func partialTarget(start, target uint64, fraction float64) uint64 {
	delta := float64(target) - float64(start)
	return uint64(float64(start) + delta*fraction)
}
