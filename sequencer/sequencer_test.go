package sequencer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	realclock "github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/insertion-control/config"
	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/info"
	"go.viam.com/insertion-control/logging"
	"go.viam.com/insertion-control/phase"
	"go.viam.com/insertion-control/predictor"
	"go.viam.com/insertion-control/rootfind"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.CalibrationSamples = 3
	cfg.CalibrationPollInterval = time.Millisecond
	cfg.ThrustRetryInterval = time.Millisecond
	cfg.MaxIBTime = 2 * time.Second
	return cfg
}

func newTestFSM(t *testing.T, channels device.Channels, inf *info.Info, permit *info.Permit, cfg config.Config) *FSM {
	return New(
		channels,
		inf,
		permit,
		predictor.NewQuadratic(cfg.LRMaxAge, cfg.MaxLatency),
		rootfind.NewBisection(),
		cfg,
		realclock.New(),
		logging.NewTestLogger(t),
	)
}

// serveMoves replies errs[i] to the i'th move request received (nil beyond
// len(errs)), recording every move issued.
func serveMoves(channels device.Channels, errs []error) *[]device.Move {
	var moves []device.Move
	go func() {
		i := 0
		for req := range channels.MoveRequests {
			moves = append(moves, req.Move)
			var err error
			if i < len(errs) {
				err = errs[i]
			}
			i++
			req.Reply <- err
		}
	}()
	return &moves
}

func TestMoveBotSucceeds(t *testing.T) {
	channels := device.NewChannels(4)
	serveMoves(channels, nil)
	inf := info.New(10, 10)
	inf.TransitionTo(phase.OutOfBrainUncalibrated, false)
	cfg := testConfig()
	f := newTestFSM(t, channels, inf, info.NewPermit(), cfg)

	ok := f.moveBot(context.Background(), device.Move{Axis: device.InserterZAxis, TargetNM: 0}, phase.OutOfBrainCalibrated, false)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, inf.Phase(), test.ShouldEqual, phase.OutOfBrainCalibrated)
}

func TestMoveBotRetriesRecoverableThenSucceeds(t *testing.T) {
	channels := device.NewChannels(4)
	serveMoves(channels, []error{device.MoveError("stall"), device.ConnectionError("lost link"), nil})
	inf := info.New(10, 10)
	cfg := testConfig()
	f := newTestFSM(t, channels, inf, info.NewPermit(), cfg)

	ok := f.moveBot(context.Background(), device.Move{Axis: device.NeedleZAxis, TargetNM: 0}, phase.OutOfBrainCalibrated, false)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, inf.Phase(), test.ShouldEqual, phase.OutOfBrainCalibrated)
}

func TestMoveBotPositionErrorGoesDead(t *testing.T) {
	channels := device.NewChannels(4)
	serveMoves(channels, []error{device.PositionError("travel limit")})
	inf := info.New(10, 10)
	cfg := testConfig()
	f := newTestFSM(t, channels, inf, info.NewPermit(), cfg)

	ok := f.moveBot(context.Background(), device.Move{Axis: device.NeedleZAxis, TargetNM: 0}, phase.OutOfBrainCalibrated, false)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, inf.Phase(), test.ShouldEqual, phase.Dead)
}

func TestCalibrateHappyPath(t *testing.T) {
	channels := device.NewChannels(4)
	moves := serveMoves(channels, nil)
	inf := info.New(10, 10)
	cfg := testConfig()
	f := newTestFSM(t, channels, inf, info.NewPermit(), cfg)

	done := make(chan struct{})
	go func() {
		f.calibrate(context.Background())
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	now := time.Now()
	for _, v := range []uint64{300_000, 250_000, 280_000} {
		inf.AppendDistance(info.DistanceSample{ValueNM: v, Timestamp: now})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("calibrate never returned")
	}

	test.That(t, inf.Phase(), test.ShouldEqual, phase.OutOfBrainCalibrated)
	preMove, ok := inf.PreMoveLocation()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, preMove, test.ShouldEqual, uint64(250_000-cfg.MinClearanceNM))
	test.That(t, inf.DistanceLen(), test.ShouldEqual, 0)
	test.That(t, len(*moves), test.ShouldEqual, 2)
}

func TestInsertIBOpenLoopSuccess(t *testing.T) {
	channels := device.NewChannels(4)
	moves := serveMoves(channels, nil)
	inf := info.New(10, 10)
	inf.TransitionTo(phase.OutOfBrainCalibrated, false)
	permit := info.NewPermit()
	cfg := testConfig()
	f := newTestFSM(t, channels, inf, permit, cfg)

	base := time.Now()
	// 5 ms spacing keeps the mean interval under the V2 predictor's
	// MaxLatency (18 ms), so it does not decline.
	offsets := []int{-20, -15, -10, -5, 0}
	samples := make([]info.DistanceSample, len(offsets))
	for i, off := range offsets {
		samples[i] = info.DistanceSample{ValueNM: 150_000, Timestamp: base.Add(time.Duration(off) * time.Millisecond)}
	}
	for _, s := range samples {
		inf.AppendDistance(s)
	}
	inf.PublishNotifiedSnapshot()
	permit.Signal()

	outcome := f.insertIBOpenLoop(context.Background(), 3_000_000)
	test.That(t, outcome, test.ShouldEqual, info.Success)
	test.That(t, inf.Phase(), test.ShouldEqual, phase.OutOfBrainCalibrated)
	test.That(t, len(*moves), test.ShouldEqual, 2) // thrust, then retract
}

func TestInsertIBOpenLoopTimesOutWithoutPermit(t *testing.T) {
	channels := device.NewChannels(4)
	serveMoves(channels, nil)
	inf := info.New(10, 10)
	inf.TransitionTo(phase.OutOfBrainCalibrated, false)
	permit := info.NewPermit()
	cfg := testConfig()
	cfg.MaxIBTime = 20 * time.Millisecond
	f := newTestFSM(t, channels, inf, permit, cfg)

	outcome := f.insertIBOpenLoop(context.Background(), 3_000_000)
	test.That(t, outcome, test.ShouldEqual, info.Failure)
	test.That(t, inf.Phase(), test.ShouldEqual, phase.OutOfBrainCalibrated)
}

func TestRunProducesOneOutcomePerDepthAndSignalsDead(t *testing.T) {
	channels := device.NewChannels(4)
	serveMoves(channels, nil)
	inf := info.New(10, 10)
	permit := info.NewPermit()
	cfg := testConfig()
	cfg.CalibrationSamples = 2
	cfg.MaxIBTime = time.Second
	f := newTestFSM(t, channels, inf, permit, cfg)

	var appended int32
	go func() {
		for i := 0; i < 6000; i++ {
			ph := inf.Phase()
			// feed a large gap while still calibrating (min_d must exceed
			// MIN_CLEARANCE), then a near-trigger gap once the pre-move
			// location is established, so the same loop both calibrates
			// and drives the in-brain thrust.
			v := uint64(500_000)
			if ph != phase.OutOfBrainUncalibrated {
				v = 150_000
			}
			inf.AppendDistance(info.DistanceSample{ValueNM: v, Timestamp: time.Now()})
			atomic.AddInt32(&appended, 1)
			if ph == phase.OutOfBrainCalibrated || ph == phase.InBrain {
				inf.PublishNotifiedSnapshot()
				permit.Signal()
			}
			time.Sleep(time.Millisecond)
		}
	}()

	outcomes := f.Run(context.Background(), []uint64{3_000_000})
	test.That(t, len(outcomes), test.ShouldEqual, 1)
	test.That(t, atomic.LoadInt32(&appended) > 0, test.ShouldBeTrue)

	select {
	case <-channels.Dead:
	case <-time.After(time.Second):
		t.Fatal("dead channel never signalled")
	}
}
