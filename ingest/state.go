package ingest

import (
	"context"

	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/info"
	"go.viam.com/insertion-control/logging"
	"go.viam.com/insertion-control/phase"
)

// State is StateIngest (§4.2, §4.3 analog, §7). It appends every readout to
// the state history and escalates a PositionError straight to Dead,
// bypassing the Panic-recovery lock — a fatal actuator fault must end the
// run regardless of what phase it arrives in, so the escalation is tagged
// fromPanic=true the same way the panic routine's own recovery moves are.
type State struct {
	results <-chan device.StateResult
	info    *info.Info
	logger  logging.Logger
}

// NewState constructs StateIngest.
func NewState(results <-chan device.StateResult, info *info.Info, logger logging.Logger) *State {
	return &State{results: results, info: info, logger: logger}
}

// Run drains results until ctx is cancelled.
func (s *State) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-s.results:
			s.ingest(res)
		}
	}
}

func (s *State) ingest(res device.StateResult) {
	sample := info.StateSample{
		InserterZNM: res.InserterZNM,
		NeedleZNM:   res.NeedleZNM,
		Err:         res.Err,
		Timestamp:   info.Now(),
	}
	s.info.AppendState(sample)

	if device.IsPositionError(res.Err) {
		s.info.TransitionTo(phase.Dead, true)
		s.logger.Errorw("fatal actuator position error, transitioning dead", "err", res.Err)
	}
}
