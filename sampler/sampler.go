// Package sampler implements DistanceSampler and StateSampler (§4.1, §4.2):
// fixed-cadence, fire-and-forget request issuers. Each tick spawns its own
// goroutine to wait on the reply and forward it downstream, so a slow reply
// never delays the next tick — the same pattern the teacher's
// data.Collector uses for its capture ticker, generalized from one
// goroutine-per-collection to one per outstanding request.
package sampler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/utils"

	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/logging"
)

// Distance issues a DistanceRequest every period and forwards each reply to
// ingest. Closing/cancelling ctx terminates the sampler; per §4.1 a failure
// to deliver to ingest (ctx already done) also ends the in-flight request's
// goroutine without blocking further ticks.
type Distance struct {
	requests chan<- device.DistanceRequest
	ingest   chan<- device.DistanceResult
	clock    clock.Clock
	period   time.Duration
	logger   logging.Logger
}

// NewDistance constructs a DistanceSampler.
func NewDistance(
	requests chan<- device.DistanceRequest,
	ingest chan<- device.DistanceResult,
	clk clock.Clock,
	period time.Duration,
	logger logging.Logger,
) *Distance {
	return &Distance{requests: requests, ingest: ingest, clock: clk, period: period, logger: logger}
}

// Run blocks, issuing one request per tick, until ctx is cancelled.
func (d *Distance) Run(ctx context.Context) {
	ticker := d.clock.Ticker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			utils.PanicCapturingGo(func() { d.issue(ctx) })
		}
	}
}

func (d *Distance) issue(ctx context.Context) {
	reply := make(chan device.DistanceResult, 1)
	select {
	case d.requests <- device.DistanceRequest{Reply: reply}:
	case <-ctx.Done():
		return
	}
	select {
	case res := <-reply:
		select {
		case d.ingest <- res:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
}

// State issues a StateRequest every period and forwards each reply to
// ingest, identically to Distance but against the actuator's readout
// endpoint (§4.2).
type State struct {
	requests chan<- device.StateRequest
	ingest   chan<- device.StateResult
	clock    clock.Clock
	period   time.Duration
	logger   logging.Logger
}

// NewState constructs a StateSampler.
func NewState(
	requests chan<- device.StateRequest,
	ingest chan<- device.StateResult,
	clk clock.Clock,
	period time.Duration,
	logger logging.Logger,
) *State {
	return &State{requests: requests, ingest: ingest, clock: clk, period: period, logger: logger}
}

// Run blocks, issuing one request per tick, until ctx is cancelled.
func (s *State) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			utils.PanicCapturingGo(func() { s.issue(ctx) })
		}
	}
}

func (s *State) issue(ctx context.Context) {
	reply := make(chan device.StateResult, 1)
	select {
	case s.requests <- device.StateRequest{Reply: reply}:
	case <-ctx.Done():
		return
	}
	select {
	case res := <-reply:
		select {
		case s.ingest <- res:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
}
