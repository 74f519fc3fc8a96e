// Package controller wires the five activities, the shared Info record, the
// two predictor instances, and the root finder into the single external
// entry point §6 describes: feed in an ordered depth list, get back one
// Outcome per depth processed.
package controller

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.viam.com/utils"

	"go.viam.com/insertion-control/config"
	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/info"
	"go.viam.com/insertion-control/ingest"
	"go.viam.com/insertion-control/logging"
	"go.viam.com/insertion-control/predictor"
	"go.viam.com/insertion-control/rootfind"
	"go.viam.com/insertion-control/sampler"
	"go.viam.com/insertion-control/sequencer"
)

// Controller owns the shared Info record and the five cooperating
// activities (§2).
type Controller struct {
	channels device.Channels
	info     *info.Info
	permit   *info.Permit
	cfg      config.Config
	clock    clock.Clock
	logger   logging.Logger

	distanceSampler *sampler.Distance
	stateSampler    *sampler.State
	distanceIngest  *ingest.Distance
	stateIngest     *ingest.State
	fsm             *sequencer.FSM
}

// New builds a Controller against an already-running device endpoint
// (channels is typically device.Simulated.Channels, or a real driver's
// equivalent). finder may be nil, in which case rootfind.NewBisection() is
// used.
func New(channels device.Channels, cfg config.Config, clk clock.Clock, finder rootfind.Finder, logger logging.Logger) *Controller {
	if finder == nil {
		finder = rootfind.NewBisection()
	}

	inf := info.New(cfg.UncalibratedHistoryCap, cfg.CalibratedHistoryCap)
	permit := info.NewPermit()

	distanceResults := make(chan device.DistanceResult, cfg.RequestChannelCapacity)
	stateResults := make(chan device.StateResult, cfg.RequestChannelCapacity)

	driftPredictor := predictor.NewTaylor(cfg.MaxLatency, cfg.MaxLatencyStd)
	thrustPredictor := predictor.NewQuadratic(cfg.LRMaxAge, cfg.MaxLatency)
	thrustPredictor.Size = cfg.LRSize

	return &Controller{
		channels: channels,
		info:     inf,
		permit:   permit,
		cfg:      cfg,
		clock:    clk,
		logger:   logger,

		distanceSampler: sampler.NewDistance(channels.DistanceRequests, distanceResults, clk, cfg.TOct, logger.Named("distance_sampler")),
		stateSampler:    sampler.NewState(channels.StateRequests, stateResults, clk, cfg.TOct, logger.Named("state_sampler")),
		distanceIngest:  ingest.NewDistance(distanceResults, inf, permit, driftPredictor, cfg, logger.Named("distance_ingest")),
		stateIngest:     ingest.NewState(stateResults, inf, logger.Named("state_ingest")),
		fsm:             sequencer.New(channels, inf, permit, thrustPredictor, finder, cfg, clk, logger.Named("sequencer")),
	}
}

// Info exposes the shared record for diagnostics and tests.
func (c *Controller) Info() *info.Info { return c.info }

// Run starts the four supporting activities, drives SequencerFSM to
// completion over depths, then stops the supporting activities. It returns
// the Outcome vector SequencerFSM produced (§6).
func (c *Controller) Run(ctx context.Context, depths []uint64) []info.Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)
	utils.PanicCapturingGo(func() { defer wg.Done(); c.distanceSampler.Run(ctx) })
	utils.PanicCapturingGo(func() { defer wg.Done(); c.stateSampler.Run(ctx) })
	utils.PanicCapturingGo(func() { defer wg.Done(); c.distanceIngest.Run(ctx) })
	utils.PanicCapturingGo(func() { defer wg.Done(); c.stateIngest.Run(ctx) })

	outcomes := c.fsm.Run(ctx, depths)

	cancel()
	wg.Wait()
	return outcomes
}
