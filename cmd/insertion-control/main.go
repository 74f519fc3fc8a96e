// Command insertion-control is the out-of-scope CLI entry point named in
// spec §1: it wires a simulated actuator/sensor and the controller together
// and runs a fixed depth list, printing the resulting outcomes. It carries
// no flags beyond a couple of simulation knobs — real deployments would
// swap device.Simulated for a driver talking to actual hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	realclock "github.com/benbjohnson/clock"

	"go.viam.com/insertion-control/config"
	"go.viam.com/insertion-control/controller"
	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/logging"
)

func main() {
	distanceFaultRate := flag.Float64("distance-fault-rate", 0, "probability a simulated distance reading fails")
	moveFaultRate := flag.Float64("move-fault-rate", 0, "probability a simulated move only partially completes")
	depthCount := flag.Int("depths", 30, "number of commanded depths to run, spaced across the admissible depth range")
	surfaceName := flag.String("surface", "demo", `simulated surface function: "demo" (oscillates near the clearance thresholds so thrusts actually fire) or "literal" (the scenario-1 formula, which never nears the thresholds and so only exercises calibration)`)
	flag.Parse()

	surface := device.DemoSurfaceFunc
	if *surfaceName == "literal" {
		surface = device.DefaultSurfaceFunc
	}

	logger := logging.NewLogger("insertion-control")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Default()
	clk := realclock.New()
	channels := device.NewChannels(cfg.RequestChannelCapacity)

	sim := device.NewSimulated(
		channels,
		clk,
		surface,
		device.FaultRates{Distance: *distanceFaultRate, Move: *moveFaultRate},
		cfg.NeedleAccelNMPerMS2,
		logger.Named("simulated_device"),
	)
	go sim.Run(ctx)

	ctrl := controller.New(channels, cfg, clk, nil, logger.Named("controller"))

	depths := depthList(cfg, *depthCount)
	start := time.Now()
	outcomes := ctrl.Run(ctx, depths)
	elapsed := time.Since(start)

	successes := 0
	for i, o := range outcomes {
		fmt.Printf("depth[%d]=%d -> %s\n", i, depths[i], o)
		if o.String() == "Success" {
			successes++
		}
	}
	fmt.Printf("%d/%d succeeded in %s\n", successes, len(depths), elapsed)
}

// depthList spaces n commanded depths evenly across
// [CommandedDepthMinNM, CommandedDepthMaxNM], both ends included. The
// default count of 30 gives 30 depths from 3e6 to 7e6 nm, not the
// 3.1e6 ... 6.0e6 steps of boundary scenario 1.
func depthList(cfg config.Config, n int) []uint64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []uint64{cfg.CommandedDepthMinNM}
	}
	span := cfg.CommandedDepthMaxNM - cfg.CommandedDepthMinNM
	depths := make([]uint64, n)
	for i := 0; i < n; i++ {
		depths[i] = cfg.CommandedDepthMinNM + uint64(i)*span/uint64(n-1)
	}
	return depths
}
