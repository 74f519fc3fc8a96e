// Package config collects the insertion controller's tunables into one flat
// struct, the way the teacher's control blocks take a config.AttributeMap
// rather than reading package-level constants directly. There is no
// file/env parsing here (out of scope); Default returns the spec's values
// and callers override individual fields as needed.
package config

import "time"

// Config holds every tunable named in SPEC_FULL.md.
type Config struct {
	// TOct is the nominal sampling cadence for both the distance and state
	// samplers.
	TOct time.Duration

	// MinClearanceNM is MIN_CLEARANCE: the nominal minimum standoff the
	// controller tries to preserve between the inserter tip and the surface.
	MinClearanceNM uint64
	// PremoveTriggerNM is the gap threshold that raises MovePermit.
	PremoveTriggerNM uint64
	// MaxPredErrNM is the maximum tolerated |observed-predicted| gap before
	// a sample counts as a prediction-drift anomaly.
	MaxPredErrNM uint64
	// MaxConsecErr is the largest run of consecutive anomalous samples that
	// is tolerated; a longer run forces a Panic transition.
	MaxConsecErr uint64

	// CalibrationSamples is the number of distance samples calibration waits
	// for before computing pre_move_location.
	CalibrationSamples int
	// UncalibratedHistoryCap and CalibratedHistoryCap are the ring-buffer
	// capacities C for the distance/state histories (§3: 1000 while
	// uncalibrated, 100 otherwise).
	UncalibratedHistoryCap int
	CalibratedHistoryCap   int

	// MaxIBTime bounds the in-brain insertion loop (MAX_IB_TIME).
	MaxIBTime time.Duration

	// NeedleAccelNMPerMS2 is the needle's constant-acceleration model A.
	NeedleAccelNMPerMS2 float64
	// CommandedDepthMinNM / CommandedDepthMaxNM bound an admissible commanded depth.
	CommandedDepthMinNM uint64
	CommandedDepthMaxNM uint64

	// MaxLatency is the V1 predictor's staleness/mean-interval bound.
	MaxLatency time.Duration
	// MaxLatencyStd is the V1 predictor's inter-sample jitter bound.
	MaxLatencyStd time.Duration

	// LRSize is the V2 predictor's regression window size.
	LRSize int
	// LRMaxAge is the maximum staleness of the oldest LRSize sample.
	LRMaxAge time.Duration

	// MaxDistFromPremoveToMoveNM is the largest last observed gap in the
	// permit snapshot for which a thrust target is still computed.
	MaxDistFromPremoveToMoveNM uint64

	// RequestChannelCapacity is the bounded capacity for the three request
	// channels and the dead channel (§6).
	RequestChannelCapacity int

	// CalibrationPollInterval is how often calibration re-checks history
	// length while waiting for CalibrationSamples to accumulate.
	CalibrationPollInterval time.Duration
	// ThrustRetryInterval is how long an out-of-brain move waits after a
	// recoverable actuator error before it is re-issued.
	ThrustRetryInterval time.Duration
}

// Default returns the constants named in spec.md §3-§7.
func Default() Config {
	return Config{
		TOct: 5 * time.Millisecond,

		MinClearanceNM:   200_000,
		PremoveTriggerNM: 200_000 + 3_000,
		MaxPredErrNM:     50_000,
		MaxConsecErr:     20,

		CalibrationSamples:     500,
		UncalibratedHistoryCap: 1000,
		CalibratedHistoryCap:   100,

		MaxIBTime: 30_000 * time.Millisecond,

		NeedleAccelNMPerMS2: 250,
		CommandedDepthMinNM: 3_000_000,
		CommandedDepthMaxNM: 7_000_000,

		MaxLatency:    18 * time.Millisecond,
		MaxLatencyStd: 3 * time.Millisecond,

		LRSize:   5,
		LRMaxAge: 5 * 25 * time.Millisecond,

		MaxDistFromPremoveToMoveNM: 200_000 + 10_000,

		RequestChannelCapacity: 100,

		CalibrationPollInterval: 10 * time.Millisecond,
		ThrustRetryInterval:     15 * time.Millisecond,
	}
}
