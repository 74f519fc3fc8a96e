// Package info implements the shared mutable record every controller
// activity reads or writes (§3, §5): the distance/state histories, the
// current phase, the consecutive-error counter, the calibrated standoff,
// the per-depth outcomes, and the move-permit snapshot. A single mutex
// guards all of it; per §5 the lock is never held across a suspension
// point (channel send/receive, sleep, or MovePermit await) — callers copy
// out from the Snapshot methods and release the lock before doing anything
// that blocks.
package info

import (
	"sync"
	"time"

	"go.viam.com/insertion-control/phase"
	"go.viam.com/insertion-control/ring"
)

// Info is the controller's shared mutable store.
type Info struct {
	uncalibratedCap int
	calibratedCap   int

	mu                sync.Mutex
	distanceHistory   *ring.Buffer[DistanceSample]
	stateHistory      *ring.Buffer[StateSample]
	currentPhase      phase.Phase
	consecutiveErrors uint64
	preMoveLocationNM *uint64
	outcomes          []Outcome
	notifiedSnapshot  Snapshot
}

// Snapshot is the distance history (and matching timestamps, already
// embedded in each sample) captured at MovePermit-signal time (§4.3, §5).
type Snapshot struct {
	Samples []DistanceSample
}

// New creates an Info starting in phase.OutOfBrainUncalibrated (awaiting
// first calibration) with the uncalibrated history capacity in effect (§3:
// histories start at capacity 1000 while uncalibrated). Dead is reached only
// by exhausting the depth list or a fatal actuator error (§4.5, §7); it is
// never the start state.
func New(uncalibratedCap, calibratedCap int) *Info {
	return &Info{
		uncalibratedCap: uncalibratedCap,
		calibratedCap:   calibratedCap,
		distanceHistory: ring.NewBuffer[DistanceSample](uncalibratedCap),
		stateHistory:    ring.NewBuffer[StateSample](uncalibratedCap),
		currentPhase:    phase.OutOfBrainUncalibrated,
	}
}

// currentCapacityLocked returns the history capacity for the phase the caller
// already holds the lock for (§3): 1000 while uncalibrated, 100 otherwise.
func (info *Info) currentCapacityLocked() int {
	if info.currentPhase == phase.OutOfBrainUncalibrated {
		return info.uncalibratedCap
	}
	return info.calibratedCap
}

// AppendDistance appends a sample (with ring-buffer eviction) to the
// distance history.
func (info *Info) AppendDistance(sample DistanceSample) {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.distanceHistory.SetCapacity(info.currentCapacityLocked())
	info.distanceHistory.Append(sample)
}

// AppendState appends a sample (with ring-buffer eviction) to the state
// history.
func (info *Info) AppendState(sample StateSample) {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.stateHistory.SetCapacity(info.currentCapacityLocked())
	info.stateHistory.Append(sample)
}

// DistanceSnapshot copies out the full distance history.
func (info *Info) DistanceSnapshot() []DistanceSample {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.distanceHistory.Snapshot()
}

// DistanceLen returns the current distance-history length.
func (info *Info) DistanceLen() int {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.distanceHistory.Len()
}

// DistanceFront returns the oldest distance sample, if any.
func (info *Info) DistanceFront() (DistanceSample, bool) {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.distanceHistory.Front()
}

// ClearDistanceHistory empties the distance history (calibration start/end, §4.5.2).
func (info *Info) ClearDistanceHistory() {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.distanceHistory.Clear()
}

// StateSnapshot copies out the full state history.
func (info *Info) StateSnapshot() []StateSample {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.stateHistory.Snapshot()
}

// Phase returns the current phase.
func (info *Info) Phase() phase.Phase {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.currentPhase
}

// TransitionTo applies phase.Transition under lock (§4.5).
func (info *Info) TransitionTo(requested phase.Phase, fromPanic bool) phase.Phase {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.currentPhase = phase.Transition(info.currentPhase, requested, fromPanic)
	return info.currentPhase
}

// ConsecutiveErrors returns the current anomalous-sample streak (§4.3).
func (info *Info) ConsecutiveErrors() uint64 {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.consecutiveErrors
}

// IncrementConsecutiveErrors increments and returns the new streak length.
func (info *Info) IncrementConsecutiveErrors() uint64 {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.consecutiveErrors++
	return info.consecutiveErrors
}

// ResetConsecutiveErrors zeroes the streak.
func (info *Info) ResetConsecutiveErrors() {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.consecutiveErrors = 0
}

// PreMoveLocation returns the calibrated inserter standoff, if calibration
// has completed.
func (info *Info) PreMoveLocation() (uint64, bool) {
	info.mu.Lock()
	defer info.mu.Unlock()
	if info.preMoveLocationNM == nil {
		return 0, false
	}
	return *info.preMoveLocationNM, true
}

// SetPreMoveLocation records the calibrated inserter standoff (§4.5.2).
func (info *Info) SetPreMoveLocation(v uint64) {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.preMoveLocationNM = &v
}

// ClearPreMoveLocation clears the calibrated standoff (recalibration start, §4.5.2).
func (info *Info) ClearPreMoveLocation() {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.preMoveLocationNM = nil
}

// AppendOutcome records one Outcome for the depth currently being processed (§3, P3).
func (info *Info) AppendOutcome(o Outcome) {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.outcomes = append(info.outcomes, o)
}

// Outcomes returns a copy of the outcomes recorded so far, in input order.
func (info *Info) Outcomes() []Outcome {
	info.mu.Lock()
	defer info.mu.Unlock()
	out := make([]Outcome, len(info.outcomes))
	copy(out, info.outcomes)
	return out
}

// PublishNotifiedSnapshot records the distance history visible at
// MovePermit-signal time (§4.3 step 5, §5).
func (info *Info) PublishNotifiedSnapshot() {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.notifiedSnapshot = Snapshot{Samples: info.distanceHistory.Snapshot()}
}

// NotifiedSnapshot returns the most recently published permit snapshot. The
// consumer re-reads it without further locking of the live history (§5).
func (info *Info) NotifiedSnapshot() Snapshot {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.notifiedSnapshot
}

// Now is a seam for tests; production code always calls time.Now.
var Now = time.Now
