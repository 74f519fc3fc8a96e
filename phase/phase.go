// Package phase models the controller's discrete state (§3, §4.5) as a pure
// function over (current, requested, fromPanic), per the re-architecture
// note in spec.md §9: "encode transitions as a pure function ... and funnel
// all mutations through it."
package phase

// Phase is one of the five controller states.
type Phase int

const (
	// Dead is terminal: no further transitions are possible.
	Dead Phase = iota
	// OutOfBrainUncalibrated awaits calibration.
	OutOfBrainUncalibrated
	// OutOfBrainCalibrated is ready to begin a thrust.
	OutOfBrainCalibrated
	// InBrain is mid-thrust.
	InBrain
	// Panic is the safety state entered on clearance breach or prediction drift.
	Panic
)

func (p Phase) String() string {
	switch p {
	case Dead:
		return "Dead"
	case OutOfBrainUncalibrated:
		return "OutOfBrainUncalibrated"
	case OutOfBrainCalibrated:
		return "OutOfBrainCalibrated"
	case InBrain:
		return "InBrain"
	case Panic:
		return "Panic"
	default:
		return "Unknown"
	}
}

// CanPanic reports whether p is one of the phases from which a Panic-check
// (clearance breach, prediction drift) may fire (§4.3).
func (p Phase) CanPanic() bool {
	return p == OutOfBrainCalibrated || p == InBrain
}

// Transition computes the next phase for a requested transition, applying
// the §4.5 rules: Dead never leaves Dead; Panic only leaves Panic when the
// transition is tagged fromPanic (so a stray success cannot cancel panic
// recovery); otherwise the requested phase is adopted.
func Transition(current, requested Phase, fromPanic bool) Phase {
	if current == Dead {
		return Dead
	}
	if current == Panic && !fromPanic {
		return current
	}
	return requested
}
