package info

import "context"

// Permit is the MovePermit latching signal (§3, §5): single-producer
// (DistanceIngest), single-consumer (SequencerFSM). Signal never blocks —
// a firing while the channel already holds an unconsumed signal is dropped,
// which is what "latching, at most one outstanding signal" (L3) requires.
type Permit struct {
	ch chan struct{}
}

// NewPermit creates an unarmed permit.
func NewPermit() *Permit {
	return &Permit{ch: make(chan struct{}, 1)}
}

// Signal raises the permit. If one is already pending and unconsumed, this
// signal is dropped.
func (p *Permit) Signal() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}

// Await blocks until the permit fires or ctx is cancelled.
func (p *Permit) Await(ctx context.Context) error {
	select {
	case <-p.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C exposes the underlying channel for callers that need to select on it
// alongside other conditions (e.g. a MAX_IB_TIME deadline).
func (p *Permit) C() <-chan struct{} {
	return p.ch
}
