package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/insertion-control/device"
	"go.viam.com/insertion-control/logging"
)

func TestDistanceSamplerFiresEveryPeriod(t *testing.T) {
	requests := make(chan device.DistanceRequest, 10)
	ingest := make(chan device.DistanceResult, 10)
	mockClock := clock.NewMock()

	s := NewDistance(requests, ingest, mockClock, 5*time.Millisecond, logging.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	mockClock.Add(5 * time.Millisecond)

	var req device.DistanceRequest
	select {
	case req = <-requests:
	case <-time.After(time.Second):
		t.Fatal("no distance request issued")
	}
	req.Reply <- device.DistanceResult{ValueNM: 42}

	select {
	case res := <-ingest:
		test.That(t, res.ValueNM, test.ShouldEqual, uint64(42))
	case <-time.After(time.Second):
		t.Fatal("reply never forwarded to ingest")
	}
}

func TestDistanceSamplerDoesNotWaitForSlowReply(t *testing.T) {
	requests := make(chan device.DistanceRequest, 10)
	ingest := make(chan device.DistanceResult, 10)
	mockClock := clock.NewMock()

	s := NewDistance(requests, ingest, mockClock, 5*time.Millisecond, logging.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	mockClock.Add(5 * time.Millisecond)
	mockClock.Add(5 * time.Millisecond)

	var reqs []device.DistanceRequest
	deadline := time.After(time.Second)
	for len(reqs) < 2 {
		select {
		case r := <-requests:
			reqs = append(reqs, r)
		case <-deadline:
			t.Fatalf("expected 2 requests, got %d", len(reqs))
		}
	}
}

func TestStateSamplerFires(t *testing.T) {
	requests := make(chan device.StateRequest, 10)
	ingest := make(chan device.StateResult, 10)
	mockClock := clock.NewMock()

	s := NewState(requests, ingest, mockClock, 5*time.Millisecond, logging.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	mockClock.Add(5 * time.Millisecond)

	var req device.StateRequest
	select {
	case req = <-requests:
	case <-time.After(time.Second):
		t.Fatal("no state request issued")
	}
	req.Reply <- device.StateResult{InserterZNM: 1, NeedleZNM: 2}

	select {
	case res := <-ingest:
		test.That(t, res.InserterZNM, test.ShouldEqual, uint64(1))
		test.That(t, res.NeedleZNM, test.ShouldEqual, uint64(2))
	case <-time.After(time.Second):
		t.Fatal("reply never forwarded to ingest")
	}
}
