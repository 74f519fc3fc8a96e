package device

import (
	"testing"

	"go.viam.com/test"
)

func TestDistanceErrorTaxonomy(t *testing.T) {
	test.That(t, IsDistanceError(AcquisitionError("x")), test.ShouldBeTrue)
	test.That(t, IsDistanceError(CommunicationError("x")), test.ShouldBeTrue)
	test.That(t, IsDistanceError(TimeoutError("x")), test.ShouldBeTrue)
	test.That(t, IsDistanceError(PredictionError("x")), test.ShouldBeTrue)
	test.That(t, IsDistanceError(nil), test.ShouldBeFalse)
}

func TestActuatorErrorRecoverability(t *testing.T) {
	test.That(t, IsRecoverable(MoveError("x")), test.ShouldBeTrue)
	test.That(t, IsRecoverable(ConnectionError("x")), test.ShouldBeTrue)
	test.That(t, IsRecoverable(PositionError("x")), test.ShouldBeFalse)
	test.That(t, IsRecoverable(nil), test.ShouldBeFalse)

	test.That(t, IsPositionError(PositionError("x")), test.ShouldBeTrue)
	test.That(t, IsPositionError(MoveError("x")), test.ShouldBeFalse)
	test.That(t, IsPositionError(nil), test.ShouldBeFalse)
}

func TestMoveString(t *testing.T) {
	m := Move{Axis: NeedleZAxis, TargetNM: 3500000}
	test.That(t, m.String(), test.ShouldEqual, "NeedleZ(3500000)")
}
