package device

import "github.com/pkg/errors"

// DistanceError is the error taxonomy a distance-sensor reply carries (§6,
// §7): AcquisitionError, CommunicationError, TimeoutError, or PredictionError.
type DistanceError struct {
	Kind string
	msg  string
}

func (e *DistanceError) Error() string {
	return e.Kind + ": " + e.msg
}

// AcquisitionError reports a failure to acquire data from the sensor.
func AcquisitionError(msg string) error { return &DistanceError{Kind: "AcquisitionError", msg: msg} }

// CommunicationError reports a failure to communicate with the sensor driver.
func CommunicationError(msg string) error {
	return &DistanceError{Kind: "CommunicationError", msg: msg}
}

// TimeoutError reports a timeout waiting for the sensor driver to respond.
func TimeoutError(msg string) error { return &DistanceError{Kind: "TimeoutError", msg: msg} }

// PredictionError reports that a predictor declined to produce a value.
func PredictionError(msg string) error { return &DistanceError{Kind: "PredictionError", msg: msg} }

// IsDistanceError reports whether err is one of this taxonomy's members.
func IsDistanceError(err error) bool {
	var de *DistanceError
	return errors.As(err, &de)
}

// ActuatorError is the error taxonomy an actuator (move/state) reply
// carries (§6, §7): MoveError, ConnectionError (both recoverable), or
// PositionError (fatal).
type ActuatorError struct {
	Kind string
	msg  string
}

func (e *ActuatorError) Error() string {
	return e.Kind + ": " + e.msg
}

// MoveError reports a failed move attempt; recoverable.
func MoveError(msg string) error { return &ActuatorError{Kind: "MoveError", msg: msg} }

// ConnectionError reports a lost connection to the actuator; recoverable.
func ConnectionError(msg string) error { return &ActuatorError{Kind: "ConnectionError", msg: msg} }

// PositionError reports the actuator exceeding its travel limits; fatal.
func PositionError(msg string) error { return &ActuatorError{Kind: "PositionError", msg: msg} }

// IsRecoverable reports whether err is a MoveError or ConnectionError, as
// opposed to the fatal PositionError.
func IsRecoverable(err error) bool {
	var ae *ActuatorError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == "MoveError" || ae.Kind == "ConnectionError"
}

// IsPositionError reports whether err is the fatal ActuatorError variant.
func IsPositionError(err error) bool {
	var ae *ActuatorError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == "PositionError"
}
