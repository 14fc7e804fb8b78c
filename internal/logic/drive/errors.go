package drive

import (
	"fmt"

	"github.com/pkg/errors"
)

// Warning kinds raised by the control loop. None of them interrupts a
// motion: they describe degraded odometry and are reported alongside
// continued operation.
var (
	// ErrSensorUnavailable means an encoder or range reading failed.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrCompensationSaturated means a differential correction pushed a
	// wheel command outside the actuator range and it was clamped.
	ErrCompensationSaturated = errors.New("compensation saturated")
	// ErrOdometryStall means a wheel commanded to move produced no tick
	// for several consecutive windows (stalled or slipping wheel).
	ErrOdometryStall = errors.New("odometry stall")
)

// Warning is one occurrence of a warning kind. errors.Is matches it
// against its Kind.
type Warning struct {
	Kind  error
	Side  Side
	Cause error
}

// NewWarning builds a warning for side, optionally carrying the
// underlying cause.
func NewWarning(kind error, side Side, cause error) *Warning {
	return &Warning{Kind: kind, Side: side, Cause: cause}
}

func (w *Warning) Error() string {
	if w.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", w.Side, w.Kind, w.Cause)
	}
	return fmt.Sprintf("%s: %s", w.Side, w.Kind)
}

func (w *Warning) Unwrap() error {
	return w.Kind
}
