package geometry

import (
	"math"

	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/config"
)

// WheelCalculator converts encoder ticks into traveled distance and
// in-place rotation for a differential-drive chassis.
// All values are fixed at construction.
type WheelCalculator struct {
	ticksPerRev          int
	metersPerRevolution  float64
	degreesPerRevolution float64
}

// NewWheelCalculator creates a calculator from the chassis configuration.
// Returns an error if any dimension is not strictly positive.
func NewWheelCalculator(cfg *config.Config) (*WheelCalculator, error) {
	c := cfg.Chassis
	if c.WheelRadiusM <= 0 || c.WheelSpacingM <= 0 || c.TicksPerRev <= 0 {
		return nil, errors.Errorf("invalid chassis geometry: radius=%g spacing=%g ticks=%d",
			c.WheelRadiusM, c.WheelSpacingM, c.TicksPerRev)
	}

	// Wheel circumference.
	metersPerRevolution := 2.0 * math.Pi * c.WheelRadiusM
	// Circle traced by each wheel when spinning in place about the chassis center.
	turningCircumference := 2.0 * math.Pi * (c.WheelSpacingM / 2.0)

	return &WheelCalculator{
		ticksPerRev:          c.TicksPerRev,
		metersPerRevolution:  metersPerRevolution,
		degreesPerRevolution: metersPerRevolution / turningCircumference * 360.0,
	}, nil
}

// TicksPerRevolution returns the number of encoder edges per wheel turn.
func (w *WheelCalculator) TicksPerRevolution() int {
	return w.ticksPerRev
}

// MetersPerRevolution returns the wheel circumference in meters.
func (w *WheelCalculator) MetersPerRevolution() float64 {
	return w.metersPerRevolution
}

// DegreesPerRevolution returns the chassis rotation produced by one wheel
// revolution when both wheels turn in opposite directions.
func (w *WheelCalculator) DegreesPerRevolution() float64 {
	return w.degreesPerRevolution
}

// MetersPerTick returns the linear distance of one encoder tick.
func (w *WheelCalculator) MetersPerTick() float64 {
	return w.metersPerRevolution / float64(w.ticksPerRev)
}

// DegreesPerTick returns the in-place rotation of one encoder tick.
func (w *WheelCalculator) DegreesPerTick() float64 {
	return w.degreesPerRevolution / float64(w.ticksPerRev)
}
