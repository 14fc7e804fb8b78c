package encoder

import (
	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/hw/gpio"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
)

// Reflective reads the two reflectance wheel sensors from the ADC.
// It implements drive.RawReader.
type Reflective struct {
	gpio     gpio.Driver
	channels drive.PerSide[int]
}

// NewReflective returns a reader for the given ADC channels.
func NewReflective(g gpio.Driver, left, right int) *Reflective {
	debug.Verbose("Encoders: left on ADC%d, right on ADC%d", left, right)
	return &Reflective{gpio: g, channels: drive.PerSide[int]{left, right}}
}

// ReadRaw returns the raw intensity of one wheel sensor (0..gpio.ADCMax).
func (r *Reflective) ReadRaw(side drive.Side) (int, error) {
	ch := r.channels[side]
	v, err := r.gpio.ReadAnalog(ch)
	if err != nil {
		return 0, errors.Wrapf(err, "%s encoder ADC%d", side, ch)
	}
	if v < 0 || v > gpio.ADCMax {
		return 0, errors.Errorf("%s encoder ADC%d: reading %d out of range", side, ch, v)
	}
	return v, nil
}
