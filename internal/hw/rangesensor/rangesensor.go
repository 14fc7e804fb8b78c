package rangesensor

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/hw/gpio"
)

// Heading is a direction the sensor head can look at.
type Heading int

const (
	Forward Heading = iota
	Left
	Right
)

func (h Heading) String() string {
	switch h {
	case Forward:
		return "forward"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Sensor is the range sensor used by the motion primitives.
// Range is a distance in centimetres; larger means farther away.
type Sensor interface {
	Range() (int, error)
	Aim(h Heading) error
}

// Config holds the hardware configuration of a panning IR sensor.
type Config struct {
	Channel int    // ADC channel of the IR sensor
	HeadPin int    // head servo pin
	Pulses  [3]int // head pulse per Heading, in microseconds
	Settle  time.Duration
	Samples int
	ScaleCm int // range_cm = ScaleCm / raw
	MaxCm   int
}

// PanningIR is an analog IR distance sensor mounted on a servo head.
type PanningIR struct {
	gpio    gpio.Driver
	cfg     Config
	clock   clock.Clock
	heading Heading
}

// NewPanningIR configures the head servo and looks forward.
// A nil clk uses the wall clock.
func NewPanningIR(g gpio.Driver, cfg Config, clk clock.Clock) (*PanningIR, error) {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 1
	}
	if err := g.SetupPin(cfg.HeadPin, gpio.PWM); err != nil {
		return nil, errors.Wrapf(err, "setup head pin %d", cfg.HeadPin)
	}
	s := &PanningIR{gpio: g, cfg: cfg, clock: clk}
	if err := s.Aim(Forward); err != nil {
		return nil, err
	}
	return s, nil
}

// Aim turns the head and waits for it to settle.
func (s *PanningIR) Aim(h Heading) error {
	if h < Forward || h > Right {
		return errors.Errorf("invalid heading %d", h)
	}
	debug.Verbose("Range sensor: look %s", h)
	if err := s.gpio.WritePulse(s.cfg.HeadPin, s.cfg.Pulses[h]); err != nil {
		return errors.Wrapf(err, "aim %s", h)
	}
	s.heading = h
	if s.cfg.Settle > 0 {
		s.clock.Sleep(s.cfg.Settle)
	}
	return nil
}

// Heading returns the direction the head was last aimed at.
func (s *PanningIR) Heading() Heading {
	return s.heading
}

// Range averages Samples readings and converts them to centimetres.
func (s *PanningIR) Range() (int, error) {
	sum := 0
	for i := 0; i < s.cfg.Samples; i++ {
		v, err := s.gpio.ReadAnalog(s.cfg.Channel)
		if err != nil {
			return 0, errors.Wrapf(err, "range ADC%d", s.cfg.Channel)
		}
		sum += v
	}
	cm := RawToCm(sum/s.cfg.Samples, s.cfg.ScaleCm, s.cfg.MaxCm)
	debug.Trace("Range sensor: %s %dcm", s.heading, cm)
	return cm, nil
}

// RawToCm converts an IR reading to a distance. The sensor output falls
// off roughly with the inverse of the distance.
func RawToCm(raw, scale, maxCm int) int {
	if raw <= 0 {
		return maxCm
	}
	return min(scale/raw, maxCm)
}

// CmToRaw is the inverse of RawToCm, clamped to the ADC range.
func CmToRaw(cm float64, scale int) int {
	if cm <= 0 {
		return gpio.ADCMax
	}
	raw := int(float64(scale)/cm + 0.5)
	return max(0, min(raw, gpio.ADCMax))
}
