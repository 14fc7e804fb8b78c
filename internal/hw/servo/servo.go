package servo

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/hw/gpio"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
)

// Config holds the hardware configuration for a continuous-rotation servo.
type Config struct {
	Pin    int
	StopUs int // neutral pulse
	MinUs  int // lowest pulse accepted (0 = no lower bound)
	MaxUs  int // highest pulse accepted (0 = no upper bound)
}

// Servo drives one continuous-rotation servo with 50 Hz pulses.
// The pulse width sets speed and direction around StopUs.
type Servo struct {
	gpio gpio.Driver
	cfg  Config
	last int
}

// NewServo configures the PWM pin and parks the servo at its neutral pulse.
func NewServo(g gpio.Driver, cfg Config) (*Servo, error) {
	if err := g.SetupPin(cfg.Pin, gpio.PWM); err != nil {
		return nil, errors.Wrapf(err, "setup servo pin %d", cfg.Pin)
	}
	s := &Servo{gpio: g, cfg: cfg}
	if err := s.Write(cfg.StopUs); err != nil {
		return nil, err
	}
	return s, nil
}

// Write emits a pulse of widthUs, clamped to the configured range.
// Writing the same width twice does not touch the pin again.
func (s *Servo) Write(widthUs int) error {
	if s.cfg.MinUs > 0 && widthUs < s.cfg.MinUs {
		widthUs = s.cfg.MinUs
	}
	if s.cfg.MaxUs > 0 && widthUs > s.cfg.MaxUs {
		widthUs = s.cfg.MaxUs
	}
	if widthUs == s.last {
		return nil
	}
	debug.Trace("Servo: pin %d -> %dus", s.cfg.Pin, widthUs)
	if err := s.gpio.WritePulse(s.cfg.Pin, widthUs); err != nil {
		return errors.Wrapf(err, "servo pin %d", s.cfg.Pin)
	}
	s.last = widthUs
	return nil
}

// Last returns the last pulse width written.
func (s *Servo) Last() int {
	return s.last
}

// Stop writes the neutral pulse.
func (s *Servo) Stop() error {
	return s.Write(s.cfg.StopUs)
}

// Pair is the left and right wheel servos. It implements drive.Actuator.
type Pair struct {
	wheels drive.PerSide[*Servo]
}

// NewPair builds both wheel servos.
func NewPair(g gpio.Driver, left, right Config) (*Pair, error) {
	l, err := NewServo(g, left)
	if err != nil {
		return nil, errors.Wrap(err, "left wheel")
	}
	r, err := NewServo(g, right)
	if err != nil {
		return nil, errors.Wrap(err, "right wheel")
	}
	return &Pair{wheels: drive.PerSide[*Servo]{l, r}}, nil
}

// WriteSpeed sets the pulse of one wheel.
func (p *Pair) WriteSpeed(side drive.Side, pulse int) error {
	return p.wheels[side].Write(pulse)
}

// Wheel returns the servo of side.
func (p *Pair) Wheel(side drive.Side) *Servo {
	return p.wheels[side]
}

// Stop neutralizes both wheels. Both are attempted even if one fails.
func (p *Pair) Stop() error {
	return multierr.Append(p.wheels[drive.Left].Stop(), p.wheels[drive.Right].Stop())
}
