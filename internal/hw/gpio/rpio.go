package gpio

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/geekdrive/internal/debug"
)

const (
	// pwmClockHz gives the PWM counter a 1µs resolution.
	pwmClockHz = 1_000_000
	// servoPeriodUs is one 50 Hz servo frame.
	servoPeriodUs = 20_000
	// mcp3008Channels is the number of single-ended inputs of the ADC.
	mcp3008Channels = 8
	spiSpeedHz      = 1_000_000
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
// Servo pulses use the hardware PWM pins (BCM 12, 13, 18, 19) and analog
// inputs are read from an MCP3008 on SPI0/CE0.
type RPiDriver struct {
	pins   map[int]rpio.Pin
	spiOn  bool
	pwmPin map[int]bool
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/mem (SPI and PWM need root).
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "failed to open GPIO (are you running on a Raspberry Pi?)")
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:   make(map[int]rpio.Pin),
		pwmPin: make(map[int]bool),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	case PWM:
		p.Pwm()
		p.Freq(pwmClockHz)
		r.pwmPin[pin] = true
	default:
		return errors.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) WritePulse(pin int, widthUs int) error {
	debug.GPIO("WritePulse", pin, widthUs)

	if widthUs < 0 || widthUs > servoPeriodUs {
		return errors.Errorf("pulse width %dus outside servo frame", widthUs)
	}
	if !r.pwmPin[pin] {
		if err := r.SetupPin(pin, PWM); err != nil {
			return err
		}
	}
	r.pins[pin].DutyCycle(uint32(widthUs), servoPeriodUs)
	return nil
}

func (r *RPiDriver) ReadAnalog(channel int) (int, error) {
	if channel < 0 || channel >= mcp3008Channels {
		return 0, errors.Errorf("analog channel %d out of range 0-%d", channel, mcp3008Channels-1)
	}
	if !r.spiOn {
		if err := rpio.SpiBegin(rpio.Spi0); err != nil {
			return 0, errors.Wrap(err, "start SPI for ADC")
		}
		rpio.SpiSpeed(spiSpeedHz)
		rpio.SpiChipSelect(0)
		r.spiOn = true
	}

	// MCP3008 single-ended read: start bit, SGL|channel, then 10 result bits.
	buf := []byte{0x01, byte(0x80 | channel<<4), 0x00}
	rpio.SpiExchange(buf)
	v := int(buf[1]&0x03)<<8 | int(buf[2])
	debug.GPIO("ReadAnalog", channel, v)
	return v, nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	if r.spiOn {
		rpio.SpiEnd(rpio.Spi0)
		r.spiOn = false
	}
	return rpio.Close()
}
