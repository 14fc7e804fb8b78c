package gpio

import (
	"sync"

	"github.com/cjeanneret/geekdrive/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input, output or hardware PWM.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

// ADCMax is the full-scale reading of the 10-bit analog inputs.
const ADCMax = 1023

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// WritePulse emits a servo pulse train (50 Hz) with the given high time in microseconds.
	WritePulse(pin int, widthUs int) error
	// ReadAnalog returns the 10-bit ADC value of an analog channel (0..ADCMax).
	ReadAnalog(channel int) (int, error)
	Close() error
}

// MockDriver is a test implementation that logs actions and remembers
// the last pulse written to each pin. Analog channels read the values
// stored in Analog (0 when unset).
// Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	Analog map[int]int
	pulses map[int]int
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) WritePulse(pin int, widthUs int) error {
	debug.GPIO("WritePulse", pin, widthUs)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pulses == nil {
		m.pulses = make(map[int]int)
	}
	m.pulses[pin] = widthUs
	return nil
}

// Pulse returns the last pulse width written to pin.
func (m *MockDriver) Pulse(pin int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.pulses[pin]
	return w, ok
}

func (m *MockDriver) ReadAnalog(channel int) (int, error) {
	m.mu.Lock()
	v := m.Analog[channel]
	m.mu.Unlock()
	debug.GPIO("ReadAnalog", channel, v)
	return v, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
