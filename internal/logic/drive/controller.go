package drive

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/cjeanneret/geekdrive/internal/config"
	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/logic/geometry"
)

// Pulses is the servo calibration, in microseconds.
type Pulses struct {
	Min    int // full clockwise
	CWMin  int // slowest clockwise
	Stop   int // neutral
	CCWMin int // slowest counter-clockwise
	Max    int // full counter-clockwise
}

// Params are the fixed constants of the drive loop.
type Params struct {
	MetersPerTick    float64
	DegreesPerTick   float64
	TicksPerRev      int
	Threshold        int
	Window           time.Duration
	CompensationGain int
	StallWindows     int // 0 disables stall detection
	Pulses           Pulses
}

// ParamsFromConfig derives the loop constants from the configuration.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	wc, err := geometry.NewWheelCalculator(cfg)
	if err != nil {
		return Params{}, err
	}
	return Params{
		MetersPerTick:    wc.MetersPerTick(),
		DegreesPerTick:   wc.DegreesPerTick(),
		TicksPerRev:      wc.TicksPerRevolution(),
		Threshold:        cfg.Encoders.Threshold,
		Window:           cfg.Window(),
		CompensationGain: cfg.Control.CompensationGainUs,
		StallWindows:     cfg.Control.StallWindows,
		Pulses: Pulses{
			Min:    cfg.Servos.MinUs,
			CWMin:  cfg.Servos.CWMinUs,
			Stop:   cfg.Servos.StopUs,
			CCWMin: cfg.Servos.CCWMinUs,
			Max:    cfg.Servos.MaxUs,
		},
	}, nil
}

// DefaultParams returns the constants of the reference robot.
func DefaultParams() Params {
	p, err := ParamsFromConfig(config.Default())
	if err != nil {
		panic(err)
	}
	return p
}

// State is a snapshot of the drive state.
type State struct {
	Command    PerSide[int]
	Direction  Direction
	DistanceM  float64
	Degrees    float64
	LastSample time.Time
}

// Report describes one control tick. Window fields are only set when
// the tick closed a sampling window.
type Report struct {
	WindowClosed bool
	Ticks        PerSide[uint32]
	SpeedRPS     PerSide[float64]
	Command      PerSide[int]
	DistanceM    float64
	Degrees      float64
	Warnings     []error
}

// Controller owns both encoder channels and the drive state.
//
// A Controller is driven by a single goroutine: each call to Tick samples
// the encoders, closes the sampling window when it is due and writes the
// wheel commands. It is not safe for concurrent use.
type Controller struct {
	params   Params
	encoders RawReader
	actuator Actuator
	clock    clock.Clock
	comp     Compensator

	channels   PerSide[EncoderChannel]
	odo        Odometry
	command    PerSide[int]
	direction  Direction
	lastSample time.Time

	observer func(Report)
}

// NewController creates a stopped controller. A nil clk uses the wall clock.
func NewController(p Params, enc RawReader, act Actuator, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		params:   p,
		encoders: enc,
		actuator: act,
		clock:    clk,
		comp: Compensator{
			Gain:     p.CompensationGain,
			MinPulse: p.Pulses.Min,
			MaxPulse: p.Pulses.Max,
		},
		odo: Odometry{
			MetersPerTick:  p.MetersPerTick,
			DegreesPerTick: p.DegreesPerTick,
		},
		command:    PerSide[int]{p.Pulses.Stop, p.Pulses.Stop},
		direction:  Forward,
		lastSample: clk.Now(),
	}
}

// OnWindow registers fn to be called with the report of every closed window.
func (c *Controller) OnWindow(fn func(Report)) {
	c.observer = fn
}

// Params returns the loop constants.
func (c *Controller) Params() Params {
	return c.params
}

// Clock returns the clock used for window gating.
func (c *Controller) Clock() clock.Clock {
	return c.clock
}

// Channel returns a copy of the encoder channel of side.
func (c *Controller) Channel(side Side) EncoderChannel {
	return c.channels[side]
}

// State returns a snapshot of the drive state.
func (c *Controller) State() State {
	return State{
		Command:    c.command,
		Direction:  c.direction,
		DistanceM:  c.odo.DistanceM,
		Degrees:    c.odo.Degrees,
		LastSample: c.lastSample,
	}
}

// Drive sets the drive direction and both wheel commands.
// The commands are written by the next Tick.
func (c *Controller) Drive(dir Direction, left, right int) {
	c.direction = dir
	c.command = PerSide[int]{left, right}
}

// SetSpeeds replaces both wheel commands, keeping the direction.
func (c *Controller) SetSpeeds(left, right int) {
	c.command = PerSide[int]{left, right}
}

// Tick runs one control iteration: encoder sampling, then the window
// update when at least one window has elapsed, then actuator writes.
// Sensor failures are returned as warnings in the report; an error is
// only returned when the actuators could not be written.
func (c *Controller) Tick() (Report, error) {
	var rep Report

	for _, s := range Sides {
		raw, err := c.encoders.ReadRaw(s)
		if err != nil {
			rep.Warnings = append(rep.Warnings, NewWarning(ErrSensorUnavailable, s, err))
			continue
		}
		c.channels[s].Sample(raw, c.params.Threshold)
	}

	now := c.clock.Now()
	if now.Sub(c.lastSample) >= c.params.Window {
		c.lastSample = now
		c.closeWindow(&rep)
	}

	rep.Command = c.command
	rep.DistanceM = c.odo.DistanceM
	rep.Degrees = c.odo.Degrees

	if err := c.write(); err != nil {
		return rep, err
	}
	return rep, nil
}

// closeWindow estimates wheel speeds, applies differential compensation
// and integrates odometry for both wheels at once.
func (c *Controller) closeWindow(rep *Report) {
	var ticks PerSide[uint32]
	for _, s := range Sides {
		ticks[s] = c.channels[s].closeWindow(c.params.TicksPerRev, c.params.Window)
		rep.SpeedRPS[s] = c.channels[s].SpeedRPS
	}

	for _, s := range c.comp.Apply(c.direction, ticks, &c.command) {
		rep.Warnings = append(rep.Warnings, NewWarning(ErrCompensationSaturated, s, nil))
	}

	c.odo.Integrate(ticks)

	if c.params.StallWindows > 0 {
		for _, s := range Sides {
			ch := &c.channels[s]
			if ticks[s] != 0 || c.command[s] == c.params.Pulses.Stop {
				ch.idleWindows = 0
				continue
			}
			ch.idleWindows++
			if ch.idleWindows == c.params.StallWindows {
				rep.Warnings = append(rep.Warnings, NewWarning(ErrOdometryStall, s, nil))
			}
		}
	}

	rep.WindowClosed = true
	rep.Ticks = ticks
	rep.Command = c.command
	rep.DistanceM = c.odo.DistanceM
	rep.Degrees = c.odo.Degrees

	if debug.IsEnabled(debug.LevelLive) {
		debug.Window(
			"ticks_left", ticks[Left], "ticks_right", ticks[Right],
			"rps_left", rep.SpeedRPS[Left], "rps_right", rep.SpeedRPS[Right],
			"cmd_left", c.command[Left], "cmd_right", c.command[Right],
			"distance_m", c.odo.DistanceM, "degrees", c.odo.Degrees,
		)
	}
	if c.observer != nil {
		c.observer(*rep)
	}
}

func (c *Controller) write() error {
	var err error
	for _, s := range Sides {
		err = multierr.Append(err, c.actuator.WriteSpeed(s, c.command[s]))
	}
	return err
}

// Stop neutralizes both wheels, writes them, and resets distance,
// degrees and tick counters. It returns the distance traveled since the
// previous stop. The reset happens even when the write fails.
func (c *Controller) Stop() (float64, error) {
	c.command = PerSide[int]{c.params.Pulses.Stop, c.params.Pulses.Stop}
	err := c.write()

	debug.Stopped(c.odo.DistanceM, c.channels[Left].CumulativeTicks, c.channels[Right].CumulativeTicks, c.odo.Degrees)

	distance := c.odo.Reset()
	for _, s := range Sides {
		c.channels[s].reset()
	}
	c.direction = Forward
	c.lastSample = c.clock.Now()
	return distance, err
}
