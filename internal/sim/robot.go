// Package sim is a simulated GeekDrive robot. It implements gpio.Driver
// so the whole stack, from servo pulses to encoder and IR readings, runs
// without hardware.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/geekdrive/internal/config"
	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/hw/gpio"
	"github.com/cjeanneret/geekdrive/internal/hw/rangesensor"
)

// Stripe intensities seen by the reflective wheel sensors.
const (
	Dark  = 100
	Light = 900
)

// integration step of the pose
const step = time.Millisecond

// Pose is the position of the robot in the world frame: x along the
// start heading, y to the left, heading counter-clockwise in degrees.
type Pose struct {
	X, Y, Heading float64
}

// Robot is a differential-drive robot moving in a world of straight walls.
// The world is advanced lazily from the clock on every driver call.
type Robot struct {
	mu    sync.Mutex
	clock clock.Clock
	cfg   config.Config

	pulses map[int]int
	last   time.Time
	revs   [2]float64 // signed wheel revolutions, left then right
	x, y   float64
	theta  float64 // radians
}

// New creates a robot at the origin with both servos stopped.
// A nil clk uses the wall clock.
func New(cfg *config.Config, clk clock.Clock) *Robot {
	if clk == nil {
		clk = clock.New()
	}
	debug.Info("Using SIMULATED robot (left wall %.2fm, obstacle %.2fm)", cfg.Sim.LeftWallM, cfg.Sim.ObstacleM)
	return &Robot{
		clock:  clk,
		cfg:    *cfg,
		pulses: make(map[int]int),
		last:   clk.Now(),
	}
}

func (r *Robot) SetupPin(pin int, mode gpio.PinMode) error {
	debug.GPIO("SetupPin (sim)", pin, mode)
	return nil
}

func (r *Robot) WritePin(pin int, level gpio.Level) error {
	debug.GPIO("WritePin (sim)", pin, level)
	return nil
}

func (r *Robot) ReadPin(pin int) (gpio.Level, error) {
	return gpio.Low, nil
}

// WritePulse sets a servo pulse. Wheel and head pins move the robot;
// other pins are ignored.
func (r *Robot) WritePulse(pin int, widthUs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	r.pulses[pin] = widthUs
	debug.GPIO("WritePulse (sim)", pin, widthUs)
	return nil
}

// ReadAnalog returns the wheel stripe under each encoder and the IR
// reading of the range sensor.
func (r *Robot) ReadAnalog(channel int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	switch channel {
	case r.cfg.Encoders.LeftChannel:
		return stripe(r.revs[0], r.cfg.Chassis.TicksPerRev), nil
	case r.cfg.Encoders.RightChannel:
		return stripe(r.revs[1], r.cfg.Chassis.TicksPerRev), nil
	case r.cfg.RangeSensor.Channel:
		return rangesensor.CmToRaw(r.rangeCm(), r.cfg.RangeSensor.ScaleCm), nil
	}
	return 0, nil
}

func (r *Robot) Close() error {
	debug.Trace("GPIO Close (sim)")
	return nil
}

// Pose returns the current position of the robot.
func (r *Robot) Pose() Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return Pose{X: r.x, Y: r.y, Heading: r.theta * 180 / math.Pi}
}

// stripe returns the intensity under a sensor after revs revolutions.
// A wheel carries ticksPerRev alternating stripes, dark first.
func stripe(revs float64, ticksPerRev int) int {
	idx := int64(math.Floor(revs * float64(ticksPerRev)))
	if idx%2 == 0 {
		return Dark
	}
	return Light
}

// wheelRPS maps a pulse to a signed wheel speed, positive counter-clockwise.
// Speed is zero at stop, MinWheelRPS at the slowest calibrated pulses and
// MaxWheelRPS at the end of the range, linear in between.
func (r *Robot) wheelRPS(pulse int) float64 {
	s, sim := r.cfg.Servos, r.cfg.Sim
	if pulse == 0 {
		return 0
	}
	lerp := func(p, p0, p1 int, v0, v1 float64) float64 {
		return v0 + (v1-v0)*float64(p-p0)/float64(p1-p0)
	}
	switch {
	case pulse >= s.MaxUs:
		return sim.MaxWheelRPS
	case pulse >= s.CCWMinUs:
		return lerp(pulse, s.CCWMinUs, s.MaxUs, sim.MinWheelRPS, sim.MaxWheelRPS)
	case pulse > s.StopUs:
		return lerp(pulse, s.StopUs, s.CCWMinUs, 0, sim.MinWheelRPS)
	case pulse == s.StopUs:
		return 0
	case pulse > s.CWMinUs:
		return -lerp(pulse, s.StopUs, s.CWMinUs, 0, sim.MinWheelRPS)
	case pulse > s.MinUs:
		return -lerp(pulse, s.CWMinUs, s.MinUs, sim.MinWheelRPS, sim.MaxWheelRPS)
	default:
		return -sim.MaxWheelRPS
	}
}

// advance moves the world to the current clock time. The left wheel
// turns counter-clockwise and the right wheel clockwise to go forward.
func (r *Robot) advance() {
	now := r.clock.Now()
	dt := now.Sub(r.last)
	r.last = now
	if dt <= 0 {
		return
	}

	rpsL := r.wheelRPS(r.pulses[r.cfg.Servos.LeftPin])
	rpsR := r.wheelRPS(r.pulses[r.cfg.Servos.RightPin])
	circ := 2 * math.Pi * r.cfg.Chassis.WheelRadiusM
	vL := rpsL * circ
	vR := -rpsR * circ
	v := (vL + vR) / 2
	omega := (vR - vL) / r.cfg.Chassis.WheelSpacingM

	r.revs[0] += rpsL * dt.Seconds()
	r.revs[1] += rpsR * dt.Seconds()

	for dt > 0 {
		h := min(dt, step).Seconds()
		r.x += v * math.Cos(r.theta) * h
		r.y += v * math.Sin(r.theta) * h
		r.theta += omega * h
		dt -= step
	}
}

// headAngle returns the direction of the IR head relative to the robot,
// in radians, interpolated from the head servo pulse.
func (r *Robot) headAngle() float64 {
	rs := r.cfg.RangeSensor
	p, ok := r.pulses[rs.HeadPin]
	if !ok || p == rs.ForwardUs {
		return 0
	}
	span := rs.LeftUs - rs.ForwardUs
	if p < rs.ForwardUs {
		span = rs.ForwardUs - rs.RightUs
	}
	return float64(p-rs.ForwardUs) / float64(span) * math.Pi / 2
}

// rangeCm casts a ray from the robot along the head direction and returns
// the distance to the first wall, capped at the sensor range.
func (r *Robot) rangeCm() float64 {
	w := r.cfg.Sim
	a := r.theta + r.headAngle()
	c, s := math.Cos(a), math.Sin(a)
	best := math.Inf(1)

	side := func(wallY float64) {
		if math.Abs(s) < 1e-9 {
			return
		}
		t := (wallY - r.y) / s
		if t <= 0 {
			return
		}
		if w.WallEndM > 0 && r.x+t*c > w.WallEndM {
			return
		}
		best = math.Min(best, t)
	}
	if w.LeftWallM > 0 {
		side(w.LeftWallM)
	}
	if w.RightWallM > 0 {
		side(-w.RightWallM)
	}
	if w.ObstacleM > 0 && math.Abs(c) > 1e-9 {
		if t := (w.ObstacleM - r.x) / c; t > 0 {
			best = math.Min(best, t)
		}
	}

	maxCm := float64(r.cfg.RangeSensor.MaxCm)
	return math.Min(best*100, maxCm)
}
