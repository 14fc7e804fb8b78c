package motion

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/hw/rangesensor"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
)

func checkAmount(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return errors.Errorf("%s must be a finite value >= 0, got %v", name, v)
	}
	return nil
}

// straight drives along a line until the distance is covered.
type straight struct {
	dir    drive.Direction
	meters float64
}

// DriveForward returns a primitive driving ahead for meters.
func DriveForward(meters float64) Primitive {
	return &straight{dir: drive.Forward, meters: meters}
}

// DriveReverse returns a primitive driving back for meters.
func DriveReverse(meters float64) Primitive {
	return &straight{dir: drive.Reverse, meters: meters}
}

func (s *straight) String() string {
	return fmt.Sprintf("%s %gm", s.dir, s.meters)
}

func (s *straight) Begin(d *Driver) error {
	if err := checkAmount("distance", s.meters); err != nil {
		return err
	}
	p := d.pulses()
	if s.dir == drive.Forward {
		d.ctrl.Drive(drive.Forward, p.CCWMin, p.CWMin)
	} else {
		d.ctrl.Drive(drive.Reverse, p.CWMin, p.CCWMin)
	}
	return nil
}

func (s *straight) Step(d *Driver) (Status, error) {
	if d.ctrl.State().DistanceM >= s.meters {
		return Done, nil
	}
	return Running, d.tick()
}

// rotate turns in place until the angle is covered.
type rotate struct {
	left    bool
	degrees float64
}

// RotateLeft returns a primitive turning counter-clockwise by degrees.
func RotateLeft(degrees float64) Primitive {
	return &rotate{left: true, degrees: degrees}
}

// RotateRight returns a primitive turning clockwise by degrees.
func RotateRight(degrees float64) Primitive {
	return &rotate{degrees: degrees}
}

func (r *rotate) String() string {
	if r.left {
		return fmt.Sprintf("rotate left %gdeg", r.degrees)
	}
	return fmt.Sprintf("rotate right %gdeg", r.degrees)
}

func (r *rotate) Begin(d *Driver) error {
	if err := checkAmount("angle", r.degrees); err != nil {
		return err
	}
	p := d.pulses()
	if r.left {
		d.ctrl.Drive(drive.Rotating, p.CWMin, p.CWMin)
	} else {
		d.ctrl.Drive(drive.Rotating, p.CCWMin, p.CCWMin)
	}
	return nil
}

func (r *rotate) Step(d *Driver) (Status, error) {
	if d.ctrl.State().Degrees >= r.degrees {
		return Done, nil
	}
	return Running, d.tick()
}

// untilRange drives ahead until a distance limit or a close obstacle.
type untilRange struct {
	limitM float64
	stopCm int
}

// DriveForwardUntilRange returns a primitive driving ahead until limitM
// is covered or the forward range drops to stopCm.
func DriveForwardUntilRange(limitM float64, stopCm int) Primitive {
	return &untilRange{limitM: limitM, stopCm: stopCm}
}

func (u *untilRange) String() string {
	return fmt.Sprintf("forward %gm until range %dcm", u.limitM, u.stopCm)
}

func (u *untilRange) Begin(d *Driver) error {
	if err := checkAmount("distance", u.limitM); err != nil {
		return err
	}
	p := d.pulses()
	d.ctrl.Drive(drive.Forward, p.CCWMin, p.CWMin)
	if err := d.aim(rangesensor.Forward); err != nil {
		return err
	}
	d.readRange()
	return nil
}

func (u *untilRange) Step(d *Driver) (Status, error) {
	if d.ctrl.State().DistanceM >= u.limitM {
		return Done, nil
	}
	if d.hasRange && d.rangeCm <= u.stopCm {
		return Done, nil
	}
	d.readRange()
	return Running, d.tick()
}

// wallFollow drives ahead with relay steering on a side wall.
type wallFollow struct {
	side     drive.Side
	targetCm int
	until    bool
	limitM   float64
	stopCm   int
}

// WallFollow returns a primitive following the wall on side at targetCm
// for limitM.
func WallFollow(side drive.Side, targetCm int, limitM float64) Primitive {
	return &wallFollow{side: side, targetCm: targetCm, limitM: limitM}
}

// WallFollowUntil returns a primitive following the wall on side at
// targetCm while the range stays below stopCm.
func WallFollowUntil(side drive.Side, targetCm, stopCm int) Primitive {
	return &wallFollow{side: side, targetCm: targetCm, until: true, stopCm: stopCm}
}

func (w *wallFollow) String() string {
	if w.until {
		return fmt.Sprintf("wall %s %dcm until %dcm", w.side, w.targetCm, w.stopCm)
	}
	return fmt.Sprintf("wall %s %dcm for %gm", w.side, w.targetCm, w.limitM)
}

func (w *wallFollow) Begin(d *Driver) error {
	if w.side != drive.Left && w.side != drive.Right {
		return errors.Errorf("invalid wall side %d", w.side)
	}
	if !w.until {
		if err := checkAmount("distance", w.limitM); err != nil {
			return err
		}
	}
	p := d.pulses()
	d.ctrl.Drive(drive.Forward, p.CCWMin, p.CWMin)

	h := rangesensor.Left
	if w.side == drive.Right {
		h = rangesensor.Right
	}
	if err := d.aim(h); err != nil {
		return err
	}
	if w.until {
		d.readRange()
	}
	return nil
}

func (w *wallFollow) Step(d *Driver) (Status, error) {
	if w.until {
		if d.hasRange && d.rangeCm >= w.stopCm {
			return Done, nil
		}
	} else if d.ctrl.State().DistanceM >= w.limitM {
		return Done, nil
	}

	d.readRange()
	if d.hasRange {
		l, r := WallCommand(d.pulses(), d.wallGain, w.side, d.rangeCm, w.targetCm)
		d.ctrl.SetSpeeds(l, r)
	}
	return Running, d.tick()
}

// WallCommand returns the wheel commands of relay wall following: when
// the wall is farther than target the robot steers toward it, otherwise
// away from it. Steering slows one wheel by gain.
func WallCommand(p drive.Pulses, gain int, wall drive.Side, rangeCm, targetCm int) (left, right int) {
	far := rangeCm > targetCm
	switch {
	case wall == drive.Left && far:
		return p.CCWMin - gain, p.CWMin
	case wall == drive.Left:
		return p.CCWMin, p.CWMin + gain
	case far:
		return p.CCWMin, p.CWMin + gain
	default:
		return p.CCWMin - gain, p.CWMin
	}
}
