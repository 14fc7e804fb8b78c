package motion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/hw/rangesensor"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
)

// Status is the outcome of one primitive step.
type Status int

const (
	Running Status = iota
	Done
)

func (s Status) String() string {
	if s == Done {
		return "done"
	}
	return "running"
}

// Result is what a primitive returns once the robot has stopped.
// Warnings aggregates the non-fatal conditions seen while it ran,
// each kind and wheel at most once; nil when there were none.
type Result struct {
	DistanceM float64
	Warnings  error
}

// Primitive is a resumable motion routine. Begin sets the initial
// commands; Step checks the termination predicate and, when the motion
// must go on, runs one control tick.
type Primitive interface {
	fmt.Stringer
	Begin(d *Driver) error
	Step(d *Driver) (Status, error)
}

// Telemetry is one closed sampling window, as seen by the driver.
type Telemetry struct {
	drive.Report
	Primitive string
	RangeCm   int
	HasRange  bool
}

// Driver runs primitives against a drive controller and a range sensor.
// Runs are serialized: a second Run waits for the first to stop.
type Driver struct {
	mu       sync.Mutex
	ctrl     *drive.Controller
	sensor   rangesensor.Sensor
	wallGain int
	pace     time.Duration

	current  string
	rangeCm  int
	hasRange bool
	warnings error
	seen     map[string]bool
	observer func(Telemetry)
}

// Options tunes a Driver.
type Options struct {
	// WallGain is the steering bias of wall following, in microseconds.
	WallGain int
	// Pace is the wait between two control ticks. Zero runs ticks back to back.
	Pace time.Duration
}

// NewDriver wraps ctrl. sensor may be nil when no range sensor is fitted;
// ranged primitives then fail to start.
func NewDriver(ctrl *drive.Controller, sensor rangesensor.Sensor, opts Options) *Driver {
	d := &Driver{
		ctrl:     ctrl,
		sensor:   sensor,
		wallGain: opts.WallGain,
		pace:     opts.Pace,
	}
	ctrl.OnWindow(d.window)
	return d
}

// OnWindow registers fn to be called with every closed sampling window.
func (d *Driver) OnWindow(fn func(Telemetry)) {
	d.observer = fn
}

// Controller returns the wrapped drive controller.
func (d *Driver) Controller() *drive.Controller {
	return d.ctrl
}

func (d *Driver) window(rep drive.Report) {
	if d.hasRange {
		debug.Live("range %dcm", d.rangeCm)
	}
	if d.observer != nil {
		d.observer(Telemetry{Report: rep, Primitive: d.current, RangeCm: d.rangeCm, HasRange: d.hasRange})
	}
}

// Run executes p until it is done, ctx is cancelled or an actuator fails.
// The robot is always stopped before Run returns. On cancellation the
// result holds the distance traveled so far and the error is ctx.Err().
func (d *Driver) Run(ctx context.Context, p Primitive) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.current = p.String()
	d.warnings = nil
	d.seen = make(map[string]bool)
	d.hasRange = false
	debug.Command(d.current)

	err := d.run(ctx, p)
	dist, stopErr := d.ctrl.Stop()
	res := Result{DistanceM: dist, Warnings: d.warnings}
	d.current = ""
	return res, multierr.Append(err, errors.Wrap(stopErr, "stop"))
}

func (d *Driver) run(ctx context.Context, p Primitive) error {
	if err := p.Begin(d); err != nil {
		return errors.Wrapf(err, "begin %s", p)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := p.Step(d)
		if err != nil {
			return errors.Wrap(err, p.String())
		}
		if st == Done {
			return nil
		}
		if err := d.wait(ctx); err != nil {
			return err
		}
	}
}

func (d *Driver) wait(ctx context.Context) error {
	if d.pace <= 0 {
		return nil
	}
	t := d.ctrl.Clock().Timer(d.pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stop stops the robot outside of any primitive and returns the distance
// traveled since the previous stop.
func (d *Driver) Stop() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctrl.Stop()
}

// tick runs one control tick, collecting its warnings.
func (d *Driver) tick() error {
	rep, err := d.ctrl.Tick()
	for _, w := range rep.Warnings {
		d.warn(w)
	}
	return err
}

// warn records w unless the same kind was already seen on the same wheel.
func (d *Driver) warn(w error) {
	key := w.Error()
	var dw *drive.Warning
	if errors.As(w, &dw) {
		key = dw.Kind.Error() + "/" + dw.Side.String()
	}
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	debug.Warn(w)
	d.warnings = multierr.Append(d.warnings, w)
}

// readRange refreshes the last range reading. A failed read keeps the
// previous value and raises a warning.
func (d *Driver) readRange() {
	cm, err := d.sensor.Range()
	if err != nil {
		d.warn(errors.Wrap(drive.ErrSensorUnavailable, "range: "+err.Error()))
		return
	}
	d.rangeCm = cm
	d.hasRange = true
}

func (d *Driver) aim(h rangesensor.Heading) error {
	if d.sensor == nil {
		return errors.New("no range sensor")
	}
	return d.sensor.Aim(h)
}

func (d *Driver) pulses() drive.Pulses {
	return d.ctrl.Params().Pulses
}

// DriveForward drives straight ahead for meters.
func (d *Driver) DriveForward(ctx context.Context, meters float64) (Result, error) {
	return d.Run(ctx, DriveForward(meters))
}

// DriveReverse drives straight back for meters.
func (d *Driver) DriveReverse(ctx context.Context, meters float64) (Result, error) {
	return d.Run(ctx, DriveReverse(meters))
}

// RotateLeft turns in place counter-clockwise by degrees.
func (d *Driver) RotateLeft(ctx context.Context, degrees float64) (Result, error) {
	return d.Run(ctx, RotateLeft(degrees))
}

// RotateRight turns in place clockwise by degrees.
func (d *Driver) RotateRight(ctx context.Context, degrees float64) (Result, error) {
	return d.Run(ctx, RotateRight(degrees))
}

// DriveForwardUntilRange drives ahead until limitM is covered or an
// obstacle is within stopCm.
func (d *Driver) DriveForwardUntilRange(ctx context.Context, limitM float64, stopCm int) (Result, error) {
	return d.Run(ctx, DriveForwardUntilRange(limitM, stopCm))
}

// WallFollow keeps the wall on side at targetCm for limitM.
func (d *Driver) WallFollow(ctx context.Context, side drive.Side, targetCm int, limitM float64) (Result, error) {
	return d.Run(ctx, WallFollow(side, targetCm, limitM))
}

// WallFollowUntil keeps the wall on side at targetCm until the range
// reaches stopCm, typically where the wall ends.
func (d *Driver) WallFollowUntil(ctx context.Context, side drive.Side, targetCm, stopCm int) (Result, error) {
	return d.Run(ctx, WallFollowUntil(side, targetCm, stopCm))
}
