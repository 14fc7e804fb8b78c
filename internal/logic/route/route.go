package route

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
	"github.com/cjeanneret/geekdrive/internal/logic/motion"
)

// Step is one parsed command of a route.
type Step struct {
	Primitive motion.Primitive
	Text      string
}

// Route is a sequence of motion primitives run one after the other.
//
// Commands are separated by ';' or newlines, '#' starts a comment.
// Distances are in meters, angles in degrees, ranges in centimetres:
//
//	forward <m>                     reverse <m>
//	left <deg>                      right <deg>
//	forward-until <m> <stop_cm>
//	wall-left <target_cm> <m>       wall-right <target_cm> <m>
//	wall-left-until <target_cm> <stop_cm>
//	wall-right-until <target_cm> <stop_cm>
type Route struct {
	Steps []Step
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Step   string
	Result motion.Result
	Err    error
}

// maxRangeCm bounds centimetre arguments; no range sensor sees past it.
const maxRangeCm = 10000

// Argument kinds of a command: 'm' is a real amount (meters or degrees),
// 'c' a whole number of centimetres.
type command struct {
	kinds string
	build func(f []float64) motion.Primitive
}

var commands = map[string]command{
	"forward": {"m", func(f []float64) motion.Primitive { return motion.DriveForward(f[0]) }},
	"reverse": {"m", func(f []float64) motion.Primitive { return motion.DriveReverse(f[0]) }},
	"left":    {"m", func(f []float64) motion.Primitive { return motion.RotateLeft(f[0]) }},
	"right":   {"m", func(f []float64) motion.Primitive { return motion.RotateRight(f[0]) }},
	"forward-until": {"mc", func(f []float64) motion.Primitive {
		return motion.DriveForwardUntilRange(f[0], int(f[1]))
	}},
	"wall-left": {"cm", func(f []float64) motion.Primitive {
		return motion.WallFollow(drive.Left, int(f[0]), f[1])
	}},
	"wall-right": {"cm", func(f []float64) motion.Primitive {
		return motion.WallFollow(drive.Right, int(f[0]), f[1])
	}},
	"wall-left-until": {"cc", func(f []float64) motion.Primitive {
		return motion.WallFollowUntil(drive.Left, int(f[0]), int(f[1]))
	}},
	"wall-right-until": {"cc", func(f []float64) motion.Primitive {
		return motion.WallFollowUntil(drive.Right, int(f[0]), int(f[1]))
	}},
}

// Parse reads a route script.
func Parse(src string) (*Route, error) {
	r := &Route{}
	for n, line := range strings.Split(src, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, text := range strings.Split(line, ";") {
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}
			p, err := parseCommand(fields)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", n+1)
			}
			r.Steps = append(r.Steps, Step{Primitive: p, Text: strings.Join(fields, " ")})
		}
	}
	if len(r.Steps) == 0 {
		return nil, errors.New("route is empty")
	}
	return r, nil
}

func parseCommand(fields []string) (motion.Primitive, error) {
	name := strings.ToLower(fields[0])
	cmd, ok := commands[name]
	if !ok {
		return nil, errors.Errorf("unknown command %q", fields[0])
	}
	if len(fields)-1 != len(cmd.kinds) {
		return nil, errors.Errorf("%s takes %d argument(s), got %d", name, len(cmd.kinds), len(fields)-1)
	}
	vals := make([]float64, len(cmd.kinds))
	for i, s := range fields[1:] {
		v, err := parseArg(cmd.kinds[i], s)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		vals[i] = v
	}
	return cmd.build(vals), nil
}

func parseArg(kind byte, s string) (float64, error) {
	if kind == 'c' {
		cm, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.Errorf("invalid centimetres %q", s)
		}
		if cm < 0 {
			return 0, errors.Errorf("%q must not be negative", s)
		}
		if cm > maxRangeCm {
			return 0, errors.Errorf("%q exceeds %dcm", s, maxRangeCm)
		}
		return float64(cm), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("invalid number %q", s)
	}
	if v < 0 {
		return 0, errors.Errorf("%q must not be negative", s)
	}
	return v, nil
}

// TotalDistance sums the distance of all results.
func TotalDistance(results []StepResult) float64 {
	total := 0.0
	for _, r := range results {
		total += r.Result.DistanceM
	}
	return total
}

// Run executes the steps in order. It stops at the first failing step
// or when ctx is cancelled; the robot is stopped in both cases.
// onStep, when not nil, is called after each executed step.
func (r *Route) Run(ctx context.Context, d *motion.Driver, onStep func(i int, res StepResult)) ([]StepResult, error) {
	debug.Section("Route")
	results := make([]StepResult, 0, len(r.Steps))
	for i, s := range r.Steps {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		debug.Step(i+1, s.Text)
		res, err := d.Run(ctx, s.Primitive)
		sr := StepResult{Step: s.Text, Result: res, Err: err}
		results = append(results, sr)
		if onStep != nil {
			onStep(i, sr)
		}
		if err != nil {
			return results, errors.Wrapf(err, "step %d (%s)", i+1, s.Text)
		}
		debug.Live("step %d/%d done: %.3fm", i+1, len(r.Steps), res.DistanceM)
	}
	debug.Summary(debug.Fmt("Route complete: %d steps, %.3fm", len(r.Steps), TotalDistance(results)))
	return results, nil
}
