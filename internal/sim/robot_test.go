package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/geekdrive/internal/config"
	"github.com/cjeanneret/geekdrive/internal/hw/encoder"
	"github.com/cjeanneret/geekdrive/internal/hw/rangesensor"
	"github.com/cjeanneret/geekdrive/internal/hw/servo"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
	"github.com/cjeanneret/geekdrive/internal/logic/motion"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sim = config.SimConfig{MinWheelRPS: 0.5, MaxWheelRPS: 1.0, LeftWallM: 0.25, WallEndM: 1.0, ObstacleM: 1.0}
	return cfg
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestWheelRPS(t *testing.T) {
	r := New(testConfig(), clock.NewMock())
	tests := []struct {
		pulse int
		want  float64
	}{
		{0, 0},
		{1500, 0},
		{1550, 0.25},
		{1600, 0.5},
		{1650, 0.75},
		{1700, 1},
		{1800, 1},
		{1440, -0.25},
		{1380, -0.5},
		{1340, -0.75},
		{1300, -1},
		{1200, -1},
	}
	for _, tt := range tests {
		if got := r.wheelRPS(tt.pulse); !near(got, tt.want, 1e-9) {
			t.Errorf("wheelRPS(%d) = %v, want %v", tt.pulse, got, tt.want)
		}
	}
}

func TestStripe(t *testing.T) {
	tests := []struct {
		revs float64
		want int
	}{
		{0, Dark},
		{0.5 / 64, Dark},
		{1.5 / 64, Light},
		{2.5 / 64, Dark},
		{-0.5 / 64, Light},
		{-1.5 / 64, Dark},
	}
	for _, tt := range tests {
		if got := stripe(tt.revs, 64); got != tt.want {
			t.Errorf("stripe(%v) = %d, want %d", tt.revs, got, tt.want)
		}
	}
}

func TestRobot_DrivesStraight(t *testing.T) {
	mock := clock.NewMock()
	cfg := testConfig()
	r := New(cfg, mock)
	_ = r.WritePulse(cfg.Servos.LeftPin, 1600)
	_ = r.WritePulse(cfg.Servos.RightPin, 1380)
	mock.Add(time.Second)

	p := r.Pose()
	want := 0.5 * 2 * math.Pi * 0.05
	if !near(p.X, want, 1e-6) || !near(p.Y, 0, 1e-9) || !near(p.Heading, 0, 1e-9) {
		t.Errorf("pose = %+v, want x=%v straight ahead", p, want)
	}
}

func TestRobot_RotatesInPlace(t *testing.T) {
	mock := clock.NewMock()
	cfg := testConfig()
	r := New(cfg, mock)
	_ = r.WritePulse(cfg.Servos.LeftPin, 1380)
	_ = r.WritePulse(cfg.Servos.RightPin, 1380)
	mock.Add(500 * time.Millisecond)

	p := r.Pose()
	// 0.25 rev of each wheel, on a circle of diameter wheel_spacing.
	want := 0.25 * 2 * math.Pi * 0.05 / (math.Pi * 0.195) * 360
	if !near(p.Heading, want, 1e-6) {
		t.Errorf("heading = %v, want %v (counter-clockwise)", p.Heading, want)
	}
	if !near(p.X, 0, 1e-9) || !near(p.Y, 0, 1e-9) {
		t.Errorf("rotation moved the robot: %+v", p)
	}
}

func TestRobot_EncoderStripesFollowWheel(t *testing.T) {
	mock := clock.NewMock()
	cfg := testConfig()
	r := New(cfg, mock)
	_ = r.WritePulse(cfg.Servos.LeftPin, 1600) // 0.5 rev/s, 32 stripes/s

	edges := 0
	prev, _ := r.ReadAnalog(cfg.Encoders.LeftChannel)
	for i := 0; i < 101; i++ {
		mock.Add(10 * time.Millisecond)
		v, _ := r.ReadAnalog(cfg.Encoders.LeftChannel)
		if v != prev {
			edges++
		}
		prev = v
	}
	if edges != 32 {
		t.Errorf("edges in 1.01s = %d, want 32", edges)
	}
	if v, _ := r.ReadAnalog(cfg.Encoders.RightChannel); v != Dark {
		t.Errorf("stopped right wheel reads %d, want dark", v)
	}
}

func TestRobot_RangeFollowsHead(t *testing.T) {
	mock := clock.NewMock()
	cfg := testConfig()
	r := New(cfg, mock)
	rs := cfg.RangeSensor

	read := func() int {
		raw, _ := r.ReadAnalog(rs.Channel)
		return rangesensor.RawToCm(raw, rs.ScaleCm, rs.MaxCm)
	}

	if got := read(); got != 100 {
		t.Errorf("forward range = %d, want 100 (obstacle at 1m)", got)
	}
	_ = r.WritePulse(rs.HeadPin, rs.LeftUs)
	if got := read(); got != 25 {
		t.Errorf("left range = %d, want 25", got)
	}
	_ = r.WritePulse(rs.HeadPin, rs.RightUs)
	if got := read(); got != rs.MaxCm {
		t.Errorf("right range = %d, want max %d (no wall)", got, rs.MaxCm)
	}
}

// steppingRobot advances the mock clock on every left encoder read, the
// way time passes between two control ticks.
type steppingRobot struct {
	*Robot
	clk  *clock.Mock
	step time.Duration
}

func (s steppingRobot) ReadAnalog(channel int) (int, error) {
	if channel == s.cfg.Encoders.LeftChannel {
		s.clk.Add(s.step)
	}
	return s.Robot.ReadAnalog(channel)
}

func newStack(t *testing.T, cfg *config.Config) (*motion.Driver, *Robot) {
	t.Helper()
	mock := clock.NewMock()
	robot := New(cfg, mock)
	g := steppingRobot{Robot: robot, clk: mock, step: 10 * time.Millisecond}

	s := cfg.Servos
	wheels, err := servo.NewPair(g,
		servo.Config{Pin: s.LeftPin, StopUs: s.StopUs, MinUs: s.MinUs, MaxUs: s.MaxUs},
		servo.Config{Pin: s.RightPin, StopUs: s.StopUs, MinUs: s.MinUs, MaxUs: s.MaxUs})
	if err != nil {
		t.Fatalf("servos: %v", err)
	}
	rs := cfg.RangeSensor
	ir, err := rangesensor.NewPanningIR(g, rangesensor.Config{
		Channel: rs.Channel, HeadPin: rs.HeadPin,
		Pulses:  [3]int{rs.ForwardUs, rs.LeftUs, rs.RightUs},
		Samples: rs.Samples, ScaleCm: rs.ScaleCm, MaxCm: rs.MaxCm,
	}, mock)
	if err != nil {
		t.Fatalf("range sensor: %v", err)
	}
	params, err := drive.ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	enc := encoder.NewReflective(g, cfg.Encoders.LeftChannel, cfg.Encoders.RightChannel)
	ctrl := drive.NewController(params, enc, wheels, mock)
	return motion.NewDriver(ctrl, ir, motion.Options{WallGain: cfg.Control.WallFollowGainUs}), robot
}

func TestStack_DriveForwardMatchesOdometry(t *testing.T) {
	cfg := testConfig()
	cfg.Sim.ObstacleM = 0
	d, robot := newStack(t, cfg)

	res, err := d.DriveForward(context.Background(), 0.5)
	if err != nil {
		t.Fatalf("DriveForward: %v", err)
	}
	p := robot.Pose()
	if !near(p.X, res.DistanceM, 0.05) {
		t.Errorf("x = %v, odometry = %v", p.X, res.DistanceM)
	}
	if res.DistanceM < 0.5 || !near(p.Heading, 0, 5) {
		t.Errorf("distance=%v heading=%v, want a straight 0.5m", res.DistanceM, p.Heading)
	}
}

func TestStack_RotateLeft(t *testing.T) {
	d, robot := newStack(t, testConfig())
	if _, err := d.RotateLeft(context.Background(), 90); err != nil {
		t.Fatalf("RotateLeft: %v", err)
	}
	if h := robot.Pose().Heading; h < 85 || h > 115 {
		t.Errorf("heading = %v, want about 90", h)
	}
}

func TestStack_ForwardUntilObstacle(t *testing.T) {
	d, robot := newStack(t, testConfig())
	res, err := d.DriveForwardUntilRange(context.Background(), 3, 30)
	if err != nil {
		t.Fatalf("DriveForwardUntilRange: %v", err)
	}
	if x := robot.Pose().X; x < 0.65 || x > 0.75 {
		t.Errorf("stopped at x=%v, want about 0.7 (30cm before the obstacle)", x)
	}
	if res.DistanceM >= 3 {
		t.Errorf("DistanceM = %v, want the obstacle to stop the run", res.DistanceM)
	}
}

func TestStack_WallFollowUntilWallEnds(t *testing.T) {
	cfg := testConfig()
	cfg.Sim.ObstacleM = 0
	d, robot := newStack(t, cfg)
	if _, err := d.WallFollowUntil(context.Background(), drive.Left, 20, 80); err != nil {
		t.Fatalf("WallFollowUntil: %v", err)
	}
	p := robot.Pose()
	if p.X < 0.8 || p.X > 1.3 {
		t.Errorf("stopped at x=%v, want around the end of the wall at 1m", p.X)
	}
	if p.Y < -0.1 || p.Y >= 0.25 {
		t.Errorf("y = %v, want the robot between its start line and the wall", p.Y)
	}
}
