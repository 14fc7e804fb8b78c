package geometry

import (
	"math"
	"testing"

	"github.com/cjeanneret/geekdrive/internal/config"
)

func newChassisConfig(radius, spacing float64, ticks int) *config.Config {
	return &config.Config{
		Chassis: config.ChassisConfig{
			WheelRadiusM:  radius,
			WheelSpacingM: spacing,
			TicksPerRev:   ticks,
		},
	}
}

func TestWheelCalculator_ReferenceRobot(t *testing.T) {
	// 50 mm wheels, 195 mm track, 64 ticks per revolution.
	wc, err := NewWheelCalculator(newChassisConfig(0.05, 0.195, 64))
	if err != nil {
		t.Fatalf("NewWheelCalculator: %v", err)
	}

	if got := wc.MetersPerTick(); math.Abs(got-0.004909) > 1e-6 {
		t.Errorf("MetersPerTick() = %v, want ~0.004909", got)
	}
	if got := wc.DegreesPerTick(); math.Abs(got-2.8846) > 1e-4 {
		t.Errorf("DegreesPerTick() = %v, want ~2.8846", got)
	}
	// DriveForward(0.5) needs at least 102 average ticks.
	if got := int(math.Ceil(0.5 / wc.MetersPerTick())); got != 102 {
		t.Errorf("ticks for 0.5m = %d, want 102", got)
	}
	if got := wc.TicksPerRevolution(); got != 64 {
		t.Errorf("TicksPerRevolution() = %d, want 64", got)
	}
}

func TestWheelCalculator_RoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		radius  float64
		spacing float64
		ticks   int
	}{
		{"reference", 0.05, 0.195, 64},
		{"small_wheel", 0.021, 0.1, 20},
		{"wide_track", 0.035, 0.31, 128},
		{"single_tick", 0.05, 0.195, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wc, err := NewWheelCalculator(newChassisConfig(tc.radius, tc.spacing, tc.ticks))
			if err != nil {
				t.Fatalf("NewWheelCalculator: %v", err)
			}
			gotM := wc.MetersPerTick() * float64(tc.ticks)
			if math.Abs(gotM-wc.MetersPerRevolution()) > 1e-12 {
				t.Errorf("MetersPerTick*ticks = %v, want %v", gotM, wc.MetersPerRevolution())
			}
			gotD := wc.DegreesPerTick() * float64(tc.ticks)
			if math.Abs(gotD-wc.DegreesPerRevolution()) > 1e-9 {
				t.Errorf("DegreesPerTick*ticks = %v, want %v", gotD, wc.DegreesPerRevolution())
			}
			if math.Abs(wc.MetersPerRevolution()-2*math.Pi*tc.radius) > 1e-12 {
				t.Errorf("MetersPerRevolution() = %v, want circumference %v", wc.MetersPerRevolution(), 2*math.Pi*tc.radius)
			}
		})
	}
}

func TestWheelCalculator_FullSpin(t *testing.T) {
	// Spinning in place, each wheel travels pi*spacing for 360 degrees.
	wc, err := NewWheelCalculator(newChassisConfig(0.05, 0.195, 64))
	if err != nil {
		t.Fatalf("NewWheelCalculator: %v", err)
	}
	revs := math.Pi * 0.195 / wc.MetersPerRevolution()
	if got := revs * wc.DegreesPerRevolution(); math.Abs(got-360) > 1e-9 {
		t.Errorf("full spin = %v degrees, want 360", got)
	}
	if got := int(math.Ceil(90 / wc.DegreesPerTick())); got != 32 {
		t.Errorf("ticks for 90deg = %d, want 32", got)
	}
}

func TestWheelCalculator_Invalid(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.Config
	}{
		{"zero_radius", newChassisConfig(0, 0.195, 64)},
		{"negative_spacing", newChassisConfig(0.05, -1, 64)},
		{"zero_ticks", newChassisConfig(0.05, 0.195, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewWheelCalculator(tc.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
