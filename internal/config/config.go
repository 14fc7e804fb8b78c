package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ChassisConfig describes the wheel geometry used for dead-reckoning.
type ChassisConfig struct {
	WheelRadiusM  float64 `yaml:"wheel_radius_m"`  // e.g., 0.05 (50 mm)
	WheelSpacingM float64 `yaml:"wheel_spacing_m"` // distance between wheel contact points, e.g., 0.195
	TicksPerRev   int     `yaml:"ticks_per_rev"`   // encoder edges per wheel revolution (2 per stripe pair)
}

// EncoderConfig describes the two reflective wheel encoders.
type EncoderConfig struct {
	LeftChannel  int `yaml:"left_channel"`  // ADC channel of the left wheel sensor
	RightChannel int `yaml:"right_channel"` // ADC channel of the right wheel sensor
	Threshold    int `yaml:"threshold"`     // ADC value separating dark and light stripes
}

// ServoConfig describes the continuous-rotation wheel servos.
// All widths are pulse high times in microseconds.
type ServoConfig struct {
	LeftPin  int `yaml:"left_pin"`   // BCM pin with hardware PWM
	RightPin int `yaml:"right_pin"`  // BCM pin with hardware PWM
	StopUs   int `yaml:"stop_us"`    // neutral pulse, wheel stopped
	CWMinUs  int `yaml:"cw_min_us"`  // slowest clockwise speed
	CCWMinUs int `yaml:"ccw_min_us"` // slowest counter-clockwise speed
	MinUs    int `yaml:"min_us"`     // lowest pulse ever written (full clockwise)
	MaxUs    int `yaml:"max_us"`     // highest pulse ever written (full counter-clockwise)
}

// RangeSensorConfig describes the IR range sensor mounted on a panning head servo.
type RangeSensorConfig struct {
	Channel   int `yaml:"channel"`    // ADC channel of the IR sensor
	HeadPin   int `yaml:"head_pin"`   // BCM pin of the head servo
	ForwardUs int `yaml:"forward_us"` // head pulse looking forward
	LeftUs    int `yaml:"left_us"`    // head pulse looking left
	RightUs   int `yaml:"right_us"`   // head pulse looking right
	SettleMs  int `yaml:"settle_ms"`  // wait after aiming before readings are trusted
	Samples   int `yaml:"samples"`    // readings averaged per range sample
	ScaleCm   int `yaml:"scale_cm"`   // range_cm = scale_cm / raw (inverse IR response)
	MaxCm     int `yaml:"max_cm"`     // reported when nothing is in sight
}

// ControlConfig holds the fixed gains of the drive loop.
// They are read once at start-up and never changed while driving.
type ControlConfig struct {
	WindowMs           int `yaml:"window_ms"`            // sampling window for speed/compensation/odometry
	CompensationGainUs int `yaml:"compensation_gain_us"` // differential correction per window
	WallFollowGainUs   int `yaml:"wall_follow_gain_us"`  // relay steering bias
	StallWindows       int `yaml:"stall_windows"`        // windows without ticks before a stall warning
}

// SimConfig describes the world of the simulated robot used in mock mode.
// Distances are measured from the start pose; 0 disables the feature.
type SimConfig struct {
	MinWheelRPS float64 `yaml:"min_wheel_rps"` // wheel speed at servos.ccw_min_us / cw_min_us
	MaxWheelRPS float64 `yaml:"max_wheel_rps"` // wheel speed at servos.max_us / min_us
	LeftWallM   float64 `yaml:"left_wall_m"`   // wall parallel to the start heading, on the left
	RightWallM  float64 `yaml:"right_wall_m"`  // wall parallel to the start heading, on the right
	WallEndM    float64 `yaml:"wall_end_m"`    // side walls stop at this distance ahead
	ObstacleM   float64 `yaml:"obstacle_m"`    // wall across the path ahead
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use simulated robot (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Chassis     ChassisConfig     `yaml:"chassis"`
	Encoders    EncoderConfig     `yaml:"encoders"`
	Servos      ServoConfig       `yaml:"servos"`
	RangeSensor RangeSensorConfig `yaml:"range_sensor"`
	Control     ControlConfig     `yaml:"control"`
	Sim         SimConfig         `yaml:"sim"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// Default returns the configuration of the reference robot
// (50 mm wheels, 195 mm track, 64 ticks per revolution).
func Default() *Config {
	return &Config{
		Chassis: ChassisConfig{
			WheelRadiusM:  0.05,
			WheelSpacingM: 0.195,
			TicksPerRev:   64,
		},
		Encoders: EncoderConfig{
			LeftChannel:  0,
			RightChannel: 1,
			Threshold:    512,
		},
		Servos: ServoConfig{
			LeftPin:  12,
			RightPin: 13,
			StopUs:   1500,
			CWMinUs:  1380,
			CCWMinUs: 1600,
			MinUs:    1300,
			MaxUs:    1700,
		},
		RangeSensor: RangeSensorConfig{
			Channel:   2,
			HeadPin:   18,
			ForwardUs: 1500,
			LeftUs:    2300,
			RightUs:   700,
			SettleMs:  200,
			Samples:   3,
			ScaleCm:   6000,
			MaxCm:     150,
		},
		Control: ControlConfig{
			WindowMs:           100,
			CompensationGainUs: 3,
			WallFollowGainUs:   30,
			StallWindows:       5,
		},
		Sim: SimConfig{
			MinWheelRPS: 0.5,
			MaxWheelRPS: 1.0,
			LeftWallM:   0.25,
			WallEndM:    1.5,
			ObstacleM:   3.0,
		},
		Defaults: DefaultsConfig{
			DebugLevel: 1,
			MockGPIO:   true,
		},
	}
}

// ValidateConfigPath checks that path names a .yaml file directly inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return errors.Errorf("config file must have .yaml extension: %q", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return errors.Wrap(err, "resolve config path")
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return errors.Errorf("config file must be inside a configs/ directory: %q", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
// Missing values fall back to Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and the ordering of the servo calibration.
func (c *Config) Validate() error {
	if c.Chassis.WheelRadiusM <= 0 {
		return errors.Errorf("chassis.wheel_radius_m must be > 0, got %g", c.Chassis.WheelRadiusM)
	}
	if c.Chassis.WheelSpacingM <= 0 {
		return errors.Errorf("chassis.wheel_spacing_m must be > 0, got %g", c.Chassis.WheelSpacingM)
	}
	if c.Chassis.TicksPerRev <= 0 {
		return errors.Errorf("chassis.ticks_per_rev must be > 0, got %d", c.Chassis.TicksPerRev)
	}

	if c.Encoders.Threshold <= 0 || c.Encoders.Threshold >= 1023 {
		return errors.Errorf("encoders.threshold must be between 1 and 1022, got %d", c.Encoders.Threshold)
	}
	if c.Encoders.LeftChannel == c.Encoders.RightChannel {
		return errors.Errorf("encoders.left_channel and right_channel must differ, both %d", c.Encoders.LeftChannel)
	}
	for _, ch := range []int{c.Encoders.LeftChannel, c.Encoders.RightChannel, c.RangeSensor.Channel} {
		if ch < 0 || ch > 7 {
			return errors.Errorf("ADC channel must be between 0 and 7, got %d", ch)
		}
	}

	s := c.Servos
	if !(s.MinUs < s.CWMinUs && s.CWMinUs < s.StopUs && s.StopUs < s.CCWMinUs && s.CCWMinUs < s.MaxUs) {
		return errors.Errorf("servos must satisfy min_us < cw_min_us < stop_us < ccw_min_us < max_us, got %d < %d < %d < %d < %d",
			s.MinUs, s.CWMinUs, s.StopUs, s.CCWMinUs, s.MaxUs)
	}

	if c.Control.WindowMs <= 0 {
		c.Control.WindowMs = 100
	}
	if c.Control.CompensationGainUs < 0 {
		return errors.Errorf("control.compensation_gain_us must be >= 0, got %d", c.Control.CompensationGainUs)
	}
	if c.Control.WallFollowGainUs < 0 {
		return errors.Errorf("control.wall_follow_gain_us must be >= 0, got %d", c.Control.WallFollowGainUs)
	}
	// Relay steering slows one wheel by the gain; it must never cross the stop pulse.
	if g := c.Control.WallFollowGainUs; g >= s.CCWMinUs-s.StopUs || g >= s.StopUs-s.CWMinUs {
		return errors.Errorf("control.wall_follow_gain_us must be below ccw_min_us - stop_us (%d) and stop_us - cw_min_us (%d), got %d",
			s.CCWMinUs-s.StopUs, s.StopUs-s.CWMinUs, g)
	}
	if c.Control.StallWindows < 0 {
		return errors.Errorf("control.stall_windows must be >= 0, got %d", c.Control.StallWindows)
	}

	if c.RangeSensor.Samples <= 0 {
		c.RangeSensor.Samples = 1
	}
	if c.RangeSensor.SettleMs < 0 {
		c.RangeSensor.SettleMs = 0
	}
	if c.RangeSensor.ScaleCm <= 0 {
		return errors.Errorf("range_sensor.scale_cm must be > 0, got %d", c.RangeSensor.ScaleCm)
	}
	if c.RangeSensor.MaxCm <= 0 {
		return errors.Errorf("range_sensor.max_cm must be > 0, got %d", c.RangeSensor.MaxCm)
	}
	if c.Sim.MinWheelRPS <= 0 || c.Sim.MaxWheelRPS < c.Sim.MinWheelRPS {
		return errors.Errorf("sim wheel speeds must satisfy 0 < min_wheel_rps <= max_wheel_rps, got %g and %g",
			c.Sim.MinWheelRPS, c.Sim.MaxWheelRPS)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return errors.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// Window returns the sampling window duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Control.WindowMs) * time.Millisecond
}

// Settle returns the head servo settle delay.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.RangeSensor.SettleMs) * time.Millisecond
}
