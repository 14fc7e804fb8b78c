package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/cjeanneret/geekdrive/internal/config"
	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/hw/encoder"
	"github.com/cjeanneret/geekdrive/internal/hw/gpio"
	"github.com/cjeanneret/geekdrive/internal/hw/rangesensor"
	"github.com/cjeanneret/geekdrive/internal/hw/servo"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
	"github.com/cjeanneret/geekdrive/internal/logic/motion"
	"github.com/cjeanneret/geekdrive/internal/logic/route"
	"github.com/cjeanneret/geekdrive/internal/sim"
	"github.com/cjeanneret/geekdrive/internal/web"
)

// exampleRoute is shown on the control page.
const exampleRoute = "forward 0.5; left 90; wall-left-until 20 30; reverse 0.1"

// simPace spaces control ticks on the simulated robot, which would
// otherwise spin the CPU.
const simPace = 5 * time.Millisecond

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	routeSrc := flag.String("route", "", "route to drive once, e.g. \"forward 0.5; left 90\"")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	var rt *route.Route
	if webPort.port() == 0 {
		if rt, err = parseRouteFlag(*routeSrc); err != nil {
			log.Fatalf("invalid -route: %v", err)
		}
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

	bot, err := newRobot(cfg)
	if err != nil {
		log.Fatalf("init robot failed: %v", err)
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Printf("closing robot failed: %v", err)
		}
	}()

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		bot.driver.OnWindow(broadcaster.BroadcastTelemetry)

		srv, err := web.NewServer(webAddr, broadcaster, bot.RunRoute, defaultsFromConfig(cfg, bot.driver.Controller().Params()))
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if err := bot.RunRoute(ctx, rt); err != nil {
		log.Fatalf("route failed: %v", err)
	}
}

// robot bundles the hardware and the motion driver built from a config.
type robot struct {
	gpio   gpio.Driver
	wheels *servo.Pair
	driver *motion.Driver
}

// newRobot wires the wheel servos, encoders and range sensor to a motion
// driver. In mock mode the hardware is the simulated robot.
func newRobot(cfg *config.Config) (*robot, error) {
	debug.Step(1, "Initializing GPIO driver")
	var (
		g    gpio.Driver
		pace time.Duration
		err  error
	)
	if cfg.Defaults.MockGPIO {
		g = sim.New(cfg, nil)
		pace = simPace
	} else if g, err = gpio.NewDriver(false); err != nil {
		return nil, errors.Wrap(err, "init GPIO")
	}

	fail := func(err error) (*robot, error) {
		return nil, multierr.Append(err, g.Close())
	}

	debug.Step(2, "Initializing wheel servos")
	debug.PrintStruct("Servo config", cfg.Servos)
	wheels, err := servo.NewPair(g,
		servo.Config{Pin: cfg.Servos.LeftPin, StopUs: cfg.Servos.StopUs, MinUs: cfg.Servos.MinUs, MaxUs: cfg.Servos.MaxUs},
		servo.Config{Pin: cfg.Servos.RightPin, StopUs: cfg.Servos.StopUs, MinUs: cfg.Servos.MinUs, MaxUs: cfg.Servos.MaxUs},
	)
	if err != nil {
		return fail(errors.Wrap(err, "init wheels"))
	}

	debug.Step(3, "Initializing range sensor")
	debug.PrintStruct("Range sensor config", cfg.RangeSensor)
	rc := cfg.RangeSensor
	ir, err := rangesensor.NewPanningIR(g, rangesensor.Config{
		Channel: rc.Channel,
		HeadPin: rc.HeadPin,
		Pulses:  [3]int{rc.ForwardUs, rc.LeftUs, rc.RightUs},
		Settle:  cfg.Settle(),
		Samples: rc.Samples,
		ScaleCm: rc.ScaleCm,
		MaxCm:   rc.MaxCm,
	}, nil)
	if err != nil {
		return fail(errors.Wrap(err, "init range sensor"))
	}

	debug.Step(4, "Creating drive controller")
	params, err := drive.ParamsFromConfig(cfg)
	if err != nil {
		return fail(err)
	}
	debug.Value("Meters per tick", params.MetersPerTick)
	debug.Value("Degrees per tick", params.DegreesPerTick)
	debug.Value("Window", params.Window)

	enc := encoder.NewReflective(g, cfg.Encoders.LeftChannel, cfg.Encoders.RightChannel)
	ctrl := drive.NewController(params, enc, wheels, nil)
	d := motion.NewDriver(ctrl, ir, motion.Options{
		WallGain: cfg.Control.WallFollowGainUs,
		Pace:     pace,
	})
	return &robot{gpio: g, wheels: wheels, driver: d}, nil
}

// RunRoute drives rt and logs a summary of each step.
func (b *robot) RunRoute(ctx context.Context, rt *route.Route) error {
	_, err := rt.Run(ctx, b.driver, func(i int, res route.StepResult) {
		if res.Result.Warnings != nil {
			debug.Warn(errors.Wrapf(res.Result.Warnings, "step %d (%s)", i+1, res.Step))
		}
	})
	return err
}

// Close stops the robot, waiting for a running primitive to end, then
// releases the GPIO driver.
func (b *robot) Close() error {
	dist, err := b.driver.Stop()
	debug.Verbose("closing after %.3fm", dist)
	return multierr.Append(err, b.gpio.Close())
}

// parseRouteFlag parses the -route flag, which is required without -web.
func parseRouteFlag(src string) (*route.Route, error) {
	if src == "" {
		return nil, errors.New("nothing to do: pass -route or -web")
	}
	return route.Parse(src)
}

// defaultsFromConfig describes the robot for the control page.
func defaultsFromConfig(cfg *config.Config, p drive.Params) web.Defaults {
	return web.Defaults{
		WheelRadiusM:     cfg.Chassis.WheelRadiusM,
		WheelSpacingM:    cfg.Chassis.WheelSpacingM,
		TicksPerRev:      p.TicksPerRev,
		MetersPerTick:    p.MetersPerTick,
		DegreesPerTick:   p.DegreesPerTick,
		WindowMs:         int(p.Window / time.Millisecond),
		WallFollowGainUs: cfg.Control.WallFollowGainUs,
		ExampleRoute:     exampleRoute,
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
