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

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/cjeanneret/stagehand/internal/config"
	"github.com/cjeanneret/stagehand/internal/debug"
	"github.com/cjeanneret/stagehand/internal/hw/adc"
	"github.com/cjeanneret/stagehand/internal/hw/clock"
	"github.com/cjeanneret/stagehand/internal/hw/gpio"
	"github.com/cjeanneret/stagehand/internal/hw/stepper"
	"github.com/cjeanneret/stagehand/internal/logic/console"
	"github.com/cjeanneret/stagehand/internal/logic/session"
	"github.com/cjeanneret/stagehand/internal/logic/thermal"
	"github.com/cjeanneret/stagehand/internal/logic/track"
	"github.com/cjeanneret/stagehand/internal/transport"
	"github.com/cjeanneret/stagehand/internal/web"
)

// commandQueueSize bounds commands queued by the web console between
// session polls.
const commandQueueSize = 256

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web console on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	forceMock := flag.Bool("mock", false, "force mock hardware regardless of config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	mock := cfg.Defaults.MockHW || *forceMock

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock hardware", mock)

	// Initialize GPIO driver
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(mock)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize ADC
	debug.Step(2, "Initializing ADC")
	reader, err := newADCFromConfig(mock, cfg)
	if err != nil {
		log.Fatalf("init ADC failed: %v", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("closing ADC failed: %v", err)
		}
	}()
	debug.Value("Control channel", cfg.ADC.ControlChannel)
	debug.Value("Hotend channel", cfg.ADC.HotendChannel)
	debug.Value("Bed channel", cfg.ADC.BedChannel)

	refresh, keepaliveEvery := watchdogKeepalive()

	// Initialize stepper driver
	debug.Step(3, "Initializing stepper driver")
	axes, axisByLetter := buildAxes(cfg)
	for _, ax := range axes {
		debug.PrintStruct("Axis "+ax.Name, ax)
	}
	drv, err := stepper.NewDriver(gpioDriver, clock.Wall{}, cfg.EnablePin, axes, refresh)
	if err != nil {
		log.Fatalf("init steppers failed: %v", err)
	}

	// Wire console transports: serial port when configured, stdin otherwise.
	debug.Step(4, "Wiring console transports")
	var sources []transport.Transport
	out := io.Writer(os.Stdout)
	if cfg.Serial.Port != "" {
		port, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Fatalf("open serial console failed: %v", err)
		}
		defer func() {
			if err := port.Close(); err != nil {
				log.Printf("closing serial port failed: %v", err)
			}
		}()
		sources = append(sources, transport.NewReader(port, cfg.Serial.Port))
		out = port
	} else {
		sources = append(sources, transport.NewReader(os.Stdin, "stdin"))
	}

	// The web console mirrors debug and command output and feeds typed
	// commands into the same dispatcher as the serial console.
	var broadcaster *web.StatusBroadcaster
	var commands *transport.Pipe
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster, "log")))
		out = io.MultiWriter(out, web.BroadcastWriter(broadcaster, "console"))
		commands = transport.NewPipe(commandQueueSize)
		sources = append(sources, commands)
	}

	// Build the control loop, thermistor probes and command dispatcher.
	debug.Step(5, "Starting control loop and console")
	trackAxis := axisByLetter[console.Axis(cfg.Defaults.TrackAxis[0])]
	loop := track.NewLoop(drv, trackAxis, reader, cfg.ADC.ControlChannel, clock.Wall{}, out, cfg.Defaults.PositionRange)
	hotend := thermal.NewProbe(reader, cfg.ADC.HotendChannel, "Hotend")
	bed := thermal.NewProbe(reader, cfg.ADC.BedChannel, "Bed")
	disp := console.NewDispatcher(drv, loop, hotend, bed, axisByLetter, out)

	if broadcaster != nil {
		webAddr := fmt.Sprintf(":%d", webPort.port())
		srv := web.NewServer(webAddr, broadcaster, commands, func() web.State {
			s := loop.State()
			return web.State{
				Active:          s.Active,
				Current:         s.Current,
				Target:          s.Target,
				Range:           s.Range,
				SteppersEnabled: drv.Enabled(),
			}
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web console: %v", err)
			}
		}()
	}

	sess := session.New(loop, disp, sources, clock.Wall{}, out)
	if keepaliveEvery > 0 {
		sess.SetKeepalive(refresh, keepaliveEvery)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		debug.Error(fmt.Errorf("systemd ready notify failed: %w", err))
	}
	if err := sess.Run(ctx); err != nil {
		log.Fatalf("session failed: %v", err)
	}
	debug.Info("Shutdown complete")
}

// buildAxes converts the config axis table into the driver's ordered
// axis list plus a lookup keyed by command letter.
func buildAxes(cfg *config.Config) ([]stepper.Axis, map[console.Axis]stepper.Axis) {
	axes := make([]stepper.Axis, 0, len(config.AxisNames))
	byLetter := make(map[console.Axis]stepper.Axis, len(config.AxisNames))
	for _, name := range config.AxisNames {
		a := cfg.Axes[name]
		ax := stepper.Axis{
			Name:         name,
			StepPin:      a.StepPin,
			DirPin:       a.DirPin,
			DefaultSteps: a.DefaultSteps,
		}
		axes = append(axes, ax)
		byLetter[console.Axis(name[0])] = ax
	}
	return axes, byLetter
}

// newADCFromConfig selects an ADC implementation based on configuration.
func newADCFromConfig(mock bool, cfg *config.Config) (adc.Reader, error) {
	if mock {
		return adc.NewMock(), nil
	}
	return adc.NewADS1015(cfg.ADC.I2CBus, cfg.ADC.Address)
}

// watchdogKeepalive wires the systemd watchdog when the unit sets
// WatchdogSec. Outside systemd the returned func is a no-op and the
// interval is zero.
func watchdogKeepalive() (func(), time.Duration) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		debug.Error(fmt.Errorf("systemd watchdog detection failed: %w", err))
		return func() {}, 0
	}
	if interval == 0 {
		return func() {}, 0
	}
	debug.Value("Systemd watchdog interval", interval)
	return func() {
		if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
			debug.Error(fmt.Errorf("watchdog notify failed: %w", err))
		}
	}, interval / 2
}

// webPortFlag implements flag.Value for -web. Zero means disabled;
// an empty value selects the default port.
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
