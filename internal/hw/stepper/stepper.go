// Package stepper drives the stage's A4988 stepper drivers: one
// STEP/DIR pair per axis and a shared active-LOW enable line.
package stepper

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/stagehand/internal/debug"
	"github.com/cjeanneret/stagehand/internal/hw/clock"
	"github.com/cjeanneret/stagehand/internal/hw/gpio"
)

// Axis is one motor of the stage.
type Axis struct {
	Name         string
	StepPin      int
	DirPin       int
	DefaultSteps uint16 // steps moved when a jog command omits the count
}

// Timing shapes a step pulse train. RefreshEvery throttles the
// liveness refresh inside long pulse loops.
type Timing struct {
	HighUs       uint32
	LowUs        uint32
	RefreshEvery uint16
}

var (
	// JogTiming paces operator jog moves: slow enough to be gentle
	// on an unloaded rig.
	JogTiming = Timing{HighUs: 500, LowUs: 1500, RefreshEvery: 10}
	// TrackTiming paces tracking-loop corrections.
	TrackTiming = Timing{HighUs: 500, LowUs: 500, RefreshEvery: 5}
)

// dirSettle is the A4988 direction setup time before the first pulse.
const dirSettle = 10 * time.Microsecond

// Driver pulses the stage motors. All axes share one enable line, so
// enabling for any move energizes every motor.
type Driver struct {
	gpio      gpio.Driver
	clock     clock.Clock
	refresh   func() // liveness refresh, nil when not supervised
	enablePin int

	mu      sync.Mutex
	enabled bool
}

// NewDriver configures the axis pins and the shared enable line.
// Motors start disabled: the stage can be positioned by hand until a
// move or an explicit enable energizes them.
func NewDriver(g gpio.Driver, clk clock.Clock, enablePin int, axes []Axis, refresh func()) (*Driver, error) {
	for _, a := range axes {
		if err := g.SetupPin(a.StepPin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setting up %s step pin %d failed: %w", a.Name, a.StepPin, err)
		}
		if err := g.SetupPin(a.DirPin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setting up %s dir pin %d failed: %w", a.Name, a.DirPin, err)
		}
	}
	if err := g.SetupPin(enablePin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setting up enable pin %d failed: %w", enablePin, err)
	}
	if err := g.WritePin(enablePin, gpio.High); err != nil {
		return nil, fmt.Errorf("disabling steppers failed: %w", err)
	}
	debug.Info("Steppers ready: %d axes, enable pin %d (active LOW), starting disabled", len(axes), enablePin)
	return &Driver{gpio: g, clock: clk, refresh: refresh, enablePin: enablePin}, nil
}

// Enable energizes the motor drivers (enable LOW). Motors hold
// position while enabled.
func (d *Driver) Enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gpio.WritePin(d.enablePin, gpio.Low); err != nil {
		return fmt.Errorf("enabling steppers failed: %w", err)
	}
	d.enabled = true
	return nil
}

// Disable de-energizes the drivers (enable HIGH). Motors freewheel
// and the stage can be moved by hand.
func (d *Driver) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gpio.WritePin(d.enablePin, gpio.High); err != nil {
		return fmt.Errorf("disabling steppers failed: %w", err)
	}
	d.enabled = false
	return nil
}

func (d *Driver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Step enables the drivers, latches direction (HIGH = forward) and
// emits count pulses on the axis step pin. eachStep, when non-nil,
// runs after every pulse; the tracking loop uses it to advance its
// position estimate pulse by pulse.
func (d *Driver) Step(axis Axis, forward bool, count int, t Timing, eachStep func()) error {
	if err := d.Enable(); err != nil {
		return err
	}

	dir := gpio.Low
	if forward {
		dir = gpio.High
	}
	if err := d.gpio.WritePin(axis.DirPin, dir); err != nil {
		return fmt.Errorf("setting %s direction failed: %w", axis.Name, err)
	}
	d.clock.BusyWait(dirSettle)

	direction := "backward"
	if forward {
		direction = "forward"
	}
	debug.Move(axis.Name, count, direction)

	high := time.Duration(t.HighUs) * time.Microsecond
	low := time.Duration(t.LowUs) * time.Microsecond
	for i := 0; i < count; i++ {
		if err := d.gpio.WritePin(axis.StepPin, gpio.High); err != nil {
			return fmt.Errorf("pulsing %s failed: %w", axis.Name, err)
		}
		d.clock.BusyWait(high)
		if err := d.gpio.WritePin(axis.StepPin, gpio.Low); err != nil {
			return fmt.Errorf("pulsing %s failed: %w", axis.Name, err)
		}
		d.clock.BusyWait(low)

		if eachStep != nil {
			eachStep()
		}
		if d.refresh != nil && t.RefreshEvery > 0 && i%int(t.RefreshEvery) == 0 {
			d.refresh()
		}
	}
	return nil
}
