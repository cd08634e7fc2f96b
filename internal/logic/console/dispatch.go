package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/cjeanneret/stagehand/internal/debug"
	"github.com/cjeanneret/stagehand/internal/hw/stepper"
	"github.com/cjeanneret/stagehand/internal/logic/thermal"
	"github.com/cjeanneret/stagehand/internal/logic/track"
	"github.com/cjeanneret/stagehand/internal/transport"
)

// lineCapacity bounds one command line. Keeping a byte of headroom
// for the terminator caps commands at 31 characters; overflow is
// dropped, not an error, so a runaway sender cannot wedge the console.
const lineCapacity = 32

// Dispatcher assembles console bytes into lines and executes them.
// It is single-writer: the session task alone feeds it, so commands
// from every source serialize here.
type Dispatcher struct {
	drv    *stepper.Driver
	loop   *track.Loop
	hotend *thermal.Probe
	bed    *thermal.Probe
	axes   map[Axis]stepper.Axis
	out    io.Writer

	buf [lineCapacity]byte
	n   int
}

func NewDispatcher(drv *stepper.Driver, loop *track.Loop, hotend, bed *thermal.Probe, axes map[Axis]stepper.Axis, out io.Writer) *Dispatcher {
	return &Dispatcher{
		drv:    drv,
		loop:   loop,
		hotend: hotend,
		bed:    bed,
		axes:   axes,
		out:    out,
	}
}

// Feed consumes one console byte. CR or LF terminates the pending
// line; blank lines are ignored. Printable characters accumulate up
// to the line capacity, everything else is dropped.
func (d *Dispatcher) Feed(c byte) {
	if c == '\n' || c == '\r' {
		if d.n > 0 {
			line := string(d.buf[:d.n])
			d.n = 0
			d.Dispatch(line)
		}
		return
	}
	if c >= 32 && c <= 126 && d.n < lineCapacity-1 {
		d.buf[d.n] = c
		d.n++
	}
}

// Drain consumes every byte the source has pending.
func (d *Dispatcher) Drain(src transport.Transport) {
	for src.Available() {
		d.Feed(src.ReadByte())
	}
}

// Dispatch parses and executes one line, writing operator feedback to
// the console.
func (d *Dispatcher) Dispatch(line string) {
	switch cmd := Parse(line).(type) {
	case nil:
	case ReadHotend:
		if err := d.hotend.Report(d.out); err != nil {
			debug.Error(err)
		}
	case ReadBed:
		if err := d.bed.Report(d.out); err != nil {
			debug.Error(err)
		}
	case MoveAxis:
		d.move(cmd)
	case StepperPower:
		if cmd.On {
			d.enableSteppers()
		} else {
			d.disableSteppers()
		}
	case LoopPower:
		if cmd.On {
			if err := d.loop.Enable(); err != nil {
				debug.Error(err)
			}
			fmt.Fprintln(d.out, "Steppers ENABLED")
			fmt.Fprintf(d.out, "ADC Position Control ENABLED - ADC controls %s position\n",
				strings.ToUpper(d.loop.Axis().Name))
			half := d.loop.Range() / 2
			fmt.Fprintf(d.out, "Range: %d to +%d steps\n", -half, half)
		} else {
			d.loop.Disable()
			fmt.Fprintln(d.out, "ADC Position Control DISABLED")
		}
	case LoopZero:
		d.loop.Zero()
		fmt.Fprintln(d.out, "Current position reset to zero")
	case SetRange:
		switch {
		case !cmd.HasValue:
			fmt.Fprintf(d.out, "Current position range: ±%d\n", d.loop.Range()/2)
		case d.loop.SetRange(cmd.Value):
			fmt.Fprintf(d.out, "Position range set to ±%d\n", d.loop.Range()/2)
		}
	case Help:
		d.printHelp()
	case Unknown:
		fmt.Fprintf(d.out, "Unknown command: %s (type 'help' for commands)\n", cmd.Text)
	}
}

func (d *Dispatcher) move(cmd MoveAxis) {
	axis, ok := d.axes[cmd.Axis]
	if !ok {
		debug.Error(fmt.Errorf("no %c axis configured", cmd.Axis))
		return
	}
	steps := cmd.Steps
	if steps == 0 {
		steps = axis.DefaultSteps
	}
	direction := "backward"
	if cmd.Forward {
		direction = "forward"
	}
	fmt.Fprintf(d.out, "Moving %d steps %s\n", steps, direction)
	if err := d.drv.Step(axis, cmd.Forward, int(steps), stepper.JogTiming, nil); err != nil {
		debug.Error(err)
	}
	fmt.Fprintln(d.out, "Move complete")
}

func (d *Dispatcher) enableSteppers() {
	if err := d.drv.Enable(); err != nil {
		debug.Error(err)
	}
	fmt.Fprintln(d.out, "Steppers ENABLED")
}

func (d *Dispatcher) disableSteppers() {
	if err := d.drv.Disable(); err != nil {
		debug.Error(err)
	}
	fmt.Fprintln(d.out, "Steppers DISABLED - Manual movement allowed")
}

func (d *Dispatcher) printHelp() {
	for _, line := range []string{
		"Commands:",
		"h - Read hotend thermistor",
		"b - Read bed thermistor",
		"x+[steps] - Move X positive (e.g., x+50)",
		"x-[steps] - Move X negative",
		"y+[steps] - Move Y positive",
		"y-[steps] - Move Y negative",
		"z+[steps] - Move Z up (default 10)",
		"z-[steps] - Move Z down",
		"e+[steps] - Extrude (default 50)",
		"e-[steps] - Retract",
		"on - Enable steppers",
		"off - Disable steppers",
		"adc_on - Enable ADC position control",
		"adc_off - Disable ADC position control",
		"adc_zero - Reset current position to zero",
		"adc_range[value] - Set position range",
	} {
		fmt.Fprintln(d.out, line)
	}
}
