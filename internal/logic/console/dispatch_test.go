package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cjeanneret/stagehand/internal/hw/adc"
	"github.com/cjeanneret/stagehand/internal/hw/clock"
	"github.com/cjeanneret/stagehand/internal/hw/gpio"
	"github.com/cjeanneret/stagehand/internal/hw/stepper"
	"github.com/cjeanneret/stagehand/internal/logic/thermal"
	"github.com/cjeanneret/stagehand/internal/logic/track"
	"github.com/cjeanneret/stagehand/internal/transport"
)

const enablePin = 22

var (
	axisX = stepper.Axis{Name: "x", StepPin: 17, DirPin: 27, DefaultSteps: 100}
	axisY = stepper.Axis{Name: "y", StepPin: 23, DirPin: 24, DefaultSteps: 100}
	axisZ = stepper.Axis{Name: "z", StepPin: 5, DirPin: 6, DefaultSteps: 10}
	axisE = stepper.Axis{Name: "e", StepPin: 13, DirPin: 19, DefaultSteps: 50}
)

// recordingDriver counts HIGH writes per pin and remembers the last
// level written.
type recordingDriver struct {
	highs map[int]int
	last  map[int]gpio.Level
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{highs: make(map[int]int), last: make(map[int]gpio.Level)}
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error { return nil }

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if level == gpio.High {
		d.highs[pin]++
	}
	d.last[pin] = level
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) { return gpio.Low, nil }
func (d *recordingDriver) Close() error                        { return nil }

type fixture struct {
	disp *Dispatcher
	drv  *stepper.Driver
	loop *track.Loop
	rec  *recordingDriver
	src  *adc.Mock
	out  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := newRecordingDriver()
	clk := clock.NewFake()
	axes := []stepper.Axis{axisX, axisY, axisZ, axisE}
	drv, err := stepper.NewDriver(rec, clk, enablePin, axes, nil)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	src := adc.NewMock()
	out := &bytes.Buffer{}
	loop := track.NewLoop(drv, axisY, src, 0, clk, out, track.DefaultRange)
	disp := NewDispatcher(
		drv, loop,
		thermal.NewProbe(src, 1, "Hotend"),
		thermal.NewProbe(src, 2, "Bed"),
		map[Axis]stepper.Axis{AxisX: axisX, AxisY: axisY, AxisZ: axisZ, AxisE: axisE},
		out,
	)
	return &fixture{disp: disp, drv: drv, loop: loop, rec: rec, src: src, out: out}
}

func TestDispatch_Move(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("x+50")

	want := "Moving 50 steps forward\nMove complete\n"
	if got := f.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if got := f.rec.highs[axisX.StepPin]; got != 50 {
		t.Errorf("pulses = %d, want 50", got)
	}
	if got := f.rec.last[axisX.DirPin]; got != gpio.High {
		t.Errorf("dir = %v, want HIGH", got)
	}
	if !f.drv.Enabled() {
		t.Error("jog should leave steppers enabled")
	}
	// Jogs bypass the tracking loop's position estimate.
	if got := f.loop.Current(); got != 0 {
		t.Errorf("loop position = %d, want 0", got)
	}
}

func TestDispatch_MoveBackward(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("y-30")

	want := "Moving 30 steps backward\nMove complete\n"
	if got := f.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if got := f.rec.highs[axisY.StepPin]; got != 30 {
		t.Errorf("pulses = %d, want 30", got)
	}
	if got := f.rec.last[axisY.DirPin]; got != gpio.Low {
		t.Errorf("dir = %v, want LOW", got)
	}
}

func TestDispatch_MoveDefaults(t *testing.T) {
	cases := []struct {
		line    string
		stepPin int
		steps   int
	}{
		{"x+", axisX.StepPin, 100},
		{"y-", axisY.StepPin, 100},
		{"z+", axisZ.StepPin, 10},
		{"e-", axisE.StepPin, 50},
		{"x+0", axisX.StepPin, 100},
		{"x+10001", axisX.StepPin, 100},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			f := newFixture(t)
			f.disp.Dispatch(tc.line)
			if got := f.rec.highs[tc.stepPin]; got != tc.steps {
				t.Errorf("pulses = %d, want %d", got, tc.steps)
			}
		})
	}
}

func TestDispatch_StepperPower(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("on")
	if got := f.out.String(); got != "Steppers ENABLED\n" {
		t.Errorf("output = %q", got)
	}
	if got := f.rec.last[enablePin]; got != gpio.Low {
		t.Errorf("enable pin = %v, want LOW", got)
	}
	if !f.drv.Enabled() {
		t.Error("driver should report enabled")
	}

	f.out.Reset()
	f.disp.Dispatch("off")
	if got := f.out.String(); got != "Steppers DISABLED - Manual movement allowed\n" {
		t.Errorf("output = %q", got)
	}
	if got := f.rec.last[enablePin]; got != gpio.High {
		t.Errorf("enable pin = %v, want HIGH", got)
	}
	if f.drv.Enabled() {
		t.Error("driver should report disabled")
	}
}

func TestDispatch_LoopOn(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("adc_on")

	want := "Steppers ENABLED\n" +
		"ADC Position Control ENABLED - ADC controls Y position\n" +
		"Range: -3200 to +3200 steps\n"
	if got := f.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if !f.loop.Active() {
		t.Error("loop should be active")
	}
	if !f.drv.Enabled() {
		t.Error("steppers should be enabled")
	}
}

func TestDispatch_LoopOff(t *testing.T) {
	f := newFixture(t)
	f.disp.Dispatch("adc_on")
	f.out.Reset()

	f.disp.Dispatch("adc_off")

	if got := f.out.String(); got != "ADC Position Control DISABLED\n" {
		t.Errorf("output = %q", got)
	}
	if f.loop.Active() {
		t.Error("loop should be inactive")
	}
	// adc_off stops tracking but leaves the motors energized.
	if !f.drv.Enabled() {
		t.Error("steppers should stay enabled")
	}
}

func TestDispatch_LoopZero(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("adc_zero")

	if got := f.out.String(); got != "Current position reset to zero\n" {
		t.Errorf("output = %q", got)
	}
	if got := f.loop.Current(); got != 0 {
		t.Errorf("position = %d, want 0", got)
	}
}

func TestDispatch_Range(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("adc_range")
	if got := f.out.String(); got != "Current position range: ±3200\n" {
		t.Errorf("report output = %q", got)
	}

	f.out.Reset()
	f.disp.Dispatch("adc_range9000")
	if got := f.out.String(); got != "Position range set to ±4500\n" {
		t.Errorf("set output = %q", got)
	}
	if got := f.loop.Range(); got != 9000 {
		t.Errorf("Range = %d, want 9000", got)
	}

	f.out.Reset()
	f.disp.Dispatch("adc_range")
	if got := f.out.String(); got != "Current position range: ±4500\n" {
		t.Errorf("report output = %q", got)
	}
}

func TestDispatch_RangeInvalidIsSilent(t *testing.T) {
	for _, line := range []string{"adc_range0", "adc_range60000", "adc_rangefoo"} {
		t.Run(line, func(t *testing.T) {
			f := newFixture(t)
			f.disp.Dispatch(line)
			if got := f.out.String(); got != "" {
				t.Errorf("output = %q, want none", got)
			}
			if got := f.loop.Range(); got != track.DefaultRange {
				t.Errorf("Range = %d, want unchanged %d", got, track.DefaultRange)
			}
		})
	}
}

func TestDispatch_Thermistors(t *testing.T) {
	f := newFixture(t)
	f.src.Set(1, 4095) // hotend open
	f.src.Set(2, 0)    // bed shorted

	f.disp.Dispatch("h")
	if got := f.out.String(); got != "Hotend ADC Input - ADC: 4095, Voltage: 3.30V, Calculated R: OPEN\n" {
		t.Errorf("hotend output = %q", got)
	}

	f.out.Reset()
	f.disp.Dispatch("b")
	if got := f.out.String(); got != "Bed ADC Input - ADC: 0, Voltage: 0.00V, Calculated R: SHORT\n" {
		t.Errorf("bed output = %q", got)
	}
}

func TestDispatch_Unknown(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("wat")

	if got := f.out.String(); got != "Unknown command: wat (type 'help' for commands)\n" {
		t.Errorf("output = %q", got)
	}
}

func TestDispatch_Help(t *testing.T) {
	f := newFixture(t)

	f.disp.Dispatch("help")

	got := f.out.String()
	if !strings.HasPrefix(got, "Commands:\n") {
		t.Errorf("help should start with Commands:, got %q", got)
	}
	for _, want := range []string{
		"h - Read hotend thermistor",
		"x+[steps] - Move X positive (e.g., x+50)",
		"z+[steps] - Move Z up (default 10)",
		"e+[steps] - Extrude (default 50)",
		"adc_range[value] - Set position range",
	} {
		if !strings.Contains(got, want+"\n") {
			t.Errorf("help missing %q", want)
		}
	}
	if lines := strings.Count(got, "\n"); lines != 17 {
		t.Errorf("help has %d lines, want 17", lines)
	}
}

func TestFeed_AssemblesLines(t *testing.T) {
	f := newFixture(t)

	for _, c := range []byte("x+5\n") {
		f.disp.Feed(c)
	}

	if got := f.rec.highs[axisX.StepPin]; got != 5 {
		t.Errorf("pulses = %d, want 5", got)
	}
}

func TestFeed_CarriageReturnTerminates(t *testing.T) {
	f := newFixture(t)

	for _, c := range []byte("on\r") {
		f.disp.Feed(c)
	}

	if got := f.out.String(); got != "Steppers ENABLED\n" {
		t.Errorf("output = %q", got)
	}
}

func TestFeed_BlankLinesIgnored(t *testing.T) {
	f := newFixture(t)

	for _, c := range []byte("\n\r\n\r\r") {
		f.disp.Feed(c)
	}

	if got := f.out.String(); got != "" {
		t.Errorf("output = %q, want none", got)
	}
}

func TestFeed_DropsNonPrintable(t *testing.T) {
	f := newFixture(t)

	for _, c := range []byte{'o', 7, 'n', 0, '\n'} {
		f.disp.Feed(c)
	}

	if got := f.out.String(); got != "Steppers ENABLED\n" {
		t.Errorf("output = %q", got)
	}
}

func TestFeed_TruncatesOverlongLines(t *testing.T) {
	f := newFixture(t)

	// 40 printable bytes: the first 31 are kept, the rest dropped.
	for _, c := range []byte(strings.Repeat("a", 40) + "\n") {
		f.disp.Feed(c)
	}

	want := "Unknown command: " + strings.Repeat("a", 31) + " (type 'help' for commands)\n"
	if got := f.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	// The buffer is clean for the next line.
	f.out.Reset()
	for _, c := range []byte("on\n") {
		f.disp.Feed(c)
	}
	if got := f.out.String(); got != "Steppers ENABLED\n" {
		t.Errorf("output after overflow = %q", got)
	}
}

func TestDrain_ConsumesPendingBytes(t *testing.T) {
	f := newFixture(t)
	pipe := transport.NewPipe(64)
	if err := pipe.WriteLine("on"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := pipe.WriteLine("adc_zero"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	f.disp.Drain(pipe)

	want := "Steppers ENABLED\nCurrent position reset to zero\n"
	if got := f.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if pipe.Available() {
		t.Error("pipe should be fully drained")
	}
}
