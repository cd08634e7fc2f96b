// Package console parses and executes the operator command language:
// single-letter diagnostics, axis jogs and the tracking-loop controls.
package console

import "strings"

// Axis is a motor's console letter.
type Axis byte

const (
	AxisX Axis = 'x'
	AxisY Axis = 'y'
	AxisZ Axis = 'z'
	AxisE Axis = 'e'
)

// Command is one parsed console line. Parse returns nil for an empty
// line and Unknown for anything it cannot read.
type Command interface{ isCommand() }

// ReadHotend reports the hotend thermistor channel.
type ReadHotend struct{}

// ReadBed reports the bed thermistor channel.
type ReadBed struct{}

// MoveAxis jogs one axis. Steps of 0 means the axis default.
type MoveAxis struct {
	Axis    Axis
	Forward bool
	Steps   uint16
}

// StepperPower energizes or releases the motor drivers.
type StepperPower struct{ On bool }

// LoopPower arms or disarms ADC position tracking.
type LoopPower struct{ On bool }

// LoopZero re-declares the current position as step zero.
type LoopZero struct{}

// SetRange reports the position range, or replaces it when the
// command carried a value. An unusable value parses to 0 and is
// rejected downstream.
type SetRange struct {
	Value    int32
	HasValue bool
}

// Help lists the command language.
type Help struct{}

// Unknown echoes an unrecognized line back to the operator.
type Unknown struct{ Text string }

func (ReadHotend) isCommand()   {}
func (ReadBed) isCommand()      {}
func (MoveAxis) isCommand()     {}
func (StepperPower) isCommand() {}
func (LoopPower) isCommand()    {}
func (LoopZero) isCommand()     {}
func (SetRange) isCommand()     {}
func (Help) isCommand()         {}
func (Unknown) isCommand()      {}

// Parse reads one console line. Lines arrive already stripped of
// their terminator.
func Parse(line string) Command {
	switch line {
	case "":
		return nil
	case "h":
		return ReadHotend{}
	case "b":
		return ReadBed{}
	case "on":
		return StepperPower{On: true}
	case "off":
		return StepperPower{On: false}
	case "adc_on":
		return LoopPower{On: true}
	case "adc_off":
		return LoopPower{On: false}
	case "adc_zero":
		return LoopZero{}
	case "help":
		return Help{}
	}

	if len(line) >= 2 && isAxisLetter(line[0]) && (line[1] == '+' || line[1] == '-') {
		return MoveAxis{
			Axis:    Axis(line[0]),
			Forward: line[1] == '+',
			Steps:   parseSteps(line[2:]),
		}
	}

	if rest, ok := strings.CutPrefix(line, "adc_range"); ok {
		if rest == "" {
			return SetRange{}
		}
		return SetRange{Value: parseRange(rest), HasValue: true}
	}

	return Unknown{Text: line}
}

func isAxisLetter(c byte) bool {
	return c == 'x' || c == 'y' || c == 'z' || c == 'e'
}

// digitCap keeps the accumulators clear of overflow while staying
// above every valid value, so absurdly long digit runs still classify
// as out of range.
const digitCap = 100000

// parseSteps reads the leading digit run. Values outside [1, 10000]
// return 0, meaning "use the axis default". Trailing non-digits are
// ignored.
func parseSteps(s string) uint16 {
	n := int64(0)
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n > digitCap {
			n = digitCap
		}
	}
	if n < 1 || n > 10000 {
		return 0
	}
	return uint16(n)
}

// parseRange reads the leading digit run; anything else parses to 0.
// Validation happens at the tracking loop.
func parseRange(s string) int32 {
	n := int64(0)
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n > digitCap {
			n = digitCap
		}
	}
	return int32(n)
}
