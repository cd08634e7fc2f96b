// Package thermal reads the diagnostic thermistor channels. It
// reports raw divider measurements, not temperatures: the point is
// checking wiring and sensor health, and resistance is what a
// multimeter would show.
package thermal

import (
	"fmt"
	"io"

	"github.com/cjeanneret/stagehand/internal/hw/adc"
)

// PullupOhms is the divider pullup to the 3.3V rail.
const PullupOhms = 4700.0

// openResistance stands in for infinity when the divider reads full
// rail, i.e. no thermistor connected.
const openResistance = 999999.0

// Resistance solves the divider for the thermistor leg. Full-rail
// voltage means the leg is open; zero means it is shorted to ground.
func Resistance(voltage float64) float64 {
	if voltage >= adc.VRef {
		return openResistance
	}
	if voltage <= 0 {
		return 0
	}
	return voltage * PullupOhms / (adc.VRef - voltage)
}

// Probe is one thermistor input.
type Probe struct {
	reader  adc.Reader
	channel int
	label   string
}

func NewProbe(reader adc.Reader, channel int, label string) *Probe {
	return &Probe{reader: reader, channel: channel, label: label}
}

// Report samples the probe and writes one diagnostic line: raw
// counts, divider voltage and the computed resistance, or OPEN/SHORT
// when the leg is missing or grounded.
func (p *Probe) Report(w io.Writer) error {
	raw, err := p.reader.Read(p.channel)
	if err != nil {
		return fmt.Errorf("reading %s thermistor failed: %w", p.label, err)
	}
	voltage := float64(raw) * adc.VRef / adc.Max
	r := Resistance(voltage)

	fmt.Fprintf(w, "%s ADC Input - ADC: %d, Voltage: %.2fV, Calculated R: ", p.label, raw, voltage)
	switch {
	case r >= openResistance:
		fmt.Fprintln(w, "OPEN")
	case r < 1:
		fmt.Fprintln(w, "SHORT")
	case r >= 1000:
		fmt.Fprintf(w, "%.2fkΩ\n", r/1000)
	default:
		fmt.Fprintf(w, "%.2fΩ\n", r)
	}
	return nil
}
