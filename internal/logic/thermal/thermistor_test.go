package thermal

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cjeanneret/stagehand/internal/hw/adc"
)

func TestResistance(t *testing.T) {
	cases := []struct {
		name    string
		voltage float64
		want    float64
	}{
		{"full rail is open", 3.3, openResistance},
		{"above rail is open", 3.4, openResistance},
		{"grounded is short", 0, 0},
		{"negative is short", -0.1, 0},
		{"half rail equals pullup", 1.65, 4700},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resistance(tc.voltage)
			if math.Abs(got-tc.want) > 0.01 {
				t.Errorf("Resistance(%v) = %v, want %v", tc.voltage, got, tc.want)
			}
		})
	}
}

func TestProbe_Report(t *testing.T) {
	cases := []struct {
		name string
		raw  uint16
		want string
	}{
		{
			"open input",
			4095,
			"Hotend ADC Input - ADC: 4095, Voltage: 3.30V, Calculated R: OPEN\n",
		},
		{
			"shorted input",
			0,
			"Hotend ADC Input - ADC: 0, Voltage: 0.00V, Calculated R: SHORT\n",
		},
		{
			// 2048 counts = 1.65V = the pullup value, printed in kΩ.
			"midscale in kiloohms",
			2048,
			"Hotend ADC Input - ADC: 2048, Voltage: 1.65V, Calculated R: 4.70kΩ\n",
		},
		{
			// 200 counts = 0.16V across a mostly-shorted leg:
			// 0.1612 * 4700 / (3.3 - 0.1612) = 241.34.
			"low reading in ohms",
			200,
			"Hotend ADC Input - ADC: 200, Voltage: 0.16V, Calculated R: 241.34Ω\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := adc.NewMock()
			src.Set(1, tc.raw)
			p := NewProbe(src, 1, "Hotend")

			var out bytes.Buffer
			if err := p.Report(&out); err != nil {
				t.Fatalf("Report: %v", err)
			}
			if got := out.String(); got != tc.want {
				t.Errorf("Report wrote %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProbe_ReportLabel(t *testing.T) {
	src := adc.NewMock()
	src.Set(2, 2048)
	p := NewProbe(src, 2, "Bed")

	var out bytes.Buffer
	if err := p.Report(&out); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got := out.String(); !strings.HasPrefix(got, "Bed ADC Input - ") {
		t.Errorf("Report wrote %q, want Bed prefix", got)
	}
}

type failingReader struct{}

func (failingReader) Read(channel int) (uint16, error) { return 0, errors.New("bus stuck") }
func (failingReader) Close() error                     { return nil }

func TestProbe_ReportReadError(t *testing.T) {
	p := NewProbe(failingReader{}, 1, "Hotend")

	var out bytes.Buffer
	err := p.Report(&out)
	if err == nil {
		t.Fatal("Report should fail when the ADC read fails")
	}
	if out.Len() != 0 {
		t.Errorf("failed Report wrote %q, want nothing", out.String())
	}
}
