package adc

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/cjeanneret/stagehand/internal/debug"
)

// fullScale matches VRef: the converter is configured for a 3.3V
// input range so raw counts line up with the 12-bit scale.
const fullScale = 3300 * physic.MilliVolt

var channels = [4]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ADS1015 reads analog channels from a TI ADS1015 on the I2C bus.
// Channel pins are configured lazily on first read so unused inputs
// stay untouched.
type ADS1015 struct {
	mu   sync.Mutex
	bus  i2c.BusCloser
	dev  *ads1x15.Dev
	pins [4]ads1x15.PinADC
}

// NewADS1015 opens busName ("" selects the first available bus) and
// probes the converter at addr.
func NewADS1015(busName string, addr uint16) (*ADS1015, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus %q failed: %w", busName, err)
	}
	dev, err := ads1x15.NewADS1015(bus, &ads1x15.Opts{I2cAddress: addr})
	if err != nil {
		err = fmt.Errorf("probing ADS1015 at 0x%02x failed: %w", addr, err)
		return nil, multierr.Append(err, bus.Close())
	}
	debug.Info("ADC ready: ADS1015 at 0x%02x on bus %q", addr, busName)
	return &ADS1015{bus: bus, dev: dev}, nil
}

func (a *ADS1015) pin(channel int) (ads1x15.PinADC, error) {
	if channel < 0 || channel >= len(channels) {
		return nil, fmt.Errorf("ADC channel %d out of range", channel)
	}
	if a.pins[channel] != nil {
		return a.pins[channel], nil
	}
	p, err := a.dev.PinForChannel(channels[channel], fullScale, 1600*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("configuring ADC channel %d failed: %w", channel, err)
	}
	a.pins[channel] = p
	return p, nil
}

// Read samples one channel and converts the voltage to a count in
// [0, Max].
func (a *ADS1015) Read(channel int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.pin(channel)
	if err != nil {
		return 0, err
	}
	sample, err := p.Read()
	if err != nil {
		return 0, fmt.Errorf("reading ADC channel %d failed: %w", channel, err)
	}
	counts := int64(sample.V) * Max / int64(fullScale)
	if counts < 0 {
		counts = 0
	} else if counts > Max {
		counts = Max
	}
	v := uint16(counts)
	debug.ADC(channel, v)
	return v, nil
}

func (a *ADS1015) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	for i, p := range a.pins {
		if p == nil {
			continue
		}
		err = multierr.Append(err, p.Halt())
		a.pins[i] = nil
	}
	return multierr.Append(err, a.bus.Close())
}
