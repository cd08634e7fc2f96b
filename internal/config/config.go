package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/stagehand/internal/logic/track"
)

// AxisConfig holds the pin assignment for one stage axis.
type AxisConfig struct {
	StepPin      int    `yaml:"step_pin"`
	DirPin       int    `yaml:"dir_pin"`
	DefaultSteps uint16 `yaml:"default_steps"` // jog size when a command omits the count
}

// ADCConfig describes the ADS1015 converter and its channel assignment.
type ADCConfig struct {
	I2CBus         string `yaml:"i2c_bus"` // "" = first available bus
	Address        uint16 `yaml:"address"` // I2C address, default 0x48
	ControlChannel int    `yaml:"control_channel"`
	HotendChannel  int    `yaml:"hotend_channel"`
	BedChannel     int    `yaml:"bed_channel"`
}

// SerialConfig selects the operator console port. An empty port means
// the console runs on stdin/stdout.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	TrackAxis     string `yaml:"track_axis"`     // axis driven by the reference knob
	PositionRange int32  `yaml:"position_range"` // tracked span in steps
	DebugLevel    int    `yaml:"debug_level"`    // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockHW        bool   `yaml:"mock_hw"`        // mock GPIO and ADC (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Axes      map[string]AxisConfig `yaml:"axes"`
	EnablePin int                   `yaml:"enable_pin"` // shared A4988 ENABLE pin (BCM). Active LOW.
	ADC       ADCConfig             `yaml:"adc"`
	Serial    SerialConfig          `yaml:"serial"`
	Defaults  DefaultsConfig        `yaml:"defaults"`
}

// AxisNames is the canonical axis order.
var AxisNames = []string{"x", "y", "z", "e"}

// jogDefaults are the per-axis jog sizes used when the config omits
// default_steps.
var jogDefaults = map[string]uint16{"x": 100, "y": 100, "z": 10, "e": 50}

const (
	defaultADCAddress = 0x48
	defaultBaud       = 115200
	maxJogSteps       = 10000
	adcChannels       = 4
)

// ValidateConfigPath rejects paths outside a configs/ directory or
// without a .yaml extension, so a typo'd -config flag fails loudly
// instead of loading something unexpected.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Axes: all four must be configured, nothing else.
	if len(cfg.Axes) == 0 {
		return nil, fmt.Errorf("axes are required")
	}
	for name := range cfg.Axes {
		if _, ok := jogDefaults[name]; !ok {
			return nil, fmt.Errorf("unknown axis %q (want x, y, z, e)", name)
		}
	}
	seen := map[int]string{}
	claimPin := func(pin int, label string) error {
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("%s and %s share pin %d", other, label, pin)
		}
		seen[pin] = label
		return nil
	}
	for _, name := range AxisNames {
		a, ok := cfg.Axes[name]
		if !ok {
			return nil, fmt.Errorf("axes.%s is required", name)
		}
		if a.StepPin <= 0 {
			return nil, fmt.Errorf("axes.%s.step_pin must be > 0", name)
		}
		if a.DirPin <= 0 {
			return nil, fmt.Errorf("axes.%s.dir_pin must be > 0", name)
		}
		if err := claimPin(a.StepPin, fmt.Sprintf("axes.%s.step_pin", name)); err != nil {
			return nil, err
		}
		if err := claimPin(a.DirPin, fmt.Sprintf("axes.%s.dir_pin", name)); err != nil {
			return nil, err
		}
		if a.DefaultSteps > maxJogSteps {
			return nil, fmt.Errorf("axes.%s.default_steps must be <= %d, got %d", name, maxJogSteps, a.DefaultSteps)
		}
		if a.DefaultSteps == 0 {
			a.DefaultSteps = jogDefaults[name]
			cfg.Axes[name] = a
		}
	}
	if cfg.EnablePin <= 0 {
		return nil, fmt.Errorf("enable_pin must be > 0")
	}
	if err := claimPin(cfg.EnablePin, "enable_pin"); err != nil {
		return nil, err
	}

	// ADC: channels address the four ADS1015 inputs. Sharing a channel
	// is allowed; the position knob and a thermistor may watch the
	// same input on a sparse bench setup.
	for _, ch := range []struct {
		name string
		n    int
	}{
		{"adc.control_channel", cfg.ADC.ControlChannel},
		{"adc.hotend_channel", cfg.ADC.HotendChannel},
		{"adc.bed_channel", cfg.ADC.BedChannel},
	} {
		if ch.n < 0 || ch.n >= adcChannels {
			return nil, fmt.Errorf("%s must be between 0 and %d, got %d", ch.name, adcChannels-1, ch.n)
		}
	}
	if cfg.ADC.Address == 0 {
		cfg.ADC.Address = defaultADCAddress
	}

	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = defaultBaud
	}

	if cfg.Defaults.TrackAxis == "" {
		cfg.Defaults.TrackAxis = "y"
	}
	if _, ok := cfg.Axes[cfg.Defaults.TrackAxis]; !ok {
		return nil, fmt.Errorf("defaults.track_axis %q is not a configured axis", cfg.Defaults.TrackAxis)
	}
	if cfg.Defaults.PositionRange < 0 || cfg.Defaults.PositionRange > track.MaxRange {
		return nil, fmt.Errorf("defaults.position_range must be between 1 and %d, got %d", track.MaxRange, cfg.Defaults.PositionRange)
	}
	if cfg.Defaults.PositionRange == 0 {
		cfg.Defaults.PositionRange = track.DefaultRange
	}

	return &cfg, nil
}
