// Package adc abstracts the analog inputs: one position-reference
// channel and two thermistor channels, all read as 12-bit counts.
package adc

import (
	"sync"

	"github.com/cjeanneret/stagehand/internal/debug"
)

const (
	// Max is the full-scale reading (12-bit converter).
	Max = 4095
	// VRef is the full-scale voltage; the thermistor dividers are
	// pulled up to the same 3.3V rail.
	VRef = 3.3
)

// Reader reads one analog channel as a count in [0, Max].
type Reader interface {
	Read(channel int) (uint16, error)
	Close() error
}

// Midscale is what an unset Mock channel reads: a centered reference
// input, so the tracking loop idles at target 0 in development mode.
const Midscale = (Max + 1) / 2

// Mock is a settable in-memory Reader for development and tests.
type Mock struct {
	mu     sync.Mutex
	values map[int]uint16
}

func NewMock() *Mock {
	return &Mock{values: make(map[int]uint16)}
}

// Set fixes the value returned for a channel. Values above Max are
// clamped.
func (m *Mock) Set(channel int, value uint16) {
	if value > Max {
		value = Max
	}
	m.mu.Lock()
	m.values[channel] = value
	m.mu.Unlock()
}

func (m *Mock) Read(channel int) (uint16, error) {
	m.mu.Lock()
	v, ok := m.values[channel]
	m.mu.Unlock()
	if !ok {
		v = Midscale
	}
	debug.ADC(channel, v)
	return v, nil
}

func (m *Mock) Close() error {
	debug.Trace("ADC Close (mock)")
	return nil
}
