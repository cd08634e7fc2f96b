// Package filter smooths the position-reference ADC input. The knob
// wiper is noisy; a small median window rejects spikes without the
// lag of an average.
package filter

import "slices"

// windowSize is how many samples the median sees. Eight samples at
// the 10ms control cadence is 80ms of history.
const windowSize = 8

// Window is a fixed-size circular sample buffer with a median view.
// Until the first wrap, the median uses only the samples pushed so
// far.
type Window struct {
	samples [windowSize]uint16
	cursor  int
	full    bool
}

// Push records one sample, evicting the oldest once full.
func (w *Window) Push(v uint16) {
	w.samples[w.cursor] = v
	w.cursor = (w.cursor + 1) % windowSize
	if w.cursor == 0 {
		w.full = true
	}
}

// Count returns how many samples the median currently uses.
func (w *Window) Count() int {
	if w.full {
		return windowSize
	}
	return w.cursor
}

// Median returns the upper median of the recorded samples, or 0 when
// empty.
func (w *Window) Median() uint16 {
	n := w.Count()
	if n == 0 {
		return 0
	}
	var scratch [windowSize]uint16
	copy(scratch[:n], w.samples[:n])
	slices.Sort(scratch[:n])
	return scratch[n/2]
}

// Reset empties the window.
func (w *Window) Reset() {
	w.cursor = 0
	w.full = false
}
