// Package clock provides the time base for step-pulse shaping and the
// control-loop sample throttle, behind an interface so timing-sensitive
// logic stays host-testable with a deterministic fake.
package clock

import "time"

// Clock supplies a monotonic reading and a busy-wait primitive.
type Clock interface {
	Now() time.Time
	// BusyWait blocks the calling goroutine for at least d. Implementations
	// spin rather than sleep: pulse widths sit in the hundreds of
	// microseconds, well under time.Sleep's practical resolution on a
	// non-realtime kernel.
	BusyWait(d time.Duration)
}

// Wall is the real clock.
type Wall struct{}

func (Wall) Now() time.Time { return time.Now() }

func (Wall) BusyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
