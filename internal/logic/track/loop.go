package track

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cjeanneret/stagehand/internal/debug"
	"github.com/cjeanneret/stagehand/internal/hw/adc"
	"github.com/cjeanneret/stagehand/internal/hw/clock"
	"github.com/cjeanneret/stagehand/internal/hw/stepper"
	"github.com/cjeanneret/stagehand/internal/logic/filter"
)

const (
	// tickInterval spaces ADC-driven moves. Sampling keeps running
	// between moves; only movement is throttled.
	tickInterval = 10 * time.Millisecond
	// deadzone is the position error (in steps) tolerated without
	// moving, so knob noise does not keep the motor chattering.
	deadzone = 5
	// maxStepsPerTick caps the correction applied in one tick.
	maxStepsPerTick = 10
	// reportEvery throttles progress lines to one per 25 moves.
	reportEvery = 25
)

const (
	// DefaultRange is the span of the position range in steps
	// (±3200 = ±1 revolution at 16x microstepping).
	DefaultRange int32 = 6400
	// MaxRange bounds operator-set ranges.
	MaxRange int32 = 50000
)

// Snapshot is a point-in-time view of the loop for status reporting.
type Snapshot struct {
	Active  bool  `json:"active"`
	Current int32 `json:"current"`
	Target  int32 `json:"target"`
	Range   int32 `json:"range"`
}

// Loop tracks the reference knob with one axis. Tick is driven by the
// session task; accessors may be called from other goroutines.
type Loop struct {
	drv     *stepper.Driver
	axis    stepper.Axis
	adc     adc.Reader
	channel int
	clock   clock.Clock
	out     io.Writer

	mu       sync.Mutex
	window   filter.Window
	active   bool
	current  int32
	target   int32
	rng      int32
	lastMove time.Time
	updates  int
}

// NewLoop wires the tracked axis to its reference channel. rng
// outside (0, MaxRange] falls back to DefaultRange.
func NewLoop(drv *stepper.Driver, axis stepper.Axis, reader adc.Reader, channel int, clk clock.Clock, out io.Writer, rng int32) *Loop {
	if rng <= 0 || rng > MaxRange {
		rng = DefaultRange
	}
	return &Loop{
		drv:     drv,
		axis:    axis,
		adc:     reader,
		channel: channel,
		clock:   clk,
		out:     out,
		rng:     rng,
	}
}

// Tick runs one control cycle: sample, filter, compare, correct.
// Errors are logged, not returned; a failed ADC read skips the cycle
// and the next one retries.
func (l *Loop) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}
	now := l.clock.Now()
	if now.Sub(l.lastMove) < tickInterval {
		return
	}

	raw, err := l.adc.Read(l.channel)
	if err != nil {
		debug.Error(fmt.Errorf("position reference read failed: %w", err))
		return
	}
	l.window.Push(raw)
	median := l.window.Median()

	l.target = MapPosition(median, adc.Max, l.rng)
	posErr := l.target - l.current

	absErr := posErr
	if absErr < 0 {
		absErr = -posErr
	}
	if absErr <= deadzone {
		return
	}

	forward := posErr > 0
	steps := min(absErr, maxStepsPerTick)
	err = l.drv.Step(l.axis, forward, int(steps), stepper.TrackTiming, func() {
		if forward {
			l.current++
		} else {
			l.current--
		}
	})
	if err != nil {
		debug.Error(fmt.Errorf("tracking move failed: %w", err))
	}
	l.lastMove = now

	l.updates++
	if l.updates >= reportEvery {
		l.updates = 0
		fmt.Fprintf(l.out, "ADC Position Control - Raw: %d, Median: %d, Target: %d, Current: %d, Error: %d\n",
			raw, median, l.target, l.current, posErr)
	}
}

// Enable arms the loop and energizes the steppers.
func (l *Loop) Enable() error {
	l.mu.Lock()
	l.active = true
	l.mu.Unlock()
	return l.drv.Enable()
}

// Disable stops ADC-driven movement. Steppers stay energized so the
// stage holds position.
func (l *Loop) Disable() {
	l.mu.Lock()
	l.active = false
	l.mu.Unlock()
}

// Zero declares the present physical position to be step zero.
func (l *Loop) Zero() {
	l.mu.Lock()
	l.current = 0
	l.mu.Unlock()
}

// SetRange replaces the position range. Values outside (0, MaxRange]
// are rejected.
func (l *Loop) SetRange(v int32) bool {
	if v <= 0 || v > MaxRange {
		return false
	}
	l.mu.Lock()
	l.rng = v
	l.mu.Unlock()
	return true
}

func (l *Loop) Range() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng
}

func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Loop) Current() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loop) Axis() stepper.Axis {
	return l.axis
}

// State snapshots the loop for the web console.
func (l *Loop) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Active:  l.active,
		Current: l.current,
		Target:  l.target,
		Range:   l.rng,
	}
}
