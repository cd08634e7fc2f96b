// Package session runs the operator console: one task alternating
// between control ticks and command polling. Keeping a single writer
// for motors and console state means no command can race a tracking
// move.
package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/stagehand/internal/debug"
	"github.com/cjeanneret/stagehand/internal/hw/clock"
	"github.com/cjeanneret/stagehand/internal/logic/console"
	"github.com/cjeanneret/stagehand/internal/logic/track"
	"github.com/cjeanneret/stagehand/internal/transport"
)

// pollInterval is the cadence of the session task. The tracking loop
// applies its own movement throttle on top.
const pollInterval = time.Millisecond

// Session owns the console lifecycle: banner, then tick/poll until
// the context ends.
type Session struct {
	loop    *track.Loop
	disp    *console.Dispatcher
	sources []transport.Transport
	clock   clock.Clock
	out     io.Writer

	keepalive      func()
	keepaliveEvery time.Duration
	lastKeepalive  time.Time
}

func New(loop *track.Loop, disp *console.Dispatcher, sources []transport.Transport, clk clock.Clock, out io.Writer) *Session {
	return &Session{
		loop:    loop,
		disp:    disp,
		sources: sources,
		clock:   clk,
		out:     out,
	}
}

// SetKeepalive registers a liveness callback invoked at most once per
// interval from the session task, covering the stretches when the rig
// is idle and no pulse loop is feeding the supervisor.
func (s *Session) SetKeepalive(fn func(), every time.Duration) {
	s.keepalive = fn
	s.keepaliveEvery = every
}

// Banner prints the greeting the operator sees on connect.
func (s *Session) Banner() {
	for _, line := range []string{
		"Steppers DISABLED - Manual movement allowed",
		"Manual Control Initialized",
		"Commands: h, b, x+[steps], y+[steps], z+[steps], e+[steps], on, off",
		"ADC Control: adc_on, adc_off, adc_zero, adc_range[value]",
		"Examples: x+200, y-50, z+5, e+100 (type 'help' for full list)",
	} {
		fmt.Fprintln(s.out, line)
	}
}

// Step runs one cycle: a control tick first, then every pending
// console byte. Commands therefore always see the freshest position.
func (s *Session) Step() {
	s.loop.Tick()
	for _, src := range s.sources {
		s.disp.Drain(src)
	}
	if s.keepalive != nil {
		now := s.clock.Now()
		if now.Sub(s.lastKeepalive) >= s.keepaliveEvery {
			s.keepalive()
			s.lastKeepalive = now
		}
	}
}

// Run prints the banner and cycles until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.Banner()
	debug.Info("Console session started (%d sources)", len(s.sources))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			debug.Info("Console session stopped")
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}
