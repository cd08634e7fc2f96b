package clock

import (
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. BusyWait advances Now by the
// requested duration and records it, so pulse-timing assertions need no
// real delays. The zero value starts at the zero time, which mirrors a
// cold boot: the control loop's first throttle comparison sees zero
// elapsed time.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	Waits []time.Duration
}

// NewFake returns a Fake positioned at the zero time.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) BusyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.Waits = append(f.Waits, d)
	f.mu.Unlock()
}

// Advance moves the fake clock forward without recording a wait.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
