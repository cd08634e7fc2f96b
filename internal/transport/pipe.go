package transport

import (
	"errors"
	"sync"
)

// ErrFull is returned when a write would overflow the pipe.
var ErrFull = errors.New("console queue full")

// Pipe is an in-memory Transport. The web console writes command
// lines into it; the command loop drains them like any other source,
// so web input goes through the same parser and the same goroutine as
// serial input.
type Pipe struct {
	mu sync.Mutex
	ch chan byte
}

// NewPipe returns a Pipe buffering up to size bytes.
func NewPipe(size int) *Pipe {
	return &Pipe{ch: make(chan byte, size)}
}

func (p *Pipe) Available() bool {
	return len(p.ch) > 0
}

func (p *Pipe) ReadByte() byte {
	select {
	case b := <-p.ch:
		return b
	default:
		return 0
	}
}

// WriteLine queues s followed by a newline. The write is atomic: on
// ErrFull nothing is queued, so a partial command never reaches the
// parser.
func (p *Pipe) WriteLine(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(s)+1 > cap(p.ch)-len(p.ch) {
		return ErrFull
	}
	for i := 0; i < len(s); i++ {
		p.ch <- s[i]
	}
	p.ch <- '\n'
	return nil
}
