package transport

import (
	"fmt"
	"io"

	"github.com/cjeanneret/stagehand/internal/debug"
)

// Reader adapts a blocking io.Reader (serial port, stdin) into a
// Transport. A pump goroutine does the blocking reads; the command
// loop polls the buffered channel. The pump exits when the underlying
// reader fails or is closed by its owner.
type Reader struct {
	ch chan byte
}

// NewReader starts the pump. name labels the source in logs.
func NewReader(r io.Reader, name string) *Reader {
	t := &Reader{ch: make(chan byte, 256)}
	go t.pump(r, name)
	return t
}

func (t *Reader) pump(r io.Reader, name string) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			t.ch <- b
		}
		if err != nil {
			if err != io.EOF {
				debug.Error(fmt.Errorf("console source %s: %w", name, err))
			} else {
				debug.Verbose("console source %s closed", name)
			}
			return
		}
	}
}

func (t *Reader) Available() bool {
	return len(t.ch) > 0
}

func (t *Reader) ReadByte() byte {
	select {
	case b := <-t.ch:
		return b
	default:
		return 0
	}
}
