package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/cjeanneret/stagehand/internal/debug"
)

// OpenSerial opens the operator console port. The returned
// ReadWriteCloser is both a command source (wrap it in NewReader) and
// the feedback sink.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s failed: %w", port, err)
	}
	debug.Info("Serial console on %s at %d baud", port, baud)
	return p, nil
}
