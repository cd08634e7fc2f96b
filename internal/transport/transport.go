// Package transport feeds console bytes to the command loop. Sources
// never block: the loop polls them between control ticks.
package transport

// Transport is a non-blocking byte source.
type Transport interface {
	// Available reports whether at least one byte can be read now.
	Available() bool
	// ReadByte returns the next byte, or 0 when none is pending.
	ReadByte() byte
}
