package web

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// StatusEvent represents a single status message for SSE.
type StatusEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// backlogSize is how many recent events a new subscriber is replayed,
// so a browser that connects mid-session still sees the banner and
// recent console traffic.
const backlogSize = 64

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
	backlog []string
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives the backlog followed by
// new broadcasts, and a cleanup function. The caller must call the
// returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 2*backlogSize)
	b.mu.Lock()
	for _, payload := range b.backlog {
		ch <- payload
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"console","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	evt := StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.backlog = append(b.backlog, payload)
	if len(b.backlog) > backlogSize {
		b.backlog = b.backlog[len(b.backlog)-backlogSize:]
	}
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastWriter wraps the broadcaster as an io.Writer so console
// and log output can be teed to SSE clients. Each non-blank line of a
// Write becomes one event.
func BroadcastWriter(b *StatusBroadcaster, level string) io.Writer {
	return &broadcastWriter{b: b, level: level}
}

type broadcastWriter struct {
	b     *StatusBroadcaster
	level string
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.Broadcast(w.level, msg)
		}
	}
	return len(p), nil
}
