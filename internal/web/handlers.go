package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/stagehand/internal/transport"
)

// State mirrors the rig for the web console: tracking-loop status
// plus whether the motors are energized.
type State struct {
	Active          bool  `json:"active"`
	Current         int32 `json:"current"`
	Target          int32 `json:"target"`
	Range           int32 `json:"range"`
	SteppersEnabled bool  `json:"steppers_enabled"`
}

// StateFunc snapshots the rig. Called on every GET /state.
type StateFunc func() State

// CommandRequest is the POST /command payload.
type CommandRequest struct {
	Line string `json:"line"`
}

// maxCommandLen matches the console line buffer: longer input would
// only be truncated there, so reject it at the door instead.
const maxCommandLen = 31

// ValidateCommand checks a command line before it is queued: the
// console accepts at most 31 printable ASCII characters.
func ValidateCommand(line string) error {
	if line == "" {
		return errors.New("empty command")
	}
	if len(line) > maxCommandLen {
		return fmt.Errorf("command exceeds %d characters", maxCommandLen)
	}
	for i := 0; i < len(line); i++ {
		if line[i] < 32 || line[i] > 126 {
			return errors.New("command contains non-printable characters")
		}
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Commands    *transport.Pipe
	StateFn     StateFunc
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If commands is nil, POST /command returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, commands *transport.Pipe, stateFn StateFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Commands:    commands,
		StateFn:     stateFn,
		staticFS:    staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleCommand handles POST /command: it queues one console line for
// the session task. The web never touches the motors directly; its
// commands go through the same parser and the same single writer as
// serial input.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CommandRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateCommand(req.Line); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.Commands == nil {
		http.Error(w, "console not attached", http.StatusServiceUnavailable)
		return
	}
	if err := h.Commands.WriteLine(req.Line); err != nil {
		http.Error(w, "console busy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// HandleState handles GET /state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.StateFn == nil {
		http.Error(w, "state not available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.StateFn())
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
