// Package metrics provides lightweight, lock-free counters for tracking
// what a sensorstream process has served.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics across sessions.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	sessionsTotal   atomic.Int64
	clientsAccepted atomic.Int64
	startupFailures atomic.Int64
	commandsTotal   atomic.Int64
	unknownCommands atomic.Int64
	framesSent      atomic.Int64
	fetchFailures   atomic.Int64
	invalidRequests atomic.Int64
	writeFailures   atomic.Int64
	bytesOut        atomic.Int64
	serving         atomic.Bool

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session lifecycle ────────────────────────────────────────────────

// SessionStarted counts a new acquire/serve/teardown cycle.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsTotal.Add(1)
}

// ClientAccepted records an accepted client and marks serving active.
func (c *Collector) ClientAccepted() {
	if c == nil {
		return
	}
	c.clientsAccepted.Add(1)
	c.serving.Store(true)
}

// ServingStopped clears the serving flag.
func (c *Collector) ServingStopped() {
	if c == nil {
		return
	}
	c.serving.Store(false)
}

// StartupFailed records a cycle that never reached serving.
func (c *Collector) StartupFailed(msg string) {
	if c == nil {
		return
	}
	c.startupFailures.Add(1)
	c.RecordError(msg)
}

// Sessions returns the number of cycles started.
func (c *Collector) Sessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ClientsAccepted returns the number of clients served.
func (c *Collector) ClientsAccepted() int64 {
	if c == nil {
		return 0
	}
	return c.clientsAccepted.Load()
}

// StartupFailures returns the number of failed cycle startups.
func (c *Collector) StartupFailures() int64 {
	if c == nil {
		return 0
	}
	return c.startupFailures.Load()
}

// Serving reports whether a client is currently being served.
func (c *Collector) Serving() bool {
	if c == nil {
		return false
	}
	return c.serving.Load()
}

// ── Commands ─────────────────────────────────────────────────────────

// CommandReceived counts one command read off the wire.
func (c *Collector) CommandReceived() {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
}

// UnknownCommand counts an unrecognised, ignored command.
func (c *Collector) UnknownCommand() {
	if c == nil {
		return
	}
	c.unknownCommands.Add(1)
}

// Commands returns the total number of commands received.
func (c *Collector) Commands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// UnknownCommands returns the number of ignored commands.
func (c *Collector) UnknownCommands() int64 {
	if c == nil {
		return 0
	}
	return c.unknownCommands.Load()
}

// ── Frames ───────────────────────────────────────────────────────────

// FrameSent records a frame payload of n bytes written to the client.
func (c *Collector) FrameSent(n int) {
	if c == nil {
		return
	}
	c.framesSent.Add(1)
	c.bytesOut.Add(int64(n))
}

// StatusSent records a status token of n bytes written to the client.
func (c *Collector) StatusSent(n int) {
	if c == nil {
		return
	}
	c.bytesOut.Add(int64(n))
}

// FetchFailed counts a frame wait that ended in an error.
func (c *Collector) FetchFailed() {
	if c == nil {
		return
	}
	c.fetchFailures.Add(1)
}

// InvalidRequest counts a request for an unavailable modality.
func (c *Collector) InvalidRequest() {
	if c == nil {
		return
	}
	c.invalidRequests.Add(1)
}

// WriteFailed counts an abandoned response write.
func (c *Collector) WriteFailed(msg string) {
	if c == nil {
		return
	}
	c.writeFailures.Add(1)
	c.RecordError(msg)
}

// FramesSent returns the number of frame payloads delivered.
func (c *Collector) FramesSent() int64 {
	if c == nil {
		return 0
	}
	return c.framesSent.Load()
}

// FetchFailures returns the number of failed frame waits.
func (c *Collector) FetchFailures() int64 {
	if c == nil {
		return 0
	}
	return c.fetchFailures.Load()
}

// InvalidRequests returns the number of INVALID replies.
func (c *Collector) InvalidRequests() int64 {
	if c == nil {
		return 0
	}
	return c.invalidRequests.Load()
}

// WriteFailures returns the number of abandoned response writes.
func (c *Collector) WriteFailures() int64 {
	if c == nil {
		return 0
	}
	return c.writeFailures.Load()
}

// TotalBytesOut returns total bytes written to clients.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError stores the most recent error message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	Serving          bool   `json:"serving"`
	SessionsTotal    int64  `json:"sessions_total"`
	ClientsAccepted  int64  `json:"clients_accepted"`
	StartupFailures  int64  `json:"startup_failures"`
	CommandsTotal    int64  `json:"commands_total"`
	UnknownCommands  int64  `json:"unknown_commands"`
	FramesSent       int64  `json:"frames_sent"`
	FetchFailures    int64  `json:"fetch_failures"`
	InvalidRequests  int64  `json:"invalid_requests"`
	WriteFailures    int64  `json:"write_failures"`
	BytesOut         int64  `json:"bytes_out"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		Serving:         c.serving.Load(),
		SessionsTotal:   c.sessionsTotal.Load(),
		ClientsAccepted: c.clientsAccepted.Load(),
		StartupFailures: c.startupFailures.Load(),
		CommandsTotal:   c.commandsTotal.Load(),
		UnknownCommands: c.unknownCommands.Load(),
		FramesSent:      c.framesSent.Load(),
		FetchFailures:   c.fetchFailures.Load(),
		InvalidRequests: c.invalidRequests.Load(),
		WriteFailures:   c.writeFailures.Load(),
		BytesOut:        c.bytesOut.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
