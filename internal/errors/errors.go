// Package errors provides domain-specific error types for sensorstream.
//
// These types carry structured context (lifecycle stage, operation,
// address) that the supervisor uses to pick a process exit code and
// that gives better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotBound     = errors.New("socket is not bound")
	ErrNotListening = errors.New("socket is not listening")
	ErrAlreadyBound = errors.New("socket is already bound")
)

// ── Process exit codes ───────────────────────────────────────────────

// Exit codes reported by the process.  The negative values mirror the
// startup failure classes; the shell sees them modulo 256.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitSensor    = -1
	ExitSocket    = -2
	ExitConnect   = -3
	ExitIndicator = -4
)

// ── Startup stages ───────────────────────────────────────────────────

// Stage names the point in the session lifecycle where a startup
// failure happened.
type Stage string

const (
	StageSensor    Stage = "sensor"
	StageSocket    Stage = "socket"
	StageSockopt   Stage = "setsockopt"
	StageBind      Stage = "bind"
	StageListen    Stage = "listen"
	StageAccept    Stage = "accept"
	StageIndicator Stage = "indicator"
)

// ExitCode returns the process exit code for a failure at this stage.
func (s Stage) ExitCode() int {
	switch s {
	case StageSensor:
		return ExitSensor
	case StageSocket, StageSockopt, StageBind:
		return ExitSocket
	case StageListen, StageAccept:
		return ExitConnect
	case StageIndicator:
		return ExitIndicator
	default:
		return ExitFailure
	}
}

// ── Structured error types ───────────────────────────────────────────

// StartupError is a failure while bringing a session up: sensor
// acquisition, socket setup, accept, or indicator setup.
type StartupError struct {
	Stage Stage
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for the failed stage.
func (e *StartupError) ExitCode() int { return e.Stage.ExitCode() }

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op   string // operation: "socket", "setsockopt", "bind", "listen", "accept"
	Addr string // network address involved
	Err  error  // underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Startup creates a StartupError for the given stage.  A nil err
// yields nil.
func Startup(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StartupError{Stage: stage, Err: err}
}

// Wrap attaches the operation and address to a socket error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// StageOf returns the startup stage carried by err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StartupError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ExitCode maps err to a process exit code: 0 for nil, the stage code
// for startup failures, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if stage, ok := StageOf(err); ok {
		return stage.ExitCode()
	}
	return ExitFailure
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// Lets callers that import this package as sserr combine errors without
// also importing the standard library package.

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
