// Package indicator drives the binary output that shows whether a
// client is being served.  On the reference board this is the activity
// LED exposed through sysfs.
package indicator

import "errors"

// ErrNotSetup is returned by Set before Setup succeeded or after Restore.
var ErrNotSetup = errors.New("indicator not set up")

// Indicator is a binary signal device.
type Indicator interface {
	// Setup takes ownership of the device and switches it to the idle
	// (off) state.  Called once at process start.
	Setup() error

	// Set turns the output on or off.
	Set(on bool) error

	// Restore hands the device back to its default behaviour.  Called
	// once at final shutdown; idempotent.
	Restore() error
}

// Nop is an Indicator for hosts without an LED.
type Nop struct{}

func (Nop) Setup() error   { return nil }
func (Nop) Set(bool) error { return nil }
func (Nop) Restore() error { return nil }
