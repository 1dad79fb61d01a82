// Package sensor defines the frame source a session streams from: a
// depth sensor with a mandatory depth stream and optional infrared and
// color streams.
package sensor

import (
	"context"
	"errors"
)

var (
	ErrMandatoryModality = errors.New("mandatory modality unavailable")
	ErrUnavailable       = errors.New("modality not available")
	ErrNotAcquired       = errors.New("source not acquired")
	ErrAlreadyAcquired   = errors.New("source already acquired")
	ErrNoDevice          = errors.New("no device provides this stream")
)

// Source is the capability a session needs from the sensor subsystem.
// At most one acquisition is live at a time.
type Source interface {
	// Acquire initialises the sensor and opens each requested modality.
	// Depth must come up or an error wrapping ErrMandatoryModality is
	// returned; optional modalities that fail are left unavailable.
	Acquire(ctx context.Context, modalities []Modality) (Acquisition, error)

	// IsAvailable reports whether m was acquired in the current session.
	IsAvailable(m Modality) bool

	// WaitAndFetch blocks until the next frame of m is ready or ctx is
	// done.
	WaitAndFetch(ctx context.Context, m Modality) (Frame, error)

	// Release drops every acquired modality.  It is idempotent and safe
	// after a partial or failed Acquire.
	Release() error
}
