package indicator

import "sync"

// Recorder is an in-memory Indicator that remembers every transition.
type Recorder struct {
	// SetupErr, when non-nil, is returned by Setup.
	SetupErr error
	// SetErr, when non-nil, is returned by Set and the state is kept.
	SetErr error

	mu          sync.Mutex
	setup       bool
	restored    bool
	on          bool
	transitions []bool
}

// Setup implements Indicator.
func (r *Recorder) Setup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SetupErr != nil {
		return r.SetupErr
	}
	r.setup = true
	r.on = false
	return nil
}

// Set implements Indicator.
func (r *Recorder) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.setup || r.restored {
		return ErrNotSetup
	}
	if r.SetErr != nil {
		return r.SetErr
	}
	r.on = on
	r.transitions = append(r.transitions, on)
	return nil
}

// Restore implements Indicator.
func (r *Recorder) Restore() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setup {
		r.restored = true
		r.on = false
	}
	return nil
}

// On reports the current output state.
func (r *Recorder) On() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

// Transitions returns a copy of every value passed to Set.
func (r *Recorder) Transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.transitions...)
}

// Restored reports whether Restore ran after a successful Setup.
func (r *Recorder) Restored() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restored
}
