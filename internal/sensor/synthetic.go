package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"sensorstream/util"
)

// SyntheticConfig configures a Synthetic source.
type SyntheticConfig struct {
	Mode MapMode
	// Fail lists modalities that refuse to come up on Acquire, the way
	// a sensor without an IR projector or RGB camera would.
	Fail   []Modality
	Logger *util.Logger
}

// Synthetic generates deterministic frames paced at the configured
// frame rate.  It stands in for a physical sensor on development hosts
// and in tests.
type Synthetic struct {
	mode   MapMode
	fail   [numModalities]bool
	logger *util.Logger

	mu       sync.Mutex
	acquired bool
	acq      Acquisition
	seq      [numModalities]uint64
	next     [numModalities]time.Time
}

// NewSynthetic creates a synthetic source.  A zero Mode means QVGA.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	s := &Synthetic{mode: cfg.Mode, logger: cfg.Logger}
	if s.mode == (MapMode{}) {
		s.mode = QVGA
	}
	if s.logger == nil {
		s.logger = util.NewLoggerTo(io.Discard, 0, true)
	}
	for _, m := range cfg.Fail {
		if m.valid() {
			s.fail[m] = true
		}
	}
	return s
}

// Acquire implements Source.
func (s *Synthetic) Acquire(ctx context.Context, modalities []Modality) (Acquisition, error) {
	if err := ctx.Err(); err != nil {
		return Acquisition{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquired {
		return Acquisition{}, ErrAlreadyAcquired
	}

	var opened []Modality
	for _, m := range modalities {
		if !m.valid() {
			return Acquisition{}, fmt.Errorf("acquire: unknown %s", m)
		}
		if s.fail[m] {
			if m.Mandatory() {
				return Acquisition{}, fmt.Errorf("%w: %s: %w", ErrMandatoryModality, m, ErrNoDevice)
			}
			s.logger.Warn("%s creation failed: %v", m, ErrNoDevice)
			continue
		}
		opened = append(opened, m)
		s.logger.Verbose("%s stream open at %s", m, s.mode)
	}
	acq := NewAcquisition(s.mode, opened...)
	if !acq.Available(Depth) {
		return Acquisition{}, fmt.Errorf("%w: depth was not requested", ErrMandatoryModality)
	}

	s.acq = acq
	s.acquired = true
	s.seq = [numModalities]uint64{}
	s.next = [numModalities]time.Time{}
	return acq, nil
}

// IsAvailable implements Source.
func (s *Synthetic) IsAvailable(m Modality) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired && s.acq.Available(m)
}

// WaitAndFetch implements Source.
func (s *Synthetic) WaitAndFetch(ctx context.Context, m Modality) (Frame, error) {
	s.mu.Lock()
	if !s.acquired {
		s.mu.Unlock()
		return Frame{}, ErrNotAcquired
	}
	if !s.acq.Available(m) {
		s.mu.Unlock()
		return Frame{}, fmt.Errorf("%s: %w", m, ErrUnavailable)
	}
	due := s.next[m]
	s.mu.Unlock()

	if wait := time.Until(due); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Frame{}, fmt.Errorf("wait for %s frame: %w", m, ctx.Err())
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Released while we were waiting.
	if !s.acquired {
		return Frame{}, ErrNotAcquired
	}

	now := time.Now()
	s.seq[m]++
	s.next[m] = now.Add(s.mode.Interval())
	return Frame{
		Modality:  m,
		Seq:       s.seq[m],
		Timestamp: now,
		Width:     s.mode.Width,
		Height:    s.mode.Height,
		Data:      render(m, s.mode, s.seq[m]),
	}, nil
}

// Release implements Source.
func (s *Synthetic) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquired {
		s.logger.Verbose("releasing sensor")
	}
	s.acquired = false
	s.acq = Acquisition{}
	return nil
}

// render fills a frame with a moving test pattern.  Depth and IR are
// little-endian 16-bit samples, color is RGB24.
func render(m Modality, mode MapMode, seq uint64) []byte {
	data := make([]byte, FrameSize(m, mode))
	shift := int(seq)
	i := 0
	for y := 0; y < mode.Height; y++ {
		for x := 0; x < mode.Width; x++ {
			switch m {
			case Depth:
				binary.LittleEndian.PutUint16(data[i:], uint16((x+y+shift)%4096))
				i += 2
			case Infrared:
				binary.LittleEndian.PutUint16(data[i:], uint16((x*y+shift)%1024))
				i += 2
			case Color:
				data[i] = byte(x + shift)
				data[i+1] = byte(y)
				data[i+2] = byte(shift)
				i += 3
			}
		}
	}
	return data
}
