package sensor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_AcquireAll(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{})

	acq, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)

	assert.Equal(t, QVGA, acq.Mode)
	assert.Equal(t, []Modality{Depth, Infrared, Color}, acq.Modalities())
	for _, m := range All() {
		assert.True(t, s.IsAvailable(m), m.String())
	}
}

func TestSynthetic_OptionalFailure(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Fail: []Modality{Infrared}})

	acq, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)

	assert.True(t, acq.Available(Depth))
	assert.False(t, acq.Available(Infrared))
	assert.True(t, acq.Available(Color))
	assert.Equal(t, "depth,color", acq.String())

	_, err = s.WaitAndFetch(context.Background(), Infrared)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSynthetic_MandatoryFailure(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Fail: []Modality{Depth}})

	_, err := s.Acquire(context.Background(), All())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMandatoryModality)
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.False(t, s.IsAvailable(Depth))

	// Release after a failed acquire must be safe.
	assert.NoError(t, s.Release())
}

func TestSynthetic_DepthNotRequested(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{})

	_, err := s.Acquire(context.Background(), []Modality{Color})
	assert.ErrorIs(t, err, ErrMandatoryModality)
}

func TestSynthetic_SingleAcquisition(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{})

	_, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)

	_, err = s.Acquire(context.Background(), All())
	assert.ErrorIs(t, err, ErrAlreadyAcquired)

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())

	_, err = s.Acquire(context.Background(), All())
	assert.NoError(t, err)
}

func TestSynthetic_FrameSizes(t *testing.T) {
	mode := MapMode{Width: 16, Height: 8, FPS: 0}
	s := NewSynthetic(SyntheticConfig{Mode: mode})
	_, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)

	tests := []struct {
		m    Modality
		want int
	}{
		{Depth, 16 * 8 * 2},
		{Infrared, 16 * 8 * 2},
		{Color, 16 * 8 * 3},
	}
	for _, tt := range tests {
		t.Run(tt.m.String(), func(t *testing.T) {
			f, err := s.WaitAndFetch(context.Background(), tt.m)
			require.NoError(t, err)
			assert.Len(t, f.Data, tt.want)
			assert.Equal(t, tt.want, FrameSize(tt.m, mode))
			assert.Equal(t, tt.m, f.Modality)
			assert.Equal(t, 16, f.Width)
			assert.Equal(t, 8, f.Height)
		})
	}
}

func TestSynthetic_SequenceAdvances(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Mode: MapMode{Width: 4, Height: 4}})
	_, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)

	f1, err := s.WaitAndFetch(context.Background(), Depth)
	require.NoError(t, err)
	f2, err := s.WaitAndFetch(context.Background(), Depth)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f1.Seq)
	assert.Equal(t, uint64(2), f2.Seq)
	assert.NotEqual(t, f1.Data, f2.Data)
}

func TestSynthetic_PacingHonorsContext(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Mode: MapMode{Width: 4, Height: 4, FPS: 1}})
	_, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)

	// The first frame is immediate; the next is a full second away.
	_, err = s.WaitAndFetch(context.Background(), Depth)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = s.WaitAndFetch(ctx, Depth)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSynthetic_FetchAfterRelease(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Mode: MapMode{Width: 4, Height: 4}})
	_, err := s.Acquire(context.Background(), All())
	require.NoError(t, err)
	require.NoError(t, s.Release())

	_, err = s.WaitAndFetch(context.Background(), Depth)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, s.IsAvailable(Depth))
}

func TestSynthetic_CancelledAcquire(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Acquire(ctx, All())
	assert.ErrorIs(t, err, context.Canceled)
}
