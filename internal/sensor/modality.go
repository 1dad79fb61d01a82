package sensor

import (
	"fmt"
	"strings"
	"time"
)

// Modality is one of the sensor's independent output streams.
type Modality int

const (
	Depth Modality = iota
	Infrared
	Color

	numModalities = 3
)

var modalityNames = [numModalities]string{"depth", "ir", "color"}

func (m Modality) String() string {
	if m.valid() {
		return modalityNames[m]
	}
	return fmt.Sprintf("modality(%d)", int(m))
}

func (m Modality) valid() bool { return m >= 0 && m < numModalities }

// Mandatory reports whether a session cannot run without this modality.
func (m Modality) Mandatory() bool { return m == Depth }

// BytesPerPixel is the sample size the sensor reports for m: 16-bit
// depth and infrared, RGB24 color.
func (m Modality) BytesPerPixel() int {
	if m == Color {
		return 3
	}
	return 2
}

// All returns every modality, mandatory first.
func All() []Modality { return []Modality{Depth, Infrared, Color} }

// ParseModality accepts the short names used in config and logs.
func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "depth":
		return Depth, nil
	case "ir", "infrared":
		return Infrared, nil
	case "color", "colour", "image", "rgb":
		return Color, nil
	default:
		return 0, fmt.Errorf("unknown modality %q (want depth, ir or color)", s)
	}
}

// ParseModalities parses a list of modality names.
func ParseModalities(names []string) ([]Modality, error) {
	out := make([]Modality, 0, len(names))
	for _, n := range names {
		m, err := ParseModality(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MapMode is the negotiated output resolution and frame rate.
type MapMode struct {
	Width  int
	Height int
	FPS    int
}

// QVGA is the 320x240@30 mode every modality is opened with by default.
var QVGA = MapMode{Width: 320, Height: 240, FPS: 30}

func (m MapMode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.FPS)
}

// Interval is the time between two frames, zero when unpaced.
func (m MapMode) Interval() time.Duration {
	if m.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(m.FPS)
}

// FrameSize returns the payload size of one frame of m in mode.  Clients
// rely on it to delimit unframed responses.
func FrameSize(m Modality, mode MapMode) int {
	return mode.Width * mode.Height * m.BytesPerPixel()
}

// Frame is one captured data unit.  Data is opaque to everything but
// the client.
type Frame struct {
	Modality  Modality
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}

// Acquisition records which modalities came up for the current session.
type Acquisition struct {
	Mode      MapMode
	available [numModalities]bool
}

// NewAcquisition returns an Acquisition in mode with the given
// modalities marked available.  Invalid modalities are ignored.
func NewAcquisition(mode MapMode, modalities ...Modality) Acquisition {
	a := Acquisition{Mode: mode}
	for _, m := range modalities {
		if m.valid() {
			a.available[m] = true
		}
	}
	return a
}

// Available reports whether m was acquired.
func (a Acquisition) Available(m Modality) bool {
	return m.valid() && a.available[m]
}

// Modalities lists the acquired modalities.
func (a Acquisition) Modalities() []Modality {
	var out []Modality
	for _, m := range All() {
		if a.available[m] {
			out = append(out, m)
		}
	}
	return out
}

func (a Acquisition) String() string {
	mods := a.Modalities()
	if len(mods) == 0 {
		return "none"
	}
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.String()
	}
	return strings.Join(names, ",")
}
