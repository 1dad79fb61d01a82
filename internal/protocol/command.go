// Package protocol implements the sensorstream wire format: short text
// commands in, raw frame payloads or status tokens out.
//
// Commands are NUL-terminated ASCII of at most MaxCommandSize-1 bytes
// and are not length-prefixed.  Unframed responses carry no length
// either; a client knows each modality's frame size out of band.
package protocol

import "sensorstream/internal/sensor"

// Command is a case-sensitive request token.
type Command string

const (
	Kill     Command = "kill"
	Stop     Command = "stop"
	GetDepth Command = "getDepth"
	GetIR    Command = "getIR"
	GetImage Command = "getImage"
)

// Known reports whether c is one of the recognised commands.
func (c Command) Known() bool {
	switch c {
	case Kill, Stop, GetDepth, GetIR, GetImage:
		return true
	}
	return false
}

// Modality maps a frame request to the stream it reads.
func (c Command) Modality() (sensor.Modality, bool) {
	switch c {
	case GetDepth:
		return sensor.Depth, true
	case GetIR:
		return sensor.Infrared, true
	case GetImage:
		return sensor.Color, true
	}
	return 0, false
}

// CommandFor is the inverse of Modality.
func CommandFor(m sensor.Modality) Command {
	switch m {
	case sensor.Infrared:
		return GetIR
	case sensor.Color:
		return GetImage
	default:
		return GetDepth
	}
}
