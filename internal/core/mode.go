// Package core is the orchestration layer.  It composes the sensor
// source, the connection server and the indicator into complete
// operational modes and provides a builder that selects the right mode
// from a Config.
//
// Architecture layers (bottom → top):
//
//	sensor, indicator, protocol, transport  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of sensorstream (serve
// or probe).  Each mode owns its full lifecycle from acquisition to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}
