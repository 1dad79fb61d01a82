package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	sserr "sensorstream/internal/errors"
	"sensorstream/internal/protocol"
	"sensorstream/internal/sensor"
	"sensorstream/util"
)

// ProbeMode acquires the source once, fetches one frame of every
// available modality and prints a YAML report.  It is meant for
// checking a sensor on a new host without a client.
type ProbeMode struct {
	Source     sensor.Source
	Modalities []sensor.Modality
	Timeout    time.Duration // per frame; 0 means DefaultProbeTimeout
	Logger     *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

// DefaultProbeTimeout bounds each probe fetch.
const DefaultProbeTimeout = 5 * time.Second

// ProbeReport is what ProbeMode prints.
type ProbeReport struct {
	Mode       string        `yaml:"mode"`
	Modalities []ProbeResult `yaml:"modalities"`
}

// ProbeResult describes one modality.
type ProbeResult struct {
	Name      string `yaml:"name"`
	Command   string `yaml:"command"`
	Available bool   `yaml:"available"`
	FrameSize int    `yaml:"frame_size"`
	Received  int    `yaml:"received,omitempty"`
	Latency   string `yaml:"latency,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

// Run implements Mode.
func (m *ProbeMode) Run(ctx context.Context) error {
	acq, err := m.Source.Acquire(ctx, m.Modalities)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return sserr.Startup(sserr.StageSensor, err)
	}
	defer func() {
		if err := m.Source.Release(); err != nil {
			m.Logger.Warn("sensor release: %v", err)
		}
	}()

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	report := ProbeReport{Mode: acq.Mode.String()}
	var errs []error
	for _, mod := range m.Modalities {
		res := ProbeResult{
			Name:      mod.String(),
			Command:   string(protocol.CommandFor(mod)),
			Available: acq.Available(mod),
			FrameSize: sensor.FrameSize(mod, acq.Mode),
		}
		if res.Available {
			fctx, cancel := context.WithTimeout(ctx, timeout)
			start := time.Now()
			frame, err := m.Source.WaitAndFetch(fctx, mod)
			cancel()
			if err != nil {
				res.Error = err.Error()
				errs = append(errs, fmt.Errorf("%s: %w", mod, err))
			} else {
				res.Received = len(frame.Data)
				res.Latency = util.Since(start).Round(time.Microsecond).String()
			}
		}
		m.Logger.Verbose("probe %s: %+v", mod, res)
		report.Modalities = append(report.Modalities, res)
	}

	out := m.Stdout
	if out == nil {
		out = os.Stdout
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing probe report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("writing probe report: %w", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("probe failed: %w", errors.Join(errs...))
	}
	return nil
}
