package core

import (
	"fmt"

	"sensorstream/config"
	"sensorstream/internal/indicator"
	"sensorstream/internal/metrics"
	"sensorstream/internal/retry"
	"sensorstream/internal/sensor"
	"sensorstream/internal/session"
	"sensorstream/internal/transport"
	"sensorstream/util"
)

// Build constructs the appropriate Mode from the given configuration.
// This is the single dispatch point between the CLI and the runtime.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	src, err := buildSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Probe {
		return &ProbeMode{
			Source:     src,
			Modalities: cfg.Modalities(),
			Timeout:    cfg.FrameTimeout,
			Logger:     logger,
		}, nil
	}
	return buildSupervisor(cfg, logger, src)
}

// ── mode builders ────────────────────────────────────────────────────

func buildSupervisor(cfg *config.Config, logger *util.Logger, src sensor.Source) (*Supervisor, error) {
	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	ind := buildIndicator(cfg)
	m := metrics.New()
	opts := session.Options{
		Modalities:    cfg.Modalities(),
		AcceptTimeout: cfg.AcceptTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		FrameTimeout:  cfg.FrameTimeout,
		Framed:        cfg.Framed,
	}

	return &Supervisor{
		NewSession: func() *session.Session {
			srv := transport.NewServer(cfg.Port, cfg.Backlog, logger)
			return session.New(src, srv, ind, logger, m, opts)
		},
		Indicator: ind,
		Policy:    policy,
		Backoff:   buildBackoff(cfg),
		Logger:    logger,
		Metrics:   m,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildSource creates the frame source named by cfg.Source.
func buildSource(cfg *config.Config, logger *util.Logger) (sensor.Source, error) {
	switch cfg.Source {
	case config.SourceSynthetic, "":
		fail, err := sensor.ParseModalities(cfg.Fail)
		if err != nil {
			return nil, err
		}
		return sensor.NewSynthetic(sensor.SyntheticConfig{
			Mode:   cfg.MapMode(),
			Fail:   fail,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown frame source %q", cfg.Source)
	}
}

func buildIndicator(cfg *config.Config) indicator.Indicator {
	if cfg.NoLED {
		return indicator.Nop{}
	}
	return indicator.NewSysfsLED(cfg.LEDDir, cfg.LEDTrigger)
}

func buildBackoff(cfg *config.Config) *retry.Backoff {
	b := retry.DefaultBackoff()
	if cfg.MaxRestarts > 0 {
		b.MaxAttempts = cfg.MaxRestarts
	}
	if cfg.RetryDelay > 0 {
		b.InitialDelay = cfg.RetryDelay
		if b.MaxDelay < b.InitialDelay {
			b.MaxDelay = b.InitialDelay
		}
	}
	return b
}
