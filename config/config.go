// Package config defines the runtime configuration for sensorstream and
// the layers it is assembled from: defaults, an optional YAML file,
// SENSORSTREAM_* environment variables and command-line flags.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	sserr "sensorstream/internal/errors"
	"sensorstream/internal/sensor"
)

// Config holds every tuneable of the daemon.
type Config struct {
	// ── Network ──────────────────────────────────────────────────────
	Port    int `yaml:"port"`
	Backlog int `yaml:"backlog"`

	// ── Sensor ───────────────────────────────────────────────────────
	Source   string   `yaml:"source"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	FPS      int      `yaml:"fps"`
	Infrared bool     `yaml:"infrared"`
	Color    bool     `yaml:"color"`
	Fail     []string `yaml:"fail,omitempty"` // synthetic: modalities that refuse to start

	// ── Indicator ────────────────────────────────────────────────────
	LEDDir     string `yaml:"led_dir"`
	LEDTrigger string `yaml:"led_trigger"`
	NoLED      bool   `yaml:"no_led"`

	// ── Lifecycle ────────────────────────────────────────────────────
	Policy        string        `yaml:"policy"`
	MaxRestarts   int           `yaml:"max_restarts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	AcceptTimeout time.Duration `yaml:"accept_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	FrameTimeout  time.Duration `yaml:"frame_timeout"`

	// ── Protocol ─────────────────────────────────────────────────────
	Framed bool `yaml:"framed"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int  `yaml:"verbose"`
	LogJSON bool `yaml:"log_json"`
	Probe   bool `yaml:"-"`

	ConfigFile string `yaml:"-"`
	DryRun     bool   `yaml:"-"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Port:        DefaultPort,
		Backlog:     DefaultBacklog,
		Source:      DefaultSource,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		FPS:         DefaultFPS,
		Infrared:    true,
		Color:       true,
		LEDDir:      DefaultLEDDir,
		LEDTrigger:  DefaultLEDTrigger,
		Policy:      DefaultPolicy,
		MaxRestarts: DefaultMaxRestarts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// MapMode returns the configured stream mode.
func (c *Config) MapMode() sensor.MapMode {
	return sensor.MapMode{Width: c.Width, Height: c.Height, FPS: c.FPS}
}

// Modalities lists the modalities to request; depth is always first.
func (c *Config) Modalities() []sensor.Modality {
	out := []sensor.Modality{sensor.Depth}
	if c.Infrared {
		out = append(out, sensor.Infrared)
	}
	if c.Color {
		out = append(out, sensor.Color)
	}
	return out
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(data), nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.  The
// error is a *errors.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &sserr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "port out of range 1-65535",
			Hint:    fmt.Sprintf("the controller expects %d", DefaultPort),
		}
	}
	if c.Backlog < 1 {
		return &sserr.ConfigError{Field: "backlog", Value: c.Backlog, Message: "must be at least 1"}
	}

	if c.Source != SourceSynthetic {
		return &sserr.ConfigError{
			Field:   "source",
			Value:   c.Source,
			Message: "unknown frame source",
			Hint:    "supported sources: " + SourceSynthetic,
		}
	}
	if c.Width < 1 || c.Height < 1 {
		return &sserr.ConfigError{
			Field:   "resolution",
			Value:   fmt.Sprintf("%dx%d", c.Width, c.Height),
			Message: "width and height must be positive",
		}
	}
	if c.FPS < 1 || c.FPS > 1000 {
		return &sserr.ConfigError{Field: "fps", Value: c.FPS, Message: "frame rate out of range 1-1000"}
	}
	if _, err := sensor.ParseModalities(c.Fail); err != nil {
		return &sserr.ConfigError{
			Field:   "fail",
			Value:   c.Fail,
			Message: err.Error(),
			Hint:    "use depth, ir or color",
		}
	}

	if !c.NoLED && c.LEDDir == "" {
		return &sserr.ConfigError{
			Field:   "led-dir",
			Message: "LED directory is required",
			Hint:    "pass --no-led on hosts without a status LED",
		}
	}

	switch c.Policy {
	case PolicyExit, PolicyRetry:
	default:
		return &sserr.ConfigError{
			Field:   "on-failure",
			Value:   c.Policy,
			Message: "unknown startup failure policy",
			Hint:    fmt.Sprintf("use %q or %q", PolicyExit, PolicyRetry),
		}
	}
	if c.Policy == PolicyRetry {
		if c.MaxRestarts < 1 {
			return &sserr.ConfigError{Field: "max-restarts", Value: c.MaxRestarts, Message: "must be at least 1"}
		}
		if c.RetryDelay <= 0 {
			return &sserr.ConfigError{Field: "retry-delay", Value: c.RetryDelay, Message: "must be positive"}
		}
	}

	for _, d := range []struct {
		field string
		v     time.Duration
	}{
		{"accept-timeout", c.AcceptTimeout},
		{"read-timeout", c.ReadTimeout},
		{"frame-timeout", c.FrameTimeout},
	} {
		if d.v < 0 {
			return &sserr.ConfigError{
				Field:   d.field,
				Value:   d.v,
				Message: "must not be negative",
				Hint:    "0 waits forever",
			}
		}
	}

	if c.Verbose < 0 {
		return &sserr.ConfigError{Field: "verbose", Value: c.Verbose, Message: "must not be negative"}
	}
	return nil
}
