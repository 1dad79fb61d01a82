package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"

	sserr "sensorstream/internal/errors"
)

// EnvPrefix starts every supported environment variable.
const EnvPrefix = "SENSORSTREAM_"

// ── Environment variable mapping ─────────────────────────────────────
//
// Boolean values accept "1", "true", "yes" and "0", "false", "no"
// (case-insensitive), so an env var can also switch a default off.
// Durations accept Go syntax ("500ms", "2m") or whole seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  Call it BEFORE CLI flag
// parsing so that flags take precedence.  A value that cannot be parsed
// is reported as a *errors.ConfigError.
func LoadFromEnv(cfg *Config) error {
	e := &envReader{}

	e.intVar("PORT", &cfg.Port)
	e.intVar("BACKLOG", &cfg.Backlog)

	e.strVar("SOURCE", &cfg.Source)
	e.intVar("WIDTH", &cfg.Width)
	e.intVar("HEIGHT", &cfg.Height)
	e.intVar("FPS", &cfg.FPS)
	e.boolVar("INFRARED", &cfg.Infrared)
	e.boolVar("COLOR", &cfg.Color)
	if v := os.Getenv(EnvPrefix + "FAIL"); v != "" {
		cfg.Fail = splitList(v)
	}

	e.strVar("LED_DIR", &cfg.LEDDir)
	e.strVar("LED_TRIGGER", &cfg.LEDTrigger)
	e.boolVar("NO_LED", &cfg.NoLED)

	e.strVar("ON_FAILURE", &cfg.Policy)
	e.intVar("MAX_RESTARTS", &cfg.MaxRestarts)
	e.durationVar("RETRY_DELAY", &cfg.RetryDelay)
	e.durationVar("ACCEPT_TIMEOUT", &cfg.AcceptTimeout)
	e.durationVar("READ_TIMEOUT", &cfg.ReadTimeout)
	e.durationVar("FRAME_TIMEOUT", &cfg.FrameTimeout)

	e.boolVar("FRAMED", &cfg.Framed)

	e.intVar("VERBOSE", &cfg.Verbose)
	e.boolVar("LOG_JSON", &cfg.LogJSON)

	return e.err
}

// ── helpers ──────────────────────────────────────────────────────────

// envReader keeps the first parse error so LoadFromEnv reads like a
// table.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	return v, v != ""
}

func (e *envReader) fail(key, value, msg string) {
	e.err = &sserr.ConfigError{
		Field:   strings.ToLower(strings.ReplaceAll(key, "_", "-")),
		Value:   value,
		Message: msg + " in " + EnvPrefix + key,
	}
}

func (e *envReader) strVar(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) intVar(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "not an integer")
		return
	}
	*dst = n
}

func (e *envReader) boolVar(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.fail(key, v, "not a boolean")
	}
}

func (e *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := parseDuration(v)
	if err != nil {
		e.fail(key, v, "not a duration")
		return
	}
	*dst = d
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return secondsDuration(n), nil
	}
	return time.ParseDuration(s)
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
