package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the config file, and environment variable loading.

const (
	// DefaultPort is the TCP port the controller connects to.
	DefaultPort = 1234

	// DefaultBacklog is the listen queue length.
	DefaultBacklog = 5

	// DefaultSource is the frame source used when none is configured.
	DefaultSource = SourceSynthetic

	// QVGA at 30 frames per second is the mode every stream is opened in.
	DefaultWidth  = 320
	DefaultHeight = 240
	DefaultFPS    = 30

	// DefaultLEDDir is the sysfs directory of the status LED.
	DefaultLEDDir = "/sys/class/leds/led0"

	// DefaultLEDTrigger is the trigger handed back to the kernel on exit.
	DefaultLEDTrigger = "mmc0"

	// DefaultPolicy exits on the first startup failure.
	DefaultPolicy = PolicyExit

	// DefaultMaxRestarts bounds consecutive failed startups under the
	// retry policy.
	DefaultMaxRestarts = 10

	// DefaultRetryDelay is the first pause between failed startups; it
	// doubles up to DefaultMaxRetryDelay.
	DefaultRetryDelay    = time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// Source kinds.
const (
	SourceSynthetic = "synthetic"
)

// Startup failure policies.
const (
	PolicyExit  = "exit"
	PolicyRetry = "retry"
)
