// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"sensorstream/config"
	"sensorstream/internal/core"
	"sensorstream/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X sensorstream/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// cliOptions are flags that steer the CLI itself rather than the daemon.
type cliOptions struct {
	configFile  string
	verbose     int
	dryRun      bool
	showVersion bool
	showHelp    bool
}

// Execute parses args and runs the selected sensorstream mode.
func Execute(ctx context.Context, args []string) error {
	cfg, opts, fs, err := resolve(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		printUsage(fs)
		return nil
	}
	if opts.showVersion {
		fmt.Printf("sensorstream %s\n", version)
		return nil
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := newLogger(cfg)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("sensorstream %s on port %d (%s, policy %s)", version, cfg.Port, cfg.MapMode(), cfg.Policy)
	if cfg.ConfigFile != "" {
		logger.Verbose("config loaded from %s", cfg.ConfigFile)
	}
	return mode.Run(ctx)
}

// resolve layers defaults, the config file, the environment and the
// flags, in that order.  The flags are parsed twice: once to find
// --config, once more onto the merged config so they win.
func resolve(args []string) (*config.Config, *cliOptions, *flag.FlagSet, error) {
	opts := &cliOptions{}
	fs := newFlagSet(config.Default(), opts)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, nil, fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}
	if opts.showHelp || opts.showVersion {
		return nil, opts, fs, nil
	}

	cfg := config.Default()
	if opts.configFile != "" {
		if err := config.LoadFile(cfg, opts.configFile); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, nil, nil, err
	}

	fs = newFlagSet(cfg, opts)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	if fs.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	cfg.ConfigFile = opts.configFile
	cfg.DryRun = opts.dryRun
	return cfg, opts, fs, nil
}

// newFlagSet binds every flag to cfg, using cfg's current values as the
// defaults.
func newFlagSet(cfg *config.Config, opts *cliOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("sensorstream", flag.ContinueOnError)

	// ── network ──────────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP port to listen on")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "Listen queue length")

	// ── sensor ───────────────────────────────────────────────────
	fs.StringVar(&cfg.Source, "source", cfg.Source, "Frame source ("+config.SourceSynthetic+")")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Frame width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Frame height in pixels")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "Frames per second")
	fs.BoolVar(&cfg.Infrared, "ir", cfg.Infrared, "Open the infrared stream (--ir=false to skip)")
	fs.BoolVar(&cfg.Color, "color", cfg.Color, "Open the color stream (--color=false to skip)")
	fs.StringSliceVar(&cfg.Fail, "fail", cfg.Fail, "Synthetic source: modalities that fail to open")

	// ── indicator ────────────────────────────────────────────────
	fs.StringVar(&cfg.LEDDir, "led-dir", cfg.LEDDir, "sysfs directory of the status LED")
	fs.StringVar(&cfg.LEDTrigger, "led-trigger", cfg.LEDTrigger, "Trigger restored on exit")
	fs.BoolVar(&cfg.NoLED, "no-led", cfg.NoLED, "Run without a status LED")

	// ── lifecycle ────────────────────────────────────────────────
	fs.StringVar(&cfg.Policy, "on-failure", cfg.Policy, "Startup failure policy: exit or retry")
	fs.IntVar(&cfg.MaxRestarts, "max-restarts", cfg.MaxRestarts, "Consecutive failed startups before giving up (retry)")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "First pause between failed startups (retry)")
	fs.DurationVar(&cfg.AcceptTimeout, "accept-timeout", cfg.AcceptTimeout, "Restart the cycle if no client connects in time (0 = wait forever)")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Drop a client idle this long (0 = never)")
	fs.DurationVar(&cfg.FrameTimeout, "frame-timeout", cfg.FrameTimeout, "Reply FAILED if a frame takes longer (0 = wait forever)")

	// ── protocol ─────────────────────────────────────────────────
	fs.BoolVar(&cfg.Framed, "framed", cfg.Framed, "Prefix every response with a 4-byte big-endian length")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&opts.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Log JSON lines even on a terminal")
	fs.BoolVar(&cfg.Probe, "probe", cfg.Probe, "Report sensor capabilities and exit")

	// ── cli ──────────────────────────────────────────────────────
	fs.StringVarP(&opts.configFile, "config", "c", opts.configFile, "YAML config file")
	fs.BoolVar(&opts.dryRun, "dry-run", opts.dryRun, "Print the effective config and exit")
	fs.BoolVar(&opts.showVersion, "version", opts.showVersion, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", opts.showHelp, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

// ── helpers ──────────────────────────────────────────────────────────

func newLogger(cfg *config.Config) *util.Logger {
	if cfg.LogJSON {
		return util.NewLoggerTo(os.Stderr, cfg.Verbose, true)
	}
	return util.NewLogger(cfg.Verbose)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `sensorstream v%s

Serves depth, infrared and color frames to one TCP client at a time.

Usage:
  sensorstream [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Commands (sent by the client, one per read):
  getDepth | getIR | getImage   reply with one frame, INVALID or FAILED
  stop                          end the session, listen again
  kill                          end the session and exit

Every option can also be set as SENSORSTREAM_<NAME> (e.g. SENSORSTREAM_PORT)
or in the --config file; flags win over the environment, which wins over
the file.

Examples:
  sensorstream -v                              Serve on port 1234
  sensorstream --no-led --on-failure retry     Keep trying on startup errors
  sensorstream --probe --color=false           Check the sensor and exit
`)
}
