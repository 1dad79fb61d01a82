// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages through zerolog.  Console output is
// used on a terminal, JSON lines everywhere else.
type Logger struct {
	level LogLevel
	json  bool
	zl    zerolog.Logger
}

// NewLogger returns a Logger on stderr that prints messages at or below
// the given verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return NewLoggerTo(os.Stderr, verbosity, !IsTerminal(os.Stderr))
}

// NewLoggerTo returns a Logger writing to w.  With jsonOutput false the
// entries are rendered by zerolog's console writer, coloured only when
// w is a terminal.
func NewLoggerTo(w io.Writer, verbosity int, jsonOutput bool) *Logger {
	l := &Logger{level: LogLevel(verbosity), json: jsonOutput}
	l.zl = newZerolog(w, jsonOutput)
	return l
}

func newZerolog(w io.Writer, jsonOutput bool) zerolog.Logger {
	out := w
	if !jsonOutput {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !colorable(w),
			TimeFormat: "15:04:05.000",
		}
	}
	return zerolog.New(out).Level(zerolog.TraceLevel).With().Timestamp().Logger()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorable reports whether console output to w should carry ANSI
// colour codes.
func colorable(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && IsTerminal(f)
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.zl = newZerolog(w, l.json)
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// With returns a child logger that adds key=value to every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		level: l.level,
		json:  l.json,
		zl:    l.zl.With().Interface(key, value).Logger(),
	}
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.zl.Info().Msgf(format, args...)
	}
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.zl.Warn().Msgf(format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Rendered at zerolog debug level.
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.zl.Debug().Msgf(format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Rendered at zerolog trace level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.zl.Trace().Msgf(format, args...)
	}
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Since is a small helper for "took" fields in log lines.
func Since(start time.Time) time.Duration {
	return time.Since(start).Truncate(time.Millisecond)
}
