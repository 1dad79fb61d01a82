package core

import (
	"context"
	"fmt"
	"time"

	"sensorstream/config"
	sserr "sensorstream/internal/errors"
	"sensorstream/internal/indicator"
	"sensorstream/internal/metrics"
	"sensorstream/internal/retry"
	"sensorstream/internal/session"
	"sensorstream/util"
)

// Policy decides what a startup failure does to the process.
type Policy string

const (
	// PolicyExit ends the process with the failure's exit code.
	PolicyExit Policy = config.PolicyExit
	// PolicyRetry starts a new cycle after a backoff pause, up to the
	// backoff's attempt budget.
	PolicyRetry Policy = config.PolicyRetry
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyExit, PolicyRetry:
		return p, nil
	default:
		return "", fmt.Errorf("unknown startup failure policy %q", s)
	}
}

// Supervisor runs sessions back to back until a client sends "kill",
// the context is cancelled, or a startup failure is fatal under the
// configured policy.
type Supervisor struct {
	// NewSession builds the session for the next cycle.
	NewSession func() *session.Session
	Indicator  indicator.Indicator
	Policy     Policy
	// Backoff paces consecutive startup failures under PolicyRetry.
	Backoff *retry.Backoff
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Run drives the cycle loop.  It returns nil on kill or cancellation
// and the startup error otherwise; errors.ExitCode maps that error to
// the process exit status.
func (s *Supervisor) Run(ctx context.Context) error {
	start := time.Now()
	ind := s.Indicator
	if ind == nil {
		ind = indicator.Nop{}
	}

	if err := s.attempt(ctx, "indicator setup", func() error {
		return sserr.Startup(sserr.StageIndicator, ind.Setup())
	}); err != nil {
		return s.finish(ctx, err)
	}
	defer func() {
		if err := ind.Restore(); err != nil {
			s.Logger.Warn("indicator restore: %v", err)
		}
		s.Logger.Verbose("ran %s, metrics: %s", util.Since(start), s.Metrics.JSON())
	}()

	for cycle := 1; ; cycle++ {
		var outcome session.Outcome
		err := s.attempt(ctx, "session", func() error {
			sess := s.NewSession()
			s.Logger.Verbose("cycle %d: session %s", cycle, sess.ID)
			o, err := sess.Run(ctx)
			outcome = o
			return err
		})
		if err != nil {
			return s.finish(ctx, err)
		}

		switch {
		case ctx.Err() != nil || outcome == session.OutcomeCancelled:
			s.Logger.Info("shutting down")
			return nil
		case outcome == session.OutcomeTerminate:
			s.Logger.Info("kill received, exiting")
			return nil
		default:
			s.Logger.Verbose("restarting after %s", outcome)
		}
	}
}

// attempt runs fn once under PolicyExit, or until it succeeds or the
// backoff gives up under PolicyRetry.
func (s *Supervisor) attempt(ctx context.Context, what string, fn func() error) error {
	b := s.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	bo := *b
	bo.Notify = func(attempt int, err error, wait time.Duration) {
		s.Logger.Warn("%s attempt %d: %v (retrying in %s)", what, attempt, err, wait.Round(time.Millisecond))
	}

	return bo.Do(ctx, func(int) error {
		err := fn()
		if err != nil && (s.Policy != PolicyRetry || ctx.Err() != nil) {
			return retry.Permanent(err)
		}
		return err
	})
}

// finish maps a failed attempt to Run's result: shutdown wins over any
// error raised while it was in progress.
func (s *Supervisor) finish(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.Logger.Info("shutting down")
		return nil
	}
	s.Logger.Error("%v (exit code %d)", err, sserr.ExitCode(err))
	return err
}
