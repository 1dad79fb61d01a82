// Package session runs one acquire/serve/teardown cycle: it acquires the
// sensor, opens the listening socket, serves exactly one client and
// releases everything again, whatever ended the cycle.
//
// A Session is single-use.  The supervisor in internal/core builds a new
// one for every cycle.
package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	sserr "sensorstream/internal/errors"
	"sensorstream/internal/indicator"
	"sensorstream/internal/metrics"
	"sensorstream/internal/sensor"
	"sensorstream/util"
)

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	SensorAcquiring
	SensorReady
	Binding
	Listening
	Accepting
	Serving
	TearingDown
	Terminated
)

var stateNames = [...]string{
	Idle:            "idle",
	SensorAcquiring: "sensor-acquiring",
	SensorReady:     "sensor-ready",
	Binding:         "binding",
	Listening:       "listening",
	Accepting:       "accepting",
	Serving:         "serving",
	TearingDown:     "tearing-down",
	Terminated:      "terminated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Outcome is why a cycle ended.
type Outcome int

const (
	// OutcomeNone accompanies a startup error.
	OutcomeNone Outcome = iota
	// OutcomeRestart: the client sent "stop", or nobody connected
	// within the accept timeout.
	OutcomeRestart
	// OutcomeTerminate: the client sent "kill".
	OutcomeTerminate
	// OutcomeDisconnected: the client went away or idled past the read
	// timeout.
	OutcomeDisconnected
	// OutcomeCancelled: the process is shutting down.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRestart:
		return "restart"
	case OutcomeTerminate:
		return "terminate"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Terminates reports whether the process should exit after this outcome.
func (o Outcome) Terminates() bool {
	return o == OutcomeTerminate || o == OutcomeCancelled
}

// Server is the connection side of a session.  *transport.Server
// satisfies it.
type Server interface {
	Bind() error
	Listen() error
	Accept(ctx context.Context) (net.Conn, error)
	Close() error
}

// Options tune a single cycle.  Zero durations mean wait forever.
type Options struct {
	// Modalities requested from the source.  Depth must be among them.
	Modalities []sensor.Modality

	AcceptTimeout time.Duration
	ReadTimeout   time.Duration
	FrameTimeout  time.Duration

	// Framed prefixes every response with a 4-byte big-endian length.
	Framed bool
}

// Session owns a source, a server and the indicator for one cycle.
type Session struct {
	ID        string
	Source    sensor.Source
	Server    Server
	Indicator indicator.Indicator
	Logger    *util.Logger
	Metrics   *metrics.Collector
	Options   Options

	// OnState, when set, is called on every state change.
	OnState func(State)

	state State
	acq   sensor.Acquisition
	lit   bool
}

// New creates an idle session with a fresh ID.  A nil indicator means
// indicator.Nop.
func New(src sensor.Source, srv Server, ind indicator.Indicator, logger *util.Logger, m *metrics.Collector, opts Options) *Session {
	if ind == nil {
		ind = indicator.Nop{}
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		Source:    src,
		Server:    srv,
		Indicator: ind,
		Logger:    logger.With("session", id[:8]),
		Metrics:   m,
		Options:   opts,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

func (s *Session) setState(st State) {
	s.state = st
	s.Logger.Debug("state %s", st)
	if s.OnState != nil {
		s.OnState(st)
	}
}

// Run executes the cycle.  Teardown runs on every return path.  A
// startup failure is returned as an *errors.StartupError; if ctx was
// cancelled meanwhile the failure is reported as OutcomeCancelled
// instead.
func (s *Session) Run(ctx context.Context) (outcome Outcome, err error) {
	s.Metrics.SessionStarted()
	defer func() {
		s.teardown()
		if outcome.Terminates() {
			s.setState(Terminated)
		} else {
			s.setState(Idle)
		}
	}()

	s.setState(SensorAcquiring)
	acq, err := s.Source.Acquire(ctx, s.Options.Modalities)
	if err != nil {
		return s.startupFailed(ctx, sserr.StageSensor, err)
	}
	s.acq = acq
	s.Logger.Info("sensor ready: %s at %s", acq, acq.Mode)
	s.setState(SensorReady)

	s.setState(Binding)
	if err := s.Server.Bind(); err != nil {
		return s.startupFailed(ctx, sserr.StageBind, err)
	}

	s.setState(Listening)
	if err := s.Server.Listen(); err != nil {
		return s.startupFailed(ctx, sserr.StageListen, err)
	}

	s.setState(Accepting)
	actx := ctx
	if s.Options.AcceptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.Options.AcceptTimeout)
		defer cancel()
	}
	conn, err := s.Server.Accept(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			s.Logger.Info("no client within %s, restarting", s.Options.AcceptTimeout)
			return OutcomeRestart, nil
		}
		return s.startupFailed(ctx, sserr.StageAccept, err)
	}

	if err := s.Indicator.Set(true); err != nil {
		return s.startupFailed(ctx, sserr.StageIndicator, err)
	}
	s.lit = true
	s.Metrics.ClientAccepted()
	s.setState(Serving)

	outcome = s.serve(ctx, conn)
	s.Logger.Info("session ended: %s", outcome)
	return outcome, nil
}

// startupFailed tags err with stage unless a lower layer already did.
func (s *Session) startupFailed(ctx context.Context, stage sserr.Stage, err error) (Outcome, error) {
	if ctx.Err() != nil {
		s.Logger.Verbose("%s interrupted by shutdown: %v", stage, err)
		return OutcomeCancelled, nil
	}
	if _, ok := sserr.StageOf(err); !ok {
		err = sserr.Startup(stage, err)
	}
	s.Metrics.StartupFailed(err.Error())
	s.Logger.Error("%v", err)
	return OutcomeNone, err
}

func (s *Session) teardown() {
	if s.lit {
		if err := s.Indicator.Set(false); err != nil {
			s.Logger.Warn("indicator off: %v", err)
		}
		s.lit = false
		s.Metrics.ServingStopped()
	}
	s.setState(TearingDown)

	if err := s.Source.Release(); err != nil {
		s.Logger.Warn("sensor release: %v", err)
	}
	if err := s.Server.Close(); err != nil {
		s.Logger.Warn("server close: %v", err)
	}
}
