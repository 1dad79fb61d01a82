package session

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "sensorstream/internal/errors"
	"sensorstream/internal/indicator"
	"sensorstream/internal/metrics"
	"sensorstream/internal/protocol"
	"sensorstream/internal/sensor"
	"sensorstream/util"
)

// ── fakes ────────────────────────────────────────────────────────────

type fakeSource struct {
	AcquireErr error
	Available  []sensor.Modality
	FetchErr   map[sensor.Modality]error
	Data       map[sensor.Modality][]byte
	// Block makes WaitAndFetch wait for ctx.
	Block bool

	mu       sync.Mutex
	acq      sensor.Acquisition
	released int
}

func (f *fakeSource) Acquire(_ context.Context, _ []sensor.Modality) (sensor.Acquisition, error) {
	if f.AcquireErr != nil {
		return sensor.Acquisition{}, f.AcquireErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acq = sensor.NewAcquisition(sensor.QVGA, f.Available...)
	return f.acq, nil
}

func (f *fakeSource) IsAvailable(m sensor.Modality) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acq.Available(m)
}

func (f *fakeSource) WaitAndFetch(ctx context.Context, m sensor.Modality) (sensor.Frame, error) {
	if f.Block {
		<-ctx.Done()
		return sensor.Frame{}, ctx.Err()
	}
	if err := f.FetchErr[m]; err != nil {
		return sensor.Frame{}, err
	}
	return sensor.Frame{Modality: m, Data: f.Data[m]}, nil
}

func (f *fakeSource) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeSource) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// pipeServer hands out one end of a net.Pipe as the accepted client.
type pipeServer struct {
	BindErr   error
	ListenErr error
	// Hold makes Accept wait for ctx instead of returning a client.
	Hold bool

	client net.Conn
	server net.Conn

	mu     sync.Mutex
	calls  []string
	closed bool
}

func newPipeServer() *pipeServer {
	c, s := net.Pipe()
	return &pipeServer{client: c, server: s}
}

func (p *pipeServer) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *pipeServer) Bind() error {
	p.record("bind")
	return p.BindErr
}

func (p *pipeServer) Listen() error {
	p.record("listen")
	return p.ListenErr
}

func (p *pipeServer) Accept(ctx context.Context) (net.Conn, error) {
	p.record("accept")
	if p.Hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.server, nil
}

func (p *pipeServer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.server.Close()
}

func (p *pipeServer) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *pipeServer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ── harness ──────────────────────────────────────────────────────────

type harness struct {
	src     *fakeSource
	srv     *pipeServer
	led     *indicator.Recorder
	metrics *metrics.Collector
	sess    *Session

	mu     sync.Mutex
	states []State
}

func newHarness(t *testing.T, src *fakeSource, opts Options) *harness {
	t.Helper()
	h := &harness{
		src:     src,
		srv:     newPipeServer(),
		led:     &indicator.Recorder{},
		metrics: metrics.New(),
	}
	require.NoError(t, h.led.Setup())
	t.Cleanup(func() { h.srv.client.Close() })

	logger := util.NewLoggerTo(io.Discard, 3, true)
	h.sess = New(src, h.srv, h.led, logger, h.metrics, opts)
	h.sess.OnState = func(st State) {
		// The indicator must be lit in exactly the serving state.
		if h.led.On() != (st == Serving) {
			t.Errorf("indicator on=%v in state %s", h.led.On(), st)
		}
		h.mu.Lock()
		h.states = append(h.states, st)
		h.mu.Unlock()
	}
	return h
}

type result struct {
	outcome Outcome
	err     error
}

func (h *harness) start(ctx context.Context) <-chan result {
	done := make(chan result, 1)
	go func() {
		o, err := h.sess.Run(ctx)
		done <- result{o, err}
	}()
	return done
}

func (h *harness) send(t *testing.T, cmd string) {
	t.Helper()
	h.srv.client.SetWriteDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, err := h.srv.client.Write([]byte(cmd))
	require.NoError(t, err)
}

func (h *harness) recv(t *testing.T, n int) string {
	t.Helper()
	h.srv.client.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	buf := make([]byte, n)
	_, err := io.ReadFull(h.srv.client, buf)
	require.NoError(t, err)
	return string(buf)
}

func (h *harness) States() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

func wait(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
		return result{}
	}
}

func depthOnly() *fakeSource {
	return &fakeSource{
		Available: []sensor.Modality{sensor.Depth},
		Data:      map[sensor.Modality][]byte{sensor.Depth: []byte("DEPTHDATA")},
	}
}

// ── tests ────────────────────────────────────────────────────────────

func TestState_String(t *testing.T) {
	assert.Equal(t, "serving", Serving.String())
	assert.Equal(t, "tearing-down", TearingDown.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestOutcome_Terminates(t *testing.T) {
	assert.True(t, OutcomeTerminate.Terminates())
	assert.True(t, OutcomeCancelled.Terminates())
	assert.False(t, OutcomeRestart.Terminates())
	assert.False(t, OutcomeDisconnected.Terminates())
	assert.False(t, OutcomeNone.Terminates())
}

func TestSession_GetDepthThenKill(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	done := h.start(context.Background())

	h.send(t, "getDepth")
	assert.Equal(t, "DEPTHDATA", h.recv(t, 9))
	h.send(t, "kill")

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeTerminate, r.outcome)

	assert.Equal(t, []State{
		SensorAcquiring, SensorReady, Binding, Listening, Accepting,
		Serving, TearingDown, Terminated,
	}, h.States())
	assert.Equal(t, []bool{true, false}, h.led.Transitions())
	assert.Equal(t, 1, h.src.Released())
	assert.True(t, h.srv.Closed())
	assert.Equal(t, int64(1), h.metrics.FramesSent())
	assert.Equal(t, int64(9), h.metrics.TotalBytesOut())
	assert.False(t, h.metrics.Serving())
}

func TestSession_StopRestarts(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	done := h.start(context.Background())

	h.send(t, "stop")

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeRestart, r.outcome)
	assert.Equal(t, Idle, h.sess.State())
	assert.True(t, h.srv.Closed())
}

func TestSession_UnavailableOptionalIsInvalid(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	done := h.start(context.Background())

	h.send(t, "getIR")
	assert.Equal(t, protocol.StatusInvalid, h.recv(t, 7))
	h.send(t, "getImage")
	assert.Equal(t, protocol.StatusInvalid, h.recv(t, 7))
	h.send(t, "kill")

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(2), h.metrics.InvalidRequests())
}

func TestSession_AvailableOptional(t *testing.T) {
	src := &fakeSource{
		Available: []sensor.Modality{sensor.Depth, sensor.Infrared, sensor.Color},
		Data: map[sensor.Modality][]byte{
			sensor.Infrared: []byte("IR"),
			sensor.Color:    []byte("RGB"),
		},
	}
	h := newHarness(t, src, Options{})
	done := h.start(context.Background())

	h.send(t, "getIR")
	assert.Equal(t, "IR", h.recv(t, 2))
	h.send(t, "getImage")
	assert.Equal(t, "RGB", h.recv(t, 3))
	h.send(t, "kill")

	require.NoError(t, wait(t, done).err)
}

func TestSession_FetchFailureReportsFailed(t *testing.T) {
	src := depthOnly()
	src.FetchErr = map[sensor.Modality]error{sensor.Depth: errors.New("update failed")}
	h := newHarness(t, src, Options{})
	done := h.start(context.Background())

	h.send(t, "getDepth")
	assert.Equal(t, protocol.StatusFailed, h.recv(t, 6))
	h.send(t, "kill")

	require.NoError(t, wait(t, done).err)
	assert.Equal(t, int64(1), h.metrics.FetchFailures())
}

func TestSession_FrameTimeoutReportsFailed(t *testing.T) {
	src := depthOnly()
	src.Block = true
	h := newHarness(t, src, Options{FrameTimeout: 20 * time.Millisecond})
	done := h.start(context.Background())

	h.send(t, "getDepth")
	assert.Equal(t, protocol.StatusFailed, h.recv(t, 6))
	h.send(t, "kill")

	require.NoError(t, wait(t, done).err)
}

func TestSession_DisconnectWithoutReply(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	done := h.start(context.Background())

	h.send(t, "getDepth")
	h.recv(t, 9)
	require.NoError(t, h.srv.client.Close())

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeDisconnected, r.outcome)
	assert.Equal(t, []bool{true, false}, h.led.Transitions())
	assert.Equal(t, int64(9), h.metrics.TotalBytesOut())
}

func TestSession_UnknownCommandIgnored(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	done := h.start(context.Background())

	h.send(t, "hello")
	h.send(t, "getDepth\r\n")
	// No reply to "hello": the first bytes back are the frame.
	assert.Equal(t, "DEPTHDATA", h.recv(t, 9))
	h.send(t, "kill")

	require.NoError(t, wait(t, done).err)
	assert.Equal(t, int64(1), h.metrics.UnknownCommands())
	assert.Equal(t, int64(3), h.metrics.Commands())
}

func TestSession_FramedResponses(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{Framed: true})
	done := h.start(context.Background())

	h.send(t, "getDepth")
	hdr := h.recv(t, 4)
	assert.Equal(t, uint32(9), binary.BigEndian.Uint32([]byte(hdr)))
	assert.Equal(t, "DEPTHDATA", h.recv(t, 9))

	h.send(t, "getIR")
	hdr = h.recv(t, 4)
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32([]byte(hdr)))
	assert.Equal(t, protocol.StatusInvalid, h.recv(t, 7))
	h.send(t, "kill")

	require.NoError(t, wait(t, done).err)
}

func TestSession_ReadTimeoutDisconnects(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{ReadTimeout: 30 * time.Millisecond})
	done := h.start(context.Background())

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeDisconnected, r.outcome)
}

func TestSession_CancelWhileServing(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.send(t, "getDepth")
	h.recv(t, 9)
	cancel()

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeCancelled, r.outcome)
	assert.Equal(t, Terminated, h.sess.State())
	assert.False(t, h.led.On())
	assert.Equal(t, 1, h.src.Released())
}

func TestSession_AcceptTimeoutRestarts(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{AcceptTimeout: 20 * time.Millisecond})
	h.srv.Hold = true

	r := wait(t, h.start(context.Background()))
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeRestart, r.outcome)
	assert.Empty(t, h.led.Transitions())
	assert.True(t, h.srv.Closed())
}

func TestSession_CancelWhileAccepting(t *testing.T) {
	h := newHarness(t, depthOnly(), Options{})
	h.srv.Hold = true
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeCancelled, r.outcome)
	assert.Equal(t, int64(0), h.metrics.StartupFailures())
}

func TestSession_StartupFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		setup  func(h *harness)
		stage  sserr.Stage
		code   int
		calls  []string
		source *fakeSource
	}{
		{
			name:   "sensor",
			source: &fakeSource{AcquireErr: sensor.ErrMandatoryModality},
			stage:  sserr.StageSensor,
			code:   sserr.ExitSensor,
			calls:  nil,
		},
		{
			name:   "bind",
			source: depthOnly(),
			setup:  func(h *harness) { h.srv.BindErr = boom },
			stage:  sserr.StageBind,
			code:   sserr.ExitSocket,
			calls:  []string{"bind"},
		},
		{
			name:   "listen",
			source: depthOnly(),
			setup:  func(h *harness) { h.srv.ListenErr = boom },
			stage:  sserr.StageListen,
			code:   sserr.ExitConnect,
			calls:  []string{"bind", "listen"},
		},
		{
			name:   "pre-staged socket error",
			source: depthOnly(),
			setup: func(h *harness) {
				h.srv.BindErr = sserr.Startup(sserr.StageSockopt, boom)
			},
			stage: sserr.StageSockopt,
			code:  sserr.ExitSocket,
			calls: []string{"bind"},
		},
		{
			name:   "indicator",
			source: depthOnly(),
			setup:  func(h *harness) { h.led.SetErr = boom },
			stage:  sserr.StageIndicator,
			code:   sserr.ExitIndicator,
			calls:  []string{"bind", "listen", "accept"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.source, Options{})
			if tt.setup != nil {
				tt.setup(h)
			}

			r := wait(t, h.start(context.Background()))
			require.Error(t, r.err)
			assert.Equal(t, OutcomeNone, r.outcome)

			stage, ok := sserr.StageOf(r.err)
			require.True(t, ok, "got %v", r.err)
			assert.Equal(t, tt.stage, stage)
			assert.Equal(t, tt.code, sserr.ExitCode(r.err))

			assert.Equal(t, tt.calls, h.srv.Calls())
			assert.Equal(t, 1, h.src.Released())
			assert.True(t, h.srv.Closed())
			assert.False(t, h.led.On())
			assert.Equal(t, Idle, h.sess.State())
			assert.Equal(t, int64(1), h.metrics.StartupFailures())
		})
	}
}

func TestNew_AssignsID(t *testing.T) {
	logger := util.NewLoggerTo(io.Discard, 0, true)
	a := New(depthOnly(), newPipeServer(), nil, logger, nil, Options{})
	b := New(depthOnly(), newPipeServer(), nil, logger, nil, Options{})

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
	assert.IsType(t, indicator.Nop{}, a.Indicator)
	assert.Equal(t, Idle, a.State())
}
