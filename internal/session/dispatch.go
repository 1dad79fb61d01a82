package session

import (
	"context"
	"net"
	"time"

	"sensorstream/internal/protocol"
	"sensorstream/internal/sensor"
	"sensorstream/util"
)

// serve runs the command loop on conn until the client stops, kills or
// leaves, or ctx is cancelled.  Commands are handled one at a time; a
// reply is fully written before the next read.
func (s *Session) serve(ctx context.Context, conn net.Conn) Outcome {
	stop := context.AfterFunc(ctx, func() { util.Interrupt(conn) })
	defer stop()

	resp := &protocol.Responder{W: conn, Framed: s.Options.Framed}
	buf := make([]byte, protocol.MaxCommandSize)

	for {
		if s.Options.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.Options.ReadTimeout)) //nolint:errcheck
		}
		// Checked after the deadline update so a concurrent Interrupt
		// is never overwritten unnoticed.
		if ctx.Err() != nil {
			return OutcomeCancelled
		}

		cmd, err := protocol.ReadCommand(conn, buf)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return OutcomeCancelled
			case util.IsTimeout(err):
				s.Logger.Info("client idle for %s, dropping", s.Options.ReadTimeout)
			case err == protocol.ErrClientDisconnected: //nolint:errorlint
				s.Logger.Info("client disconnected")
			default:
				s.Logger.Warn("read: %v", err)
			}
			return OutcomeDisconnected
		}

		if cmd == "" {
			s.Logger.Debug("empty command ignored")
			continue
		}
		s.Metrics.CommandReceived()

		switch cmd {
		case protocol.Kill:
			s.Logger.Info("kill requested")
			return OutcomeTerminate
		case protocol.Stop:
			s.Logger.Info("stop requested")
			return OutcomeRestart
		}

		if !cmd.Known() {
			s.Metrics.UnknownCommand()
			s.Logger.Warn("ignoring unknown command %q", string(cmd))
			continue
		}
		m, _ := cmd.Modality()
		s.replyFrame(ctx, resp, cmd, m)
	}
}

// replyFrame answers one frame request with a payload, INVALID or FAILED.
func (s *Session) replyFrame(ctx context.Context, resp *protocol.Responder, cmd protocol.Command, m sensor.Modality) {
	log := s.Logger.With("modality", m.String())
	log.Debug("%s requested", cmd)

	if !m.Mandatory() && !s.acq.Available(m) {
		s.Metrics.InvalidRequest()
		s.status(log, resp, protocol.StatusInvalid)
		return
	}

	fctx := ctx
	if s.Options.FrameTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.Options.FrameTimeout)
		defer cancel()
	}
	frame, err := s.Source.WaitAndFetch(fctx, m)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.Metrics.FetchFailed()
		log.Warn("frame fetch failed: %v", err)
		s.status(log, resp, protocol.StatusFailed)
		return
	}

	n, err := resp.Payload(frame.Data)
	if err != nil {
		s.Metrics.WriteFailed(err.Error())
		log.Warn("write frame %d: %v (%d of %d bytes sent)", frame.Seq, err, n, len(frame.Data))
		return
	}
	s.Metrics.FrameSent(n)
	log.Debug("wrote frame %d (%d bytes)", frame.Seq, n)
}

func (s *Session) status(log *util.Logger, resp *protocol.Responder, token string) {
	n, err := resp.Status(token)
	if err != nil {
		s.Metrics.WriteFailed(err.Error())
		log.Warn("write %s: %v", token, err)
		return
	}
	s.Metrics.StatusSent(n)
	log.Debug("wrote %s", token)
}
