// Package transport exposes exactly one accepted TCP connection to the
// session layer.  A Server is single-use: bind, listen, accept one
// client, close.  The next session creates a fresh Server.
//
// The listening socket stays open while its client is served, so the
// kernel still completes handshakes for other clients and queues them
// in the backlog.  Nothing accepts them; Close resets them.  A client
// that reconnects must wait until the previous connection is closed by
// the server, not just by itself.
package transport

import (
	"context"
	"fmt"
	"net"

	sserr "sensorstream/internal/errors"
	"sensorstream/util"
)

// DefaultBacklog is the listen queue length.
const DefaultBacklog = 5

// Server owns a listening socket and at most one accepted connection.
type Server struct {
	Port    int
	Backlog int
	Logger  *util.Logger

	sock     *boundSocket
	listener net.Listener
	conn     net.Conn
}

// NewServer returns an unbound server for port on all IPv4 interfaces.
func NewServer(port, backlog int, logger *util.Logger) *Server {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Server{Port: port, Backlog: backlog, Logger: logger}
}

// Bind creates the socket, enables address reuse and binds it.  Each
// step fails with its own *errors.StartupError stage.
func (s *Server) Bind() error {
	if s.sock != nil || s.listener != nil {
		return sserr.Startup(sserr.StageBind, sserr.ErrAlreadyBound)
	}

	s.Logger.Debug("creating socket for %s", util.FormatAddr("0.0.0.0", s.Port))
	sock, err := bindSocket(s.Port)
	if err != nil {
		return err
	}
	s.sock = sock
	return nil
}

// Listen puts the bound socket into the listening state.
func (s *Server) Listen() error {
	if s.sock == nil {
		return sserr.Startup(sserr.StageListen, sserr.ErrNotBound)
	}
	ln, err := s.sock.listen(s.Backlog)
	if err != nil {
		return sserr.Startup(sserr.StageListen, sserr.Wrap("listen", s.sock.String(), err))
	}
	s.listener = ln
	s.Logger.Verbose("listening on %s", ln.Addr())
	return nil
}

// Accept blocks until one client connects.  Cancelling ctx closes the
// listener and returns ctx.Err().
func (s *Server) Accept(ctx context.Context) (net.Conn, error) {
	if s.listener == nil {
		return nil, sserr.Startup(sserr.StageAccept, sserr.ErrNotListening)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ln := s.listener
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.Logger.Verbose("waiting for connection...")
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, sserr.Startup(sserr.StageAccept, sserr.Wrap("accept", ln.Addr().String(), err))
	}

	s.conn = conn
	s.Logger.Info("client connected from %s", conn.RemoteAddr())
	return conn, nil
}

// Addr returns the bound address, or nil before Bind.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	if s.sock != nil {
		return s.sock.addr()
	}
	return nil
}

// Close closes the listening socket, then the accepted connection.  It
// is idempotent.
func (s *Server) Close() error {
	var errs []error
	if s.listener != nil {
		if err := s.listener.Close(); !util.IsHarmless(err) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
		s.listener = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); !util.IsHarmless(err) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		s.conn = nil
	}
	if s.sock != nil {
		if err := s.sock.close(); err != nil {
			errs = append(errs, fmt.Errorf("close socket: %w", err))
		}
		s.sock = nil
	}
	return sserr.Join(errs...)
}
