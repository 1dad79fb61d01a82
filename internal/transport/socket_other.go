//go:build !linux

package transport

import (
	"net"

	sserr "sensorstream/internal/errors"
	"sensorstream/util"
)

// boundSocket on non-Linux hosts lets the runtime create, configure and
// bind the socket in one step; the runtime already sets SO_REUSEADDR on
// listening sockets.
type boundSocket struct {
	ln   net.Listener
	port int
}

func bindSocket(port int) (*boundSocket, error) {
	addr := util.FormatAddr("0.0.0.0", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, sserr.Startup(sserr.StageBind, sserr.Wrap("bind", addr, err))
	}
	return &boundSocket{ln: ln, port: port}, nil
}

func (b *boundSocket) listen(int) (net.Listener, error) {
	if b.ln == nil {
		return nil, sserr.ErrNotBound
	}
	ln := b.ln
	b.ln = nil
	return ln, nil
}

func (b *boundSocket) addr() net.Addr {
	if b.ln != nil {
		return b.ln.Addr()
	}
	return &net.TCPAddr{IP: net.IPv4zero, Port: b.port}
}

func (b *boundSocket) String() string { return b.addr().String() }

func (b *boundSocket) close() error {
	if b.ln == nil {
		return nil
	}
	err := b.ln.Close()
	b.ln = nil
	return err
}
