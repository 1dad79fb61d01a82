//go:build linux

package transport

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	sserr "sensorstream/internal/errors"
	"sensorstream/util"
)

// boundSocket is a raw IPv4 stream socket between bind and listen.
// Once handed to the runtime as a net.Listener, fd is -1.
type boundSocket struct {
	fd   int
	port int
}

func bindSocket(port int) (*boundSocket, error) {
	addr := util.FormatAddr("0.0.0.0", port)

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, sserr.Startup(sserr.StageSocket,
			sserr.Wrap("socket", addr, os.NewSyscallError("socket", err)))
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, sserr.Startup(sserr.StageSockopt,
			sserr.Wrap("setsockopt", addr, os.NewSyscallError("setsockopt", err)))
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, sserr.Startup(sserr.StageBind,
			sserr.Wrap("bind", addr, os.NewSyscallError("bind", err)))
	}

	return &boundSocket{fd: fd, port: port}, nil
}

func (b *boundSocket) listen(backlog int) (net.Listener, error) {
	if b.fd < 0 {
		return nil, sserr.ErrNotBound
	}
	if err := unix.Listen(b.fd, backlog); err != nil {
		return nil, os.NewSyscallError("listen", err)
	}

	// FileListener dups the descriptor; the original is closed with f.
	f := os.NewFile(uintptr(b.fd), "sensorstream-listener")
	b.fd = -1
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return ln, nil
}

func (b *boundSocket) addr() net.Addr {
	if b.fd >= 0 {
		if sa, err := unix.Getsockname(b.fd); err == nil {
			if in4, ok := sa.(*unix.SockaddrInet4); ok {
				return &net.TCPAddr{IP: net.IP(in4.Addr[:]), Port: in4.Port}
			}
		}
	}
	return &net.TCPAddr{IP: net.IPv4zero, Port: b.port}
}

func (b *boundSocket) String() string { return b.addr().String() }

func (b *boundSocket) close() error {
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}
