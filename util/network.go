package util

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// aLongTimeAgo is a deadline that has always already expired; setting it
// on a net.Conn unblocks pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Interrupt forces any blocked Read or Write on conn to return.
func Interrupt(conn net.Conn) {
	conn.SetDeadline(aLongTimeAgo) //nolint:errcheck
}
