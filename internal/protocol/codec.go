package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"sensorstream/util"
)

// MaxCommandSize is the command buffer size; one byte stays reserved
// for the terminator.
const MaxCommandSize = 50

// Status tokens.
const (
	StatusFailed  = "FAILED"
	StatusInvalid = "INVALID"
)

// ErrClientDisconnected is returned by ReadCommand when a read yields no
// bytes: the peer closed, reset, or the read deadline passed.
var ErrClientDisconnected = errors.New("client disconnected")

// ReadCommand clears buf, performs one read of at most len(buf)-1 bytes
// and returns the text up to the first NUL.  Trailing CR/LF is dropped
// so that line-oriented tools can drive the server.
func ReadCommand(r io.Reader, buf []byte) (Command, error) {
	if len(buf) < 2 {
		return "", fmt.Errorf("command buffer too small (%d bytes)", len(buf))
	}
	clear(buf)

	n, err := r.Read(buf[:len(buf)-1])
	if n <= 0 {
		if err == nil || util.IsHarmless(err) {
			return "", ErrClientDisconnected
		}
		return "", fmt.Errorf("%w: %w", ErrClientDisconnected, err)
	}

	text := buf[:n]
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	return Command(strings.TrimRight(string(text), "\r\n")), nil
}

// WriteFull writes all of p, continuing after short writes.  It stops at
// the first error and returns the number of bytes written so far.
func WriteFull(w io.Writer, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n, err := w.Write(p)
		total += n
		p = p[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// Responder writes replies to one connection.
type Responder struct {
	W io.Writer
	// Framed prefixes every response with its length as a 4-byte
	// big-endian integer.  Off by default; existing clients expect
	// bare payloads.
	Framed bool
}

// Status writes one of the status tokens.
func (r *Responder) Status(token string) (int, error) {
	return r.write([]byte(token))
}

// Payload writes a frame payload.
func (r *Responder) Payload(p []byte) (int, error) {
	return r.write(p)
}

func (r *Responder) write(p []byte) (int, error) {
	if !r.Framed {
		return WriteFull(r.W, p)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(p)))
	n, err := WriteFull(r.W, hdr[:])
	if err != nil {
		return n, err
	}
	m, err := WriteFull(r.W, p)
	return n + m, err
}
