package spmconn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
)

// frameReader reads raw response frames from a net.Conn.
//
// frameReader is NOT goroutine-safe. The Connection serializes calls, so only one
// ReadFrame call is active at a time.
type frameReader struct {
	policy       ReadPolicy
	bufSize      int
	maxBodySize  int
	replyTimeout time.Duration
}

// ReadFrame reads one response frame from conn according to the read policy.
//
// In ReadComplete mode the returned slice holds exactly one frame. In ReadSingle mode it holds
// whatever a single read returned, which may be shorter than the frame the header declares.
// Socket errors and an orderly close by the peer are returned as *nanonis.ConnectionError.
func (fr *frameReader) ReadFrame(conn net.Conn) ([]byte, error) {
	var deadline time.Time
	if fr.replyTimeout > 0 {
		deadline = time.Now().Add(fr.replyTimeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, connError("set read deadline", conn, err)
	}

	if fr.policy == ReadSingle {
		return fr.readSingle(conn)
	}

	return fr.readComplete(conn)
}

func (fr *frameReader) readSingle(conn net.Conn) ([]byte, error) {
	buf := make([]byte, fr.bufSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			err = nanonis.ErrPeerClosed
		}
		return nil, connError("read response", conn, err)
	}

	return buf[:n], nil
}

func (fr *frameReader) readComplete(conn net.Conn) ([]byte, error) {
	header := make([]byte, nanonis.HeaderSize)
	if err := readFull(conn, header); err != nil {
		return nil, connError("read response header", conn, err)
	}

	h, err := nanonis.DecodeHeader(header)
	if err != nil {
		return nil, err
	}
	if int(h.BodySize) > fr.maxBodySize {
		return nil, fmt.Errorf("%w: %s declares %d bytes, maximum is %d", ErrBodyTooLarge, h.Name, h.BodySize, fr.maxBodySize)
	}

	frame := make([]byte, h.FrameSize())
	copy(frame, header)

	// read the body in chunks of at most bufSize, like a sequence of bounded single reads
	for pos := nanonis.HeaderSize; pos < len(frame); {
		end := min(pos+fr.bufSize, len(frame))
		if err := readFull(conn, frame[pos:end]); err != nil {
			return nil, connError("read response body", conn, fmt.Errorf("%w after %d of %d bytes", err, pos, len(frame)))
		}
		pos = end
	}

	return frame, nil
}

// readFull reads len(buf) bytes. An orderly close before the buffer is full is reported as nanonis.ErrPeerClosed.
func readFull(conn net.Conn, buf []byte) error {
	_, err := io.ReadFull(conn, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nanonis.ErrPeerClosed
	}

	return err
}

func connError(op string, conn net.Conn, err error) *nanonis.ConnectionError {
	addr := ""
	if conn != nil && conn.RemoteAddr() != nil {
		addr = conn.RemoteAddr().String()
	}

	return &nanonis.ConnectionError{Op: op, Addr: addr, Err: err}
}
