package textconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/internal/util"
	"github.com/jirkagzw/Nanonis-Light-interface/logger"
	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
)

// Connection is a client connection to a spectrometer text server.
//
// Send, ReadUntil and Drain each take the connection lock; Query holds it across the send and
// the read so that concurrent queries never interleave their replies.
type Connection struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	mu   sync.Mutex
	conn net.Conn

	terminator      string
	readBufferSize  int
	maxResponseSize int
	dialTimeout     time.Duration
	replyTimeout    time.Duration
	drainTimeout    time.Duration
}

// NewConnection creates a new Connection with the given configuration. The socket is not opened
// until Open is called.
func NewConnection(cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return &Connection{
		cfg:             cfg,
		logger:          cfg.logger.With("host", cfg.host, "port", cfg.port),
		terminator:      cfg.terminator,
		readBufferSize:  cfg.readBufferSize,
		maxResponseSize: cfg.maxResponseSize,
		dialTimeout:     cfg.dialTimeout,
		replyTimeout:    cfg.replyTimeout,
		drainTimeout:    cfg.drainTimeout,
	}, nil
}

// GetLogger returns the logger of the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// IsOpen reports whether the socket is open.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

func (c *Connection) address() string {
	c.cfg.mu.RLock()
	defer c.cfg.mu.RUnlock()

	return net.JoinHostPort(c.cfg.host, strconv.Itoa(c.cfg.port))
}

// Open dials the spectrometer server. Opening an open connection is a no-op.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	address := c.address()
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		c.logger.Debug("failed to dial to spectrometer", "method", "Open", "error", err)
		return &nanonis.ConnectionError{Op: "dial", Addr: address, Err: err}
	}
	c.conn = conn

	c.logger.Debug("connected to the remote",
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
		"method", "Open",
	)

	return nil
}

// Close closes the socket. Closing a closed connection is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeConn()
}

func (c *Connection) closeConn() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Error("failed to close TCP connection", "method", "closeConn", "error", err)
		return &nanonis.ConnectionError{Op: "close", Err: err}
	}

	return nil
}

// Send writes cmd followed by the terminator in a single write.
func (c *Connection) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(cmd)
}

// ReadUntil reads until the terminator has been received and returns everything read, terminator
// included. An orderly close before the terminator returns the partial reply together with a
// *nanonis.ConnectionError.
func (c *Connection) ReadUntil() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.readUntil()
}

// Query sends cmd and reads its reply.
func (c *Connection) Query(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(cmd); err != nil {
		return "", err
	}

	return c.readUntil()
}

// Drain discards bytes waiting on the socket and returns their count once no byte arrives within
// the drain timeout.
func (c *Connection) Drain() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, &nanonis.ConnectionError{Op: "drain", Err: nanonis.ErrNotConnected}
	}

	n, err := util.DrainConn(c.conn, c.drainTimeout, c.readBufferSize)
	if err != nil {
		return n, c.fail("drain", err)
	}
	if n > 0 {
		c.logger.Debug("discarded stale bytes", "method", "Drain", "size", n)
	}

	return n, nil
}

func (c *Connection) send(cmd string) error {
	if c.conn == nil {
		return &nanonis.ConnectionError{Op: "write", Err: nanonis.ErrNotConnected}
	}

	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("send command", "method", "Send", "command", cmd)
	}

	if _, err := c.conn.Write([]byte(cmd + c.terminator)); err != nil {
		return c.fail("write", err)
	}

	return nil
}

func (c *Connection) readUntil() (string, error) {
	if c.conn == nil {
		return "", &nanonis.ConnectionError{Op: "read", Err: nanonis.ErrNotConnected}
	}

	var deadline time.Time
	if c.replyTimeout > 0 {
		deadline = time.Now().Add(c.replyTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", c.fail("set read deadline", err)
	}

	var acc strings.Builder
	buf := make([]byte, c.readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			// the terminator may straddle two reads
			from := max(acc.Len()-len(c.terminator)+1, 0)
			acc.Write(buf[:n])
			if strings.Contains(acc.String()[from:], c.terminator) {
				reply := acc.String()
				if c.logger.Level() == logger.DebugLevel {
					c.logger.Debug("reply received", "method", "ReadUntil", "reply", reply)
				}

				return reply, nil
			}
			if acc.Len() > c.maxResponseSize {
				// the rest of the reply is still queued and would be read as the next one
				c.logger.Warn("reply exceeds maximum size, closing connection", "method", "ReadUntil", "size", acc.Len())
				_ = c.closeConn()

				return acc.String(), fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, acc.Len())
			}
		}

		switch {
		case err == nil && n == 0:
			return acc.String(), c.fail("read", nanonis.ErrPeerClosed)
		case errors.Is(err, io.EOF):
			return acc.String(), c.fail("read", nanonis.ErrPeerClosed)
		case err != nil:
			return acc.String(), c.fail("read", err)
		}
	}
}

// fail wraps err as a *nanonis.ConnectionError and closes the socket.
func (c *Connection) fail(op string, err error) error {
	cerr := &nanonis.ConnectionError{Op: op, Addr: c.address(), Err: err}
	c.logger.Error("connection failed", "method", op, "error", err)
	_ = c.closeConn()

	return cerr
}
