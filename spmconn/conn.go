package spmconn

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/internal/util"
	"github.com/jirkagzw/Nanonis-Light-interface/logger"
	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// Connection is a client connection to a Nanonis SPM control server.
//
// All methods are safe for concurrent use. Exchanges are serialized: a second caller blocks until
// the in-flight exchange has finished.
type Connection struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	// mu serializes exchanges.
	mu sync.Mutex
	// connMu guards conn. Close takes only connMu so it can interrupt a blocked read.
	connMu sync.Mutex
	conn   net.Conn

	opState   AtomicOpState
	callState atomicCallState
	reader    *frameReader
	metrics   *ConnectionMetrics
}

// NewConnection creates a new Connection with the given configuration. The socket is not opened
// until Open is called.
func NewConnection(cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	cfg.mu.RLock()
	l := cfg.logger
	cfg.mu.RUnlock()

	c := &Connection{
		cfg:     cfg,
		reader:  cfg.frameReader(),
		metrics: newConnectionMetrics(),
	}
	c.logger = l.With("host", cfg.Host(), "port", cfg.Port())

	return c, nil
}

// GetLogger returns the logger of the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics of the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return c.metrics
}

// State returns the phase of the exchange currently in flight.
func (c *Connection) State() CallState {
	return c.callState.Get()
}

// OpState returns the lifecycle state of the socket.
func (c *Connection) OpState() OpState {
	return c.opState.Get()
}

// Open dials the control server.
func (c *Connection) Open(ctx context.Context) error {
	if c.opState.IsOpened() {
		return nil
	}
	if !c.opState.ToOpening() {
		return ErrConnBusy
	}

	address := net.JoinHostPort(c.cfg.Host(), strconv.Itoa(c.cfg.Port()))
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	c.cfg.mu.RLock()
	timeout := c.cfg.dialTimeout
	c.cfg.mu.RUnlock()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		c.logger.Debug("failed to dial to control server", "method", "Open", "error", err)
		c.opState.ToClosing()
		c.opState.ToClosed()
		c.metrics.incConnErrCount()

		return &nanonis.ConnectionError{Op: "dial", Addr: address, Err: err}
	}

	c.connMu.Lock()
	if !c.opState.ToOpened() {
		c.connMu.Unlock()
		c.logger.Warn("failed to set connection state to opened", "opState", c.opState.String())
		_ = conn.Close()

		return ErrConnBusy
	}
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Debug("connected to the remote",
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
		"method", "Open",
	)

	return nil
}

// Close closes the socket. An exchange blocked on the socket fails with a *nanonis.ConnectionError.
// Closing a closed connection is a no-op.
func (c *Connection) Close() error {
	return c.closeConn()
}

func (c *Connection) closeConn() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.opState.IsClosed() {
		return nil
	}
	if !c.opState.ToClosing() {
		return ErrConnBusy
	}
	defer c.opState.ToClosed()

	if c.conn == nil {
		return nil
	}

	c.logger.Debug("close TCP connection", "method", "closeConn")
	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Error("failed to close TCP connection", "method", "closeConn", "error", err)
		return &nanonis.ConnectionError{Op: "close", Err: err}
	}

	return nil
}

// Exchange sends a command with the response flag set, reads the response and decodes it against schema.
//
// A non-zero error status in the response is returned as data in Response.Error, not as an error.
// Socket failures close the connection and are returned as *nanonis.ConnectionError. A response
// that leaves the socket at an unknown position in the stream, e.g. a rejected header or a frame
// cut short in ReadSingle mode, also closes the connection; Open must be called before the next
// exchange.
func (c *Connection) Exchange(name string, args []wire.Arg, schema *wire.Schema, opts ...CallOption) (*nanonis.Response, error) {
	callOpts := c.callOptions(opts)

	frame, err := nanonis.EncodeRequest(name, true, args...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.callState.Set(IdleState)

	conn, err := c.write(name, frame)
	if err != nil {
		return nil, err
	}

	c.callState.Set(AwaitingResponseState)
	raw, err := c.reader.ReadFrame(conn)
	if err != nil {
		c.handleErr(name, err)
		c.abandon(name, err)

		return nil, err
	}

	c.callState.Set(DecodingState)
	resp, err := nanonis.DecodeResponse(raw, schema, wire.DecodeOptions{
		Strict:  callOpts.strict,
		Sink:    callOpts.sink,
		Command: name,
	})
	if err != nil {
		c.handleErr(name, err)
		if !frameComplete(raw) {
			c.abandon(name, err)
		}

		return nil, err
	}

	c.metrics.incResponseCount()
	if resp.Header.Name != name {
		c.logger.Warn("response names another command", "method", "Exchange", "command", name, "response", resp.Header.Name)
	}
	if !resp.Error.OK() {
		c.metrics.incRemoteFaultCount()
	}

	c.logResponse(callOpts.verbose, name, resp)

	return resp, nil
}

// Send writes a command with the response flag cleared and does not read anything.
func (c *Connection) Send(name string, args ...wire.Arg) error {
	frame, err := nanonis.EncodeRequest(name, false, args...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.callState.Set(IdleState)

	_, err = c.write(name, frame)

	return err
}

// getConn returns the open socket or nil.
func (c *Connection) getConn() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.opState.IsOpened() {
		return nil
	}

	return c.conn
}

// write sends frame in a single write and returns the socket it was written to. The caller must hold c.mu.
func (c *Connection) write(name string, frame []byte) (net.Conn, error) {
	conn := c.getConn()
	if conn == nil {
		return nil, &nanonis.ConnectionError{Op: "write", Err: nanonis.ErrNotConnected}
	}

	c.callState.Set(SendingState)
	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("send command", "method", "write", "command", name, "size", len(frame))
	}

	if _, err := conn.Write(frame); err != nil {
		cerr := connError("write request", conn, err)
		c.handleErr(name, cerr)

		return nil, cerr
	}
	c.metrics.incRequestCount(name)

	return conn, nil
}

// Drain discards bytes that are already waiting on the socket, e.g. the response of a command sent
// with Send. It returns the number of discarded bytes once no byte arrives within the drain timeout.
func (c *Connection) Drain() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn := c.getConn()
	if conn == nil {
		return 0, &nanonis.ConnectionError{Op: "drain", Err: nanonis.ErrNotConnected}
	}

	c.cfg.mu.RLock()
	timeout := c.cfg.drainTimeout
	bufSize := c.cfg.readBufferSize
	c.cfg.mu.RUnlock()

	n, err := util.DrainConn(conn, timeout, bufSize)
	c.metrics.addDrainedBytes(n)
	if err != nil {
		cerr := connError("drain", conn, err)
		c.handleErr("", cerr)

		return n, cerr
	}
	if n > 0 {
		c.logger.Debug("discarded stale bytes", "method", "Drain", "size", n)
	}

	return n, nil
}

// handleErr counts err and closes the socket on connection errors.
func (c *Connection) handleErr(name string, err error) {
	var (
		connErr    *nanonis.ConnectionError
		truncErr   *nanonis.TruncationError
		framingErr *wire.FramingError
	)

	switch {
	case errors.As(err, &connErr):
		c.metrics.incConnErrCount()
		c.logger.Error("connection failed", "method", "Exchange", "command", name, "error", err)
		_ = c.closeConn()
	case errors.As(err, &truncErr):
		c.metrics.incTruncationCount()
		c.logger.Warn("truncated response", "method", "Exchange", "command", name, "error", err)
	case errors.As(err, &framingErr), errors.Is(err, nanonis.ErrTrailingBytes), errors.Is(err, ErrBodyTooLarge):
		c.metrics.incFramingErrCount()
		c.logger.Warn("malformed response", "method", "Exchange", "command", name, "error", err)
	default:
		c.logger.Error("exchange failed", "method", "Exchange", "command", name, "error", err)
	}
}

// abandon closes the socket after a read that did not consume exactly one frame. Unread bytes of
// that frame would otherwise be taken as the next response.
func (c *Connection) abandon(name string, err error) {
	if c.opState.IsClosed() {
		return
	}

	c.logger.Warn("response stream out of sync, closing connection", "method", "Exchange", "command", name, "error", err)
	_ = c.closeConn()
}

// frameComplete reports whether raw holds the whole frame its header declares.
func frameComplete(raw []byte) bool {
	h, err := nanonis.DecodeHeader(raw)
	if err != nil {
		return false
	}

	return len(raw) >= h.FrameSize()
}

func (c *Connection) logResponse(verbose bool, name string, resp *nanonis.Response) {
	if !verbose && c.logger.Level() != logger.DebugLevel {
		return
	}

	kv := []any{
		"method", "Exchange",
		"command", name,
		"body_size", resp.Header.BodySize,
		"values", formatValues(resp.Values),
		"status", resp.Error.Status,
	}
	if !resp.Error.OK() {
		kv = append(kv, "description", resp.Error.Description)
	}

	if verbose {
		c.logger.Info("response received", kv...)
	} else {
		c.logger.Debug("response received", kv...)
	}
}

func formatValues(values []wire.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}

	return out
}
