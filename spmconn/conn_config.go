package spmconn

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/logger"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// ReadPolicy selects how a response frame is read from the socket.
type ReadPolicy int

const (
	// ReadComplete reads the header and then loops until the declared body has arrived.
	ReadComplete ReadPolicy = iota
	// ReadSingle performs one bounded read and reports short frames as truncated.
	ReadSingle
)

func (p ReadPolicy) String() string {
	switch p {
	case ReadComplete:
		return "complete"
	case ReadSingle:
		return "single"
	default:
		return "unknown"
	}
}

// ParseReadPolicy parses "complete" or "single".
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete", "":
		return ReadComplete, nil
	case "single":
		return ReadSingle, nil
	default:
		return ReadComplete, errors.New("read policy should be complete or single")
	}
}

const (
	// DefaultReadBufferSize is the default read buffer size, 1 MiB.
	DefaultReadBufferSize = 1 << 20
	// DefaultMaxBodySize is the default upper bound of a response body, 64 MiB.
	DefaultMaxBodySize = 64 << 20
)

// ConnectionConfig represents the configuration parameters for a Nanonis SPM connection.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host specifies the host of the control server.
	host string

	// port specifies the TCP port of the control server.
	port int

	// readBufferSize is the size of a single socket read. ReadSingle never reads more than this.
	// Defaults to 1 MiB.
	readBufferSize int

	// readPolicy selects how responses are read.
	// Defaults to ReadComplete.
	readPolicy ReadPolicy

	// maxBodySize bounds the body size accepted from a response header in ReadComplete mode.
	// Defaults to 64 MiB.
	maxBodySize int

	// dialTimeout defines the timeout for establishing the TCP connection. It should be between 1 and 30 seconds.
	// Defaults to 3 seconds.
	dialTimeout time.Duration

	// replyTimeout bounds the wait for a response frame. Zero waits indefinitely, which is needed
	// by commands that block on the instrument, e.g. Scan.WaitEndOfScan.
	// Defaults to 0.
	replyTimeout time.Duration

	// drainTimeout is how long Drain waits for stale bytes before it gives up.
	// Defaults to 1 second.
	drainTimeout time.Duration

	// strictDecode turns tolerated size mismatches into framing errors.
	// Defaults to false.
	strictDecode bool

	// diagSink receives tolerated decode mismatches of every call.
	diagSink wire.DiagnosticSink

	// logger provides a logger instance for connection events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a new SPM connection configuration with the given host, port number,
// and optional functional options.
//
// Returns a pointer to the initialized ConnectionConfig and an error if any occurred during the configuration process.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		readBufferSize: DefaultReadBufferSize,
		readPolicy:     ReadComplete,
		maxBodySize:    DefaultMaxBodySize,
		dialTimeout:    3 * time.Second,
		drainTimeout:   1 * time.Second,
		logger:         logger.GetLogger(),
	}

	if err := withRemoteHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Host returns the host of the control server.
func (cfg *ConnectionConfig) Host() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.host
}

// Port returns the TCP port of the control server.
func (cfg *ConnectionConfig) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

// ReadPolicy returns the configured read policy.
func (cfg *ConnectionConfig) ReadPolicy() ReadPolicy {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.readPolicy
}

func (cfg *ConnectionConfig) frameReader() *frameReader {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return &frameReader{
		policy:       cfg.readPolicy,
		bufSize:      cfg.readBufferSize,
		maxBodySize:  cfg.maxBodySize,
		replyTimeout: cfg.replyTimeout,
	}
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{
		name:      name,
		applyFunc: f,
	}
}

// withRemoteHost sets the host of the control server. It accepts an IP address or a resolvable host name.
func withRemoteHost(host string) ConnOption {
	return newConnOptFunc("withRemoteHost", func(cfg *ConnectionConfig) error {
		// Check if it's a valid IP address
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		// If not an IP, check if it's a valid domain name
		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if host == "" {
			return errors.New("invalid host")
		}
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}

		cfg.port = port

		return nil
	})
}

// WithReadBufferSize sets the size of a single socket read. It should be between 1 KiB and 256 MiB.
func WithReadBufferSize(size int) ConnOption {
	return newConnOptFunc("WithReadBufferSize", func(cfg *ConnectionConfig) error {
		if size < 1<<10 || size > 256<<20 {
			return errors.New("read buffer size out of range [1KiB, 256MiB]")
		}

		cfg.readBufferSize = size

		return nil
	})
}

// WithReadPolicy sets how response frames are read.
func WithReadPolicy(policy ReadPolicy) ConnOption {
	return newConnOptFunc("WithReadPolicy", func(cfg *ConnectionConfig) error {
		if policy != ReadComplete && policy != ReadSingle {
			return errors.New("invalid read policy")
		}

		cfg.readPolicy = policy

		return nil
	})
}

// WithMaxBodySize sets the largest response body accepted in ReadComplete mode. It should be between 8 bytes and 2 GiB.
func WithMaxBodySize(size int) ConnOption {
	return newConnOptFunc("WithMaxBodySize", func(cfg *ConnectionConfig) error {
		if size < 8 || int64(size) > 1<<31-1 {
			return errors.New("max body size out of range [8, 2GiB)")
		}

		cfg.maxBodySize = size

		return nil
	})
}

// WithDialTimeout sets the timeout for establishing the TCP connection. It should be between 1 and 30 seconds.
func WithDialTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithDialTimeout", func(cfg *ConnectionConfig) error {
		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("dial timeout out of range [1, 30]")
		}

		cfg.dialTimeout = val

		return nil
	})
}

// WithReplyTimeout bounds the wait for a response frame. Zero disables the timeout.
func WithReplyTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithReplyTimeout", func(cfg *ConnectionConfig) error {
		if val < 0 {
			return errors.New("reply timeout should not be negative")
		}

		cfg.replyTimeout = val

		return nil
	})
}

// WithDrainTimeout sets how long Drain waits for stale bytes. It should be between 1 millisecond and 10 seconds.
func WithDrainTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithDrainTimeout", func(cfg *ConnectionConfig) error {
		if val < time.Millisecond || val > 10*time.Second {
			return errors.New("drain timeout out of range [1ms, 10s]")
		}

		cfg.drainTimeout = val

		return nil
	})
}

// WithStrictDecode makes every call reject tolerated size mismatches.
func WithStrictDecode(val bool) ConnOption {
	return newConnOptFunc("WithStrictDecode", func(cfg *ConnectionConfig) error {
		cfg.strictDecode = val
		return nil
	})
}

// WithDiagnosticSink sets the sink that receives tolerated decode mismatches of every call.
func WithDiagnosticSink(sink wire.DiagnosticSink) ConnOption {
	return newConnOptFunc("WithDiagnosticSink", func(cfg *ConnectionConfig) error {
		cfg.diagSink = sink
		return nil
	})
}

// WithLogger sets the logger of the connection.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}

		cfg.logger = l

		return nil
	})
}
