package textconn

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/logger"
)

// ConnectionConfig represents the configuration parameters for a spectrometer text connection.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host specifies the host of the spectrometer server.
	host string

	// port specifies the TCP port of the spectrometer server.
	port int

	// terminator ends every command and reply.
	// Defaults to "\n".
	terminator string

	// readBufferSize is the size of a single socket read.
	// Defaults to 1 MiB.
	readBufferSize int

	// maxResponseSize bounds the bytes accumulated while waiting for the terminator.
	// Defaults to 16 MiB.
	maxResponseSize int

	// dialTimeout defines the timeout for establishing the TCP connection. It should be between 1 and 30 seconds.
	// Defaults to 3 seconds.
	dialTimeout time.Duration

	// replyTimeout bounds the wait for a reply. Zero waits indefinitely.
	// Defaults to 0.
	replyTimeout time.Duration

	// drainTimeout is how long Drain waits for stale bytes.
	// Defaults to 1 second.
	drainTimeout time.Duration

	logger logger.Logger
}

// NewConnectionConfig creates a new text connection configuration with the given host, port number,
// and optional functional options.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		terminator:      "\n",
		readBufferSize:  1 << 20,
		maxResponseSize: 16 << 20,
		dialTimeout:     3 * time.Second,
		drainTimeout:    1 * time.Second,
		logger:          logger.GetLogger(),
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

// Terminator returns the command and reply terminator.
func (cfg *ConnectionConfig) Terminator() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.terminator
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return f(cfg)
}

func withRemoteHost(host string) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.Trim(host, ".")
		if host == "" {
			return errors.New("invalid host")
		}
		if _, err := net.LookupHost(host); err != nil {
			return errors.New("invalid host")
		}
		cfg.host = host

		return nil
	})
}

func withPort(port int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithTerminator sets the command and reply terminator.
func WithTerminator(term string) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if term == "" {
			return errors.New("terminator is empty")
		}
		cfg.terminator = term

		return nil
	})
}

// WithReadBufferSize sets the size of a single socket read. It should be between 1 byte and 256 MiB.
func WithReadBufferSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size < 1 || size > 256<<20 {
			return errors.New("read buffer size out of range [1, 256MiB]")
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithMaxResponseSize bounds the bytes accumulated while waiting for the terminator.
func WithMaxResponseSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size < 1 {
			return errors.New("max response size should be positive")
		}
		cfg.maxResponseSize = size

		return nil
	})
}

// WithDialTimeout sets the timeout for establishing the TCP connection. It should be between 1 and 30 seconds.
func WithDialTimeout(val time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("dial timeout out of range [1, 30]")
		}
		cfg.dialTimeout = val

		return nil
	})
}

// WithReplyTimeout bounds the wait for a reply. Zero disables the timeout.
func WithReplyTimeout(val time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if val < 0 {
			return errors.New("reply timeout should not be negative")
		}
		cfg.replyTimeout = val

		return nil
	})
}

// WithDrainTimeout sets how long Drain waits for stale bytes. It should be between 1 millisecond and 10 seconds.
func WithDrainTimeout(val time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if val < time.Millisecond || val > 10*time.Second {
			return errors.New("drain timeout out of range [1ms, 10s]")
		}
		cfg.drainTimeout = val

		return nil
	})
}

// WithLogger sets the logger of the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
