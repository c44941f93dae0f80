package spmconn

import (
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// CallOption configures a single Exchange call.
type CallOption func(*callOptions)

type callOptions struct {
	strict  bool
	verbose bool
	sinks   []wire.DiagnosticSink
	sink    wire.DiagnosticSink
}

// WithStrict rejects tolerated size mismatches for this call.
func WithStrict() CallOption {
	return func(o *callOptions) { o.strict = true }
}

// WithCallDiagnostics adds a sink that receives the tolerated mismatches of this call.
func WithCallDiagnostics(sink wire.DiagnosticSink) CallOption {
	return func(o *callOptions) { o.sinks = append(o.sinks, sink) }
}

// WithVerbose logs the decoded response at info level instead of debug level.
func WithVerbose() CallOption {
	return func(o *callOptions) { o.verbose = true }
}

func (c *Connection) callOptions(opts []CallOption) callOptions {
	c.cfg.mu.RLock()
	o := callOptions{strict: c.cfg.strictDecode}
	o.sinks = append(o.sinks, c.cfg.diagSink)
	c.cfg.mu.RUnlock()

	for _, opt := range opts {
		opt(&o)
	}

	counter := wire.DiagnosticFunc(func(wire.Diagnostic) { c.metrics.incDiagnosticCount() })
	o.sink = wire.MultiSink(append(o.sinks, counter, wire.LogSink(c.logger))...)

	return o
}
