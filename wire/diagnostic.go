package wire

import (
	"fmt"
	"sync"

	"github.com/jirkagzw/Nanonis-Light-interface/logger"
)

// DiagKind classifies a tolerated decoding anomaly.
type DiagKind int

const (
	// DiagSchemaMismatch reports a string or string array whose declared byte length did not
	// match the bytes that were actually available.
	DiagSchemaMismatch DiagKind = iota + 1
	// DiagTrailingBytes reports body bytes left over after the schema and the error tail were decoded.
	DiagTrailingBytes
)

func (k DiagKind) String() string {
	switch k {
	case DiagSchemaMismatch:
		return "schema_mismatch"
	case DiagTrailingBytes:
		return "trailing_bytes"
	default:
		return "unknown"
	}
}

// Diagnostic describes a non-fatal inconsistency found while decoding.
type Diagnostic struct {
	Kind     DiagKind
	Command  string
	Position int
	Tag      Tag
	Expected int
	Actual   int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: command=%q field=%d (%s) expected=%d actual=%d",
		d.Kind, d.Command, d.Position, d.Tag, d.Expected, d.Actual)
}

// DiagnosticSink receives diagnostics reported while decoding.
// Implementations must be safe for concurrent use if shared between connections.
type DiagnosticSink interface {
	Report(d Diagnostic)
}

// DiagnosticFunc adapts a function to a DiagnosticSink.
type DiagnosticFunc func(d Diagnostic)

func (f DiagnosticFunc) Report(d Diagnostic) { f(d) }

// Recorder is a DiagnosticSink that keeps every reported diagnostic.
type Recorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

// Diagnostics returns a copy of the recorded diagnostics.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Diagnostic(nil), r.diags...)
}

// Reset drops all recorded diagnostics.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.diags = nil
	r.mu.Unlock()
}

// LogSink returns a DiagnosticSink that logs every diagnostic at warn level.
func LogSink(l logger.Logger) DiagnosticSink {
	return DiagnosticFunc(func(d Diagnostic) {
		l.Warn("tolerated decode mismatch",
			"kind", d.Kind.String(),
			"command", d.Command,
			"field", d.Position,
			"tag", d.Tag.String(),
			"expected", d.Expected,
			"actual", d.Actual,
		)
	})
}

// MultiSink fans a diagnostic out to every non-nil sink.
func MultiSink(sinks ...DiagnosticSink) DiagnosticSink {
	return DiagnosticFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}
