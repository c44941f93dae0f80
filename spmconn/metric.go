package spmconn

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// RequestCount indicates the number of request frames written.
	RequestCount atomic.Uint64
	// ResponseCount indicates the number of response frames decoded.
	ResponseCount atomic.Uint64
	// RemoteFaultCount indicates the number of responses carrying a non-zero error status.
	RemoteFaultCount atomic.Uint64
	// FramingErrCount indicates the number of responses that could not be decoded.
	FramingErrCount atomic.Uint64
	// TruncationCount indicates the number of responses shorter than their header declares.
	TruncationCount atomic.Uint64
	// ConnErrCount indicates the number of socket failures.
	ConnErrCount atomic.Uint64
	// DiagnosticCount indicates the number of tolerated decode mismatches.
	DiagnosticCount atomic.Uint64
	// DrainedBytes indicates the number of stale bytes discarded by Drain.
	DrainedBytes atomic.Uint64

	commands *xsync.MapOf[string, *atomic.Uint64]
}

func newConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{commands: xsync.NewMapOf[string, *atomic.Uint64]()}
}

// CommandCount returns how many requests were sent for the named command.
func (m *ConnectionMetrics) CommandCount(name string) uint64 {
	counter, ok := m.commands.Load(name)
	if !ok {
		return 0
	}

	return counter.Load()
}

// CommandCounts returns a snapshot of the per-command request counters.
func (m *ConnectionMetrics) CommandCounts() map[string]uint64 {
	counts := make(map[string]uint64, m.commands.Size())
	m.commands.Range(func(name string, counter *atomic.Uint64) bool {
		counts[name] = counter.Load()
		return true
	})

	return counts
}

func (m *ConnectionMetrics) incRequestCount(name string) {
	m.RequestCount.Add(1)
	counter, _ := m.commands.LoadOrCompute(name, func() *atomic.Uint64 { return new(atomic.Uint64) })
	counter.Add(1)
}

func (m *ConnectionMetrics) incResponseCount() {
	m.ResponseCount.Add(1)
}

func (m *ConnectionMetrics) incRemoteFaultCount() {
	m.RemoteFaultCount.Add(1)
}

func (m *ConnectionMetrics) incFramingErrCount() {
	m.FramingErrCount.Add(1)
}

func (m *ConnectionMetrics) incTruncationCount() {
	m.TruncationCount.Add(1)
}

func (m *ConnectionMetrics) incConnErrCount() {
	m.ConnErrCount.Add(1)
}

func (m *ConnectionMetrics) incDiagnosticCount() {
	m.DiagnosticCount.Add(1)
}

func (m *ConnectionMetrics) addDrainedBytes(n int) {
	m.DrainedBytes.Add(uint64(n)) //nolint:gosec
}
