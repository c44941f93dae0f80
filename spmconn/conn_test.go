package spmconn

import (
	"bytes"
	"context"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/logger"
	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T, server *fakeServer, opts ...ConnOption) *Connection {
	t.Helper()

	cfg, err := NewConnectionConfig("127.0.0.1", server.port(), opts...)
	require.NoError(t, err)

	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Open(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func biasReply(t *testing.T, name string, bias float32) []byte {
	t.Helper()

	raw, err := nanonis.EncodeResponse(name, nanonis.ErrorRecord{}, wire.Arg{Value: bias, Tag: wire.Float32})
	require.NoError(t, err)

	return raw
}

func TestConnection_Exchange(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return biasReply(t, req.header.Name, 0.25)
	})
	conn := newTestConn(t, server)
	require.Equal(OpenedState, conn.OpState())

	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	require.True(resp.Error.OK())

	bias, err := resp.Value(0).Float()
	require.NoError(err)
	require.InDelta(0.25, bias, 0)

	reqs := server.received()
	require.Len(reqs, 1)
	require.Equal("Bias.Get", reqs[0].header.Name)
	require.True(reqs[0].header.WantResponse)
	require.Empty(reqs[0].body)

	require.Equal(IdleState, conn.State())
	require.Equal(uint64(1), conn.GetMetrics().RequestCount.Load())
	require.Equal(uint64(1), conn.GetMetrics().ResponseCount.Load())
	require.Equal(uint64(1), conn.GetMetrics().CommandCount("Bias.Get"))
}

func TestConnection_ExchangeEncodesArguments(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		raw, _ := nanonis.EncodeResponse(req.header.Name, nanonis.ErrorRecord{})
		return raw
	})
	conn := newTestConn(t, server)

	resp, err := conn.Exchange("Bias.Set", []wire.Arg{{Value: float32(-1), Tag: wire.Float32}}, wire.MustSchema())
	require.NoError(err)
	require.Empty(resp.Values)

	reqs := server.received()
	require.Len(reqs, 1)
	require.Equal(int32(4), reqs[0].header.BodySize)
	require.Equal([]byte{0xBF, 0x80, 0x00, 0x00}, reqs[0].body)
}

func TestConnection_RemoteFaultIsData(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		raw, _ := nanonis.EncodeResponse(req.header.Name, nanonis.ErrorRecord{Status: 1, Description: "bad command"},
			wire.Arg{Value: float32(0), Tag: wire.Float32})
		return raw
	})
	conn := newTestConn(t, server)

	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	require.Equal(nanonis.ErrorRecord{Status: 1, Description: "bad command"}, resp.Error)

	var remoteErr *nanonis.RemoteError
	require.ErrorAs(resp.Err(), &remoteErr)
	require.Equal("Bias.Get", remoteErr.Command)
	require.Equal(uint64(1), conn.GetMetrics().RemoteFaultCount.Load())
}

func largeReply(t *testing.T, name string, n int) []byte {
	t.Helper()

	values := make([]float32, n)
	for i := range values {
		values[i] = float32(i)
	}
	raw, err := nanonis.EncodeResponse(name, nanonis.ErrorRecord{},
		wire.Arg{Value: n, Tag: wire.Int32},
		wire.Arg{Value: values, Tag: wire.Array1D(wire.Float32)},
	)
	require.NoError(t, err)

	return raw
}

func TestConnection_ReadCompleteLoopsOverBuffer(t *testing.T) {
	require := require.New(t)

	const n = 5000
	server := newFakeServer(t, func(req request) []byte {
		return largeReply(t, req.header.Name, n)
	})
	conn := newTestConn(t, server, WithReadBufferSize(1024))

	resp, err := conn.Exchange("Signals.ValsGet", nil, wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32)))
	require.NoError(err)

	values, err := resp.Value(1).Float32s()
	require.NoError(err)
	require.Len(values, n)
	require.InDelta(float32(n-1), values[n-1], 0)
}

func TestConnection_ReadSingleReportsTruncation(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return largeReply(t, req.header.Name, 5000)
	})
	conn := newTestConn(t, server, WithReadBufferSize(1024), WithReadPolicy(ReadSingle))

	_, err := conn.Exchange("Signals.ValsGet", nil, wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32)))
	var truncErr *nanonis.TruncationError
	require.ErrorAs(err, &truncErr)
	require.Equal(nanonis.HeaderSize+4+5000*4+nanonis.ErrorTailSize, truncErr.Want)
	require.LessOrEqual(truncErr.Have, 1024)
	require.Equal(uint64(1), conn.GetMetrics().TruncationCount.Load())

	// the rest of the frame is still queued, so the socket cannot be reused
	require.Equal(ClosedState, conn.OpState())
	_, err = conn.Exchange("Signals.ValsGet", nil, wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32)))
	require.ErrorIs(err, nanonis.ErrNotConnected)
}

func TestConnection_ReadSingleSmallResponse(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return biasReply(t, req.header.Name, 1.5)
	})
	conn := newTestConn(t, server, WithReadPolicy(ReadSingle))

	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	bias, _ := resp.Value(0).Float()
	require.InDelta(1.5, bias, 0)
}

func TestConnection_MaxBodySize(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return largeReply(t, req.header.Name, 100)
	})
	conn := newTestConn(t, server, WithMaxBodySize(64))

	_, err := conn.Exchange("Signals.ValsGet", nil, wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32)))
	require.ErrorIs(err, ErrBodyTooLarge)
	require.Equal(uint64(1), conn.GetMetrics().FramingErrCount.Load())
	require.Equal(ClosedState, conn.OpState())
}

func TestConnection_RejectedFrameDoesNotLeakIntoNextCall(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	server := newFakeServer(t, func(req request) []byte {
		if calls.Add(1) == 1 {
			return largeReply(t, req.header.Name, 100)
		}
		return biasReply(t, req.header.Name, 0.75)
	})
	conn := newTestConn(t, server, WithMaxBodySize(64))

	_, err := conn.Exchange("Signals.ValsGet", nil, wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32)))
	require.ErrorIs(err, ErrBodyTooLarge)

	_, err = conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	var connErr *nanonis.ConnectionError
	require.ErrorAs(err, &connErr)
	require.ErrorIs(err, nanonis.ErrNotConnected)
	require.Equal(int32(1), calls.Load())

	require.NoError(conn.Open(context.Background()))
	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	require.Equal("Bias.Get", resp.Header.Name)
	bias, err := resp.Value(0).Float()
	require.NoError(err)
	require.InDelta(0.75, bias, 0)
}

func TestConnection_LogsStreamDesync(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return largeReply(t, req.header.Name, 100)
	})

	l := logger.NewMockLogger()
	l.On("Warn", mock.Anything, mock.Anything).Return()
	l.Lenient(logger.InfoLevel)
	conn := newTestConn(t, server, WithMaxBodySize(64), WithLogger(l))

	_, err := conn.Exchange("Signals.ValsGet", nil, wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32)))
	require.ErrorIs(err, ErrBodyTooLarge)

	l.AssertCalled(t, "Warn", "malformed response", mock.Anything)
	l.AssertCalled(t, "Warn", "response stream out of sync, closing connection", mock.MatchedBy(func(kv []any) bool {
		return len(kv) == 6 && kv[3] == "Signals.ValsGet"
	}))
	l.AssertNotCalled(t, "Error", mock.Anything, mock.Anything)
}

func TestConnection_BodyDecodeErrorKeepsConnection(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return biasReply(t, req.header.Name, 0.5)
	})
	conn := newTestConn(t, server)

	// the whole frame was read, only the schema does not fit it
	_, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float64, wire.Float64), WithStrict())
	require.Error(err)
	require.Equal(OpenedState, conn.OpState())

	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	bias, _ := resp.Value(0).Float()
	require.InDelta(0.5, bias, 0)
}

func TestConnection_PeerClosed(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(request) []byte { return dropConnection })
	conn := newTestConn(t, server)

	_, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	var connErr *nanonis.ConnectionError
	require.ErrorAs(err, &connErr)
	require.Equal(uint64(1), conn.GetMetrics().ConnErrCount.Load())
	require.Equal(ClosedState, conn.OpState())

	// no automatic reconnection
	_, err = conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.ErrorIs(err, nanonis.ErrNotConnected)
	require.Len(server.received(), 1)
}

func TestConnection_NotOpened(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig("127.0.0.1", 6501)
	require.NoError(err)
	conn, err := NewConnection(cfg)
	require.NoError(err)

	_, err = conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	var connErr *nanonis.ConnectionError
	require.ErrorAs(err, &connErr)
	require.ErrorIs(err, nanonis.ErrNotConnected)

	require.ErrorIs(conn.Send("Bias.Set"), nanonis.ErrNotConnected)

	_, err = conn.Drain()
	require.ErrorIs(err, nanonis.ErrNotConnected)

	require.NoError(conn.Close())
}

func TestConnection_OpenFails(t *testing.T) {
	require := require.New(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	port := listener.Addr().(*net.TCPAddr).Port //nolint:forcetypeassert
	require.NoError(listener.Close())

	cfg, err := NewConnectionConfig("127.0.0.1", port, WithDialTimeout(time.Second))
	require.NoError(err)
	conn, err := NewConnection(cfg)
	require.NoError(err)

	err = conn.Open(context.Background())
	var connErr *nanonis.ConnectionError
	require.ErrorAs(err, &connErr)
	require.Equal("dial", connErr.Op)
	require.Equal(ClosedState, conn.OpState())
}

func TestConnection_EncodeErrorDoesNotTouchSocket(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte { return nil })
	conn := newTestConn(t, server)

	_, err := conn.Exchange("Bias.Set", []wire.Arg{{Value: "x", Tag: wire.Float32}}, wire.MustSchema())
	var encErr *wire.EncodeError
	require.ErrorAs(err, &encErr)
	require.Zero(conn.GetMetrics().RequestCount.Load())
	require.Equal(OpenedState, conn.OpState())
}

func TestConnection_SendAndDrain(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		// this server answers every request, even when no response is requested
		return biasReply(t, req.header.Name, 2)
	})
	conn := newTestConn(t, server, WithDrainTimeout(200*time.Millisecond))

	require.NoError(conn.Send("Bias.Set", wire.Arg{Value: float32(2), Tag: wire.Float32}))
	require.Eventually(func() bool { return len(server.received()) == 1 }, time.Second, 5*time.Millisecond)
	require.False(server.received()[0].header.WantResponse)

	n, err := conn.Drain()
	require.NoError(err)
	require.Equal(nanonis.HeaderSize+4+nanonis.ErrorTailSize, n)
	require.Equal(uint64(n), conn.GetMetrics().DrainedBytes.Load())

	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	bias, _ := resp.Value(0).Float()
	require.InDelta(2.0, bias, 0)
}

func TestConnection_Diagnostics(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		body := wire.AppendFloat32(nil, 1)
		body = nanonis.AppendErrorTail(body, nanonis.ErrorRecord{})
		body = append(body, 0xDE, 0xAD)
		raw, _ := nanonis.EncodeHeader(req.header.Name, int32(len(body)), false) //nolint:gosec
		return append(raw, body...)
	})

	cfgRecorder := &wire.Recorder{}
	conn := newTestConn(t, server, WithDiagnosticSink(cfgRecorder))

	callRecorder := &wire.Recorder{}
	_, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32), WithCallDiagnostics(callRecorder))
	require.NoError(err)

	require.Len(callRecorder.Diagnostics(), 1)
	require.Equal(wire.DiagTrailingBytes, callRecorder.Diagnostics()[0].Kind)
	require.Equal("Bias.Get", callRecorder.Diagnostics()[0].Command)
	require.Len(cfgRecorder.Diagnostics(), 1)
	require.Equal(uint64(1), conn.GetMetrics().DiagnosticCount.Load())

	_, err = conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32), WithStrict())
	require.ErrorIs(err, nanonis.ErrTrailingBytes)
	require.Equal(uint64(1), conn.GetMetrics().FramingErrCount.Load())
	require.Len(cfgRecorder.Diagnostics(), 1)
}

func TestConnection_ReplyTimeout(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(request) []byte { return nil })
	conn := newTestConn(t, server, WithReplyTimeout(50*time.Millisecond))

	_, err := conn.Exchange("Scan.WaitEndOfScan", nil, wire.MustSchema(wire.UInt32, wire.UInt32, wire.Str))
	var connErr *nanonis.ConnectionError
	require.ErrorAs(err, &connErr)
	require.ErrorIs(err, os.ErrDeadlineExceeded)
	require.Equal(ClosedState, conn.OpState())
}

func TestConnection_CloseInterruptsExchange(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(request) []byte { return nil })
	conn := newTestConn(t, server)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Exchange("Scan.WaitEndOfScan", nil, wire.MustSchema(wire.UInt32, wire.UInt32, wire.Str))
		errCh <- err
	}()

	require.Eventually(func() bool { return conn.State() == AwaitingResponseState }, time.Second, time.Millisecond)
	require.NoError(conn.Close())

	select {
	case err := <-errCh:
		var connErr *nanonis.ConnectionError
		require.ErrorAs(err, &connErr)
	case <-time.After(2 * time.Second):
		require.Fail("exchange was not interrupted by Close")
	}
	require.Equal(ClosedState, conn.OpState())
	require.Equal(IdleState, conn.State())
}

func TestConnection_ConcurrentExchanges(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return biasReply(t, req.header.Name, 0.5)
	})
	conn := newTestConn(t, server)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
			if err == nil && resp.Header.Name != "Bias.Get" {
				err = nanonis.ErrNotConnected
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(err)
	}
	require.Equal(uint64(callers), conn.GetMetrics().CommandCount("Bias.Get"))
	require.Equal(map[string]uint64{"Bias.Get": callers}, conn.GetMetrics().CommandCounts())
}

func TestConnection_VerboseLogsAtInfo(t *testing.T) {
	require := require.New(t)

	server := newFakeServer(t, func(req request) []byte {
		return biasReply(t, req.header.Name, 0.5)
	})

	var buf bytes.Buffer
	conn := newTestConn(t, server, WithLogger(logger.NewSlogWriter(&buf, logger.InfoLevel, false, false)))

	_, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
	require.NoError(err)
	require.NotContains(buf.String(), "response received")

	_, err = conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32), WithVerbose())
	require.NoError(err)
	require.Contains(buf.String(), "response received")
	require.Contains(buf.String(), `"command":"Bias.Get"`)
}
