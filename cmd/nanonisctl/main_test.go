package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

type spmRequest struct {
	name string
	body []byte
}

// spmServer answers every request frame with the reply built by handler. A nil reply sends nothing.
type spmServer struct {
	listener net.Listener
	handler  func(req spmRequest) []byte

	mu       sync.Mutex
	requests []spmRequest
}

func newSPMServer(t *testing.T, handler func(req spmRequest) []byte) *spmServer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &spmServer{listener: l, handler: handler}
	go s.serve()
	t.Cleanup(func() { _ = l.Close() })

	return s
}

func (s *spmServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		go func() {
			defer conn.Close()

			for {
				raw := make([]byte, nanonis.HeaderSize)
				if _, err := io.ReadFull(conn, raw); err != nil {
					return
				}
				h, err := nanonis.DecodeHeader(raw)
				if err != nil {
					return
				}
				body := make([]byte, h.BodySize)
				if _, err := io.ReadFull(conn, body); err != nil {
					return
				}

				req := spmRequest{name: h.Name, body: body}
				s.mu.Lock()
				s.requests = append(s.requests, req)
				s.mu.Unlock()

				if reply := s.handler(req); reply != nil {
					if _, err := conn.Write(reply); err != nil {
						return
					}
				}
			}
		}()
	}
}

func (s *spmServer) port() string {
	addr, _ := s.listener.Addr().(*net.TCPAddr)
	return strconv.Itoa(addr.Port)
}

func (s *spmServer) received() []spmRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]spmRequest(nil), s.requests...)
}

// textServer answers each newline terminated command with handler(cmd) and a newline.
func newTextServer(t *testing.T, handler func(cmd string) string) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}

			go func() {
				defer conn.Close()

				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if _, err := conn.Write([]byte(handler(strings.TrimRight(line, "\n")) + "\n")); err != nil {
						return
					}
				}
			}()
		}
	}()

	addr, _ := l.Addr().(*net.TCPAddr)

	return strconv.Itoa(addr.Port)
}

func mustResponse(t *testing.T, name string, rec nanonis.ErrorRecord, args ...wire.Arg) []byte {
	t.Helper()

	raw, err := nanonis.EncodeResponse(name, rec, args...)
	require.NoError(t, err)

	return raw
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	chdir(t, t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestCLI_BiasGet(t *testing.T) {
	srv := newSPMServer(t, func(req spmRequest) []byte {
		return mustResponse(t, req.name, nanonis.ErrorRecord{}, wire.Arg{Value: float32(0.25), Tag: wire.Float32})
	})

	out, err := run(t, "--spm-port", srv.port(), "bias", "get")
	require.NoError(t, err)

	assert.Equal(t, "Bias.Get", gjson.Get(out, "command").String())
	assert.InDelta(t, 0.25, gjson.Get(out, "bias_v").Float(), 1e-9)
	assert.Equal(t, int64(0), gjson.Get(out, "error.status").Int())

	reqs := srv.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bias.Get", reqs[0].name)
	assert.Empty(t, reqs[0].body)
}

func TestCLI_BiasSet(t *testing.T) {
	srv := newSPMServer(t, func(req spmRequest) []byte {
		return mustResponse(t, req.name, nanonis.ErrorRecord{})
	})

	_, err := run(t, "--spm-port", srv.port(), "bias", "set", "50m")
	require.NoError(t, err)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	v, err := wire.ReadFloat32(reqs[0].body)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, v, 1e-7)

	_, err = run(t, "--spm-port", srv.port(), "bias", "set", "11")
	require.Error(t, err)
	assert.Len(t, srv.received(), 1)
}

func TestCLI_RemoteFault(t *testing.T) {
	srv := newSPMServer(t, func(req spmRequest) []byte {
		return mustResponse(t, req.name, nanonis.ErrorRecord{Status: 3, Description: "scan running"})
	})

	out, err := run(t, "--spm-port", srv.port(), "zctrl", "setpoint", "100p")

	var remote *nanonis.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "ZCtrl.SetpntSet", remote.Command)
	assert.Equal(t, uint32(3), remote.Status)
	assert.Equal(t, "scan running", gjson.Get(out, "error.description").String())
}

func TestCLI_SignalsGet(t *testing.T) {
	srv := newSPMServer(t, func(req spmRequest) []byte {
		return mustResponse(t, req.name, nanonis.ErrorRecord{},
			wire.Arg{Value: 2, Tag: wire.Int32},
			wire.Arg{Value: []float32{1.5, -2}, Tag: wire.Array1D(wire.Float32)},
		)
	})

	out, err := run(t, "--spm-port", srv.port(), "signals", "get", "0,30", "--wait")
	require.NoError(t, err)

	assert.Equal(t, "[0,30]", gjson.Get(out, "indexes").Raw)
	assert.Equal(t, "[1.5,-2]", gjson.Get(out, "values").Raw)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	want, err := wire.EncodeArgs(
		wire.Arg{Value: 2, Tag: wire.Int32},
		wire.Arg{Value: []int32{0, 30}, Tag: wire.Array1D(wire.Int32)},
		wire.Arg{Value: uint32(1), Tag: wire.UInt32},
	)
	require.NoError(t, err)
	assert.Equal(t, want, reqs[0].body)
}

func TestCLI_Call(t *testing.T) {
	srv := newSPMServer(t, func(req spmRequest) []byte {
		return mustResponse(t, req.name, nanonis.ErrorRecord{},
			wire.Arg{Value: 7, Tag: wire.Int32},
			wire.Arg{Value: 2, Tag: wire.Int32},
			wire.Arg{Value: []string{"Bias (V)", "Current (A)"}, Tag: wire.StringArray1D},
		)
	})

	out, err := run(t, "--spm-port", srv.port(), "call", "Signals.NamesGet",
		"--args", `[{"type":"int","value":1},{"type":"str","value":"x"}]`,
		"--schema", `["int","int",{"type":"1dstr","refs":[1]}]`)
	require.NoError(t, err)

	assert.Equal(t, "1dstr", gjson.Get(out, "values.2.type").String())
	assert.Equal(t, `["Bias (V)","Current (A)"]`, gjson.Get(out, "values.2.value").Raw)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, []byte{0, 0, 0, 1, 'x'}, reqs[0].body)
}

func TestCLI_CallNoReply(t *testing.T) {
	srv := newSPMServer(t, func(spmRequest) []byte { return nil })

	out, err := run(t, "--spm-port", srv.port(), "call", "Scan.Action", "--no-reply",
		"--args", `[{"type":"uint16","value":0},{"type":"uint32","value":1}]`)
	require.NoError(t, err)
	assert.True(t, gjson.Get(out, "sent").Bool())

	require.Eventually(t, func() bool { return len(srv.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 1}, srv.received()[0].body)
}

func TestCLI_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, _ := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	_, err = run(t, "--spm-port", strconv.Itoa(addr.Port), "bias", "get")

	var connErr *nanonis.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)
}

func TestCLI_Spectrometer(t *testing.T) {
	var mu sync.Mutex
	var got []string
	port := newTextServer(t, func(cmd string) string {
		mu.Lock()
		got = append(got, cmd)
		mu.Unlock()
		return "OK"
	})

	out, err := run(t, "--spec-port", port, "spectrometer", "wl", "532.5")
	require.NoError(t, err)
	assert.Equal(t, "OK", gjson.Get(out, "reply").String())
	assert.InDelta(t, 532.5, gjson.Get(out, "wavelength_nm").Float(), 1e-9)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"SWL 532.50000"}, got)
}

func TestCLI_Acquire(t *testing.T) {
	srv := newSPMServer(t, func(req spmRequest) []byte {
		time.Sleep(2 * time.Millisecond)
		return mustResponse(t, req.name, nanonis.ErrorRecord{},
			wire.Arg{Value: 1, Tag: wire.Int32},
			wire.Arg{Value: []float32{4}, Tag: wire.Array1D(wire.Float32)},
		)
	})
	specPort := newTextServer(t, func(string) string {
		time.Sleep(50 * time.Millisecond)
		return "DONE"
	})

	out, err := run(t, "--spm-port", srv.port(), "--spec-port", specPort,
		"acquire", "--signals", "3", "--exposure", "ACQ")
	require.NoError(t, err)

	assert.Equal(t, "DONE", gjson.Get(out, "reply").String())
	samples := gjson.Get(out, "samples").Array()
	require.NotEmpty(t, samples)
	assert.Equal(t, "[4]", samples[0].Get("values").Raw)
	assert.Equal(t, int64(len(samples)), int64(len(srv.received())))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
