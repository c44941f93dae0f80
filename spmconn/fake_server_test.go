package spmconn

import (
	"io"
	"net"
	"sync"
	"testing"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/stretchr/testify/require"
)

// request is a request frame received by fakeServer.
type request struct {
	header nanonis.Header
	body   []byte
}

// dropConnection is a handler reply that makes fakeServer close the client connection.
var dropConnection = []byte{}

// fakeServer is a loopback Nanonis server that answers each request with the frame returned by handler.
// A nil reply sends nothing back.
type fakeServer struct {
	t        *testing.T
	listener net.Listener
	handler  func(req request) []byte

	mu       sync.Mutex
	requests []request
	conns    []net.Conn
	wg       sync.WaitGroup
}

func newFakeServer(t *testing.T, handler func(req request) []byte) *fakeServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{t: t, listener: listener, handler: handler}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.close)

	return s
}

func (s *fakeServer) port() int {
	addr, _ := s.listener.Addr().(*net.TCPAddr)
	return addr.Port
}

func (s *fakeServer) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer s.wg.Done()

	for {
		header := make([]byte, nanonis.HeaderSize)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		h, err := nanonis.DecodeHeader(header)
		if err != nil {
			return
		}
		body := make([]byte, h.BodySize)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}

		req := request{header: h, body: body}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		reply := s.handler(req)
		if reply != nil && len(reply) == 0 {
			_ = conn.Close()
			return
		}
		if reply != nil {
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}
}

// received returns a copy of the requests received so far.
func (s *fakeServer) received() []request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]request(nil), s.requests...)
}

// dropClients closes every accepted connection.
func (s *fakeServer) dropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *fakeServer) close() {
	_ = s.listener.Close()
	s.dropClients()
	s.wg.Wait()
}
