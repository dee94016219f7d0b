package testutil

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ConnHandler scripts the server side of one TCP connection.
type ConnHandler func(conn net.Conn)

// RawServer accepts TCP connections and hands each one to the next handler
// in its script, repeating the last handler once the script runs out.
type RawServer struct {
	listener net.Listener
	handlers []ConnHandler
	accepted atomic.Int64
	wg       sync.WaitGroup
}

// NewRawServer starts a server on a loopback port. It is closed when the
// test ends.
func NewRawServer(t *testing.T, handlers ...ConnHandler) *RawServer {
	t.Helper()
	if len(handlers) == 0 {
		t.Fatal("NewRawServer needs at least one handler")
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	s := &RawServer{listener: ln, handlers: handlers}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *RawServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		i := int(s.accepted.Add(1)) - 1
		if i >= len(s.handlers) {
			i = len(s.handlers) - 1
		}
		handler := s.handlers[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			handler(conn)
		}()
	}
}

// Accepted returns how many connections the server accepted.
func (s *RawServer) Accepted() int {
	return int(s.accepted.Load())
}

// AccessURL returns an http access-URL for the server.
func (s *RawServer) AccessURL() string {
	return fmt.Sprintf("http://%s:%s@%s/", TestUser, TestPassword, s.listener.Addr().String())
}

// Close stops accepting and waits for handlers to return.
func (s *RawServer) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

// CloseImmediately drops the connection without reading.
func CloseImmediately() ConnHandler {
	return func(conn net.Conn) {}
}

// ReadAndClose reads the request head, then drops the connection.
func ReadAndClose() ConnHandler {
	return func(conn net.Conn) {
		_, _ = readRequest(conn)
	}
}

// RespondRaw reads the request and writes raw bytes back, then closes.
func RespondRaw(response string) ConnHandler {
	return func(conn net.Conn) {
		if _, err := readRequest(conn); err != nil {
			return
		}
		_, _ = io.WriteString(conn, response)
	}
}

// RespondStatus reads the request and answers with an HTTP/1.1 response of
// the given status and body, closing the connection afterwards.
func RespondStatus(code int, body string) ConnHandler {
	return RespondRaw(fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		code, http.StatusText(code), len(body), body))
}

// Delay waits d before running next.
func Delay(d time.Duration, next ConnHandler) ConnHandler {
	return func(conn net.Conn) {
		time.Sleep(d)
		next(conn)
	}
}

// readRequest consumes one HTTP request, body included.
func readRequest(conn net.Conn) (*http.Request, error) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	return req, nil
}
