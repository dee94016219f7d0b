package restbackup

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	opErr := func(err error) error {
		return &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", err)}
	}

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "EOF", err: io.EOF, expected: true},
		{name: "unexpected EOF", err: fmt.Errorf("reading: %w", io.ErrUnexpectedEOF), expected: true},
		{name: "connection refused", err: opErr(syscall.ECONNREFUSED), expected: true},
		{name: "connection reset", err: opErr(syscall.ECONNRESET), expected: true},
		{name: "broken pipe", err: syscall.EPIPE, expected: true},
		{name: "connection aborted", err: syscall.ECONNABORTED, expected: true},
		{name: "timeout", err: timeoutError{}, expected: true},
		{name: "dial failure", err: &net.OpError{Op: "dial", Err: errors.New("no route")}, expected: true},
		{name: "tls record header", err: tls.RecordHeaderError{Msg: "bad"}, expected: true},
		{name: "tls alert", err: tls.AlertError(40), expected: true},
		{name: "malformed response", err: errors.New(`net/http: HTTP/1.x transport connection broken: malformed HTTP response "garbage"`), expected: true},
		{name: "server closed", err: errors.New("server closed idle connection: EOF"), expected: true},
		{name: "context canceled", err: context.Canceled, expected: false},
		{name: "deadline exceeded", err: fmt.Errorf("get: %w", context.DeadlineExceeded), expected: false},
		{name: "unrelated", err: errors.New("unsupported protocol scheme"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isTransient(context.Background(), tt.err))
		})
	}
}

func TestIsTransientWithDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, isTransient(ctx, io.EOF))
	assert.False(t, isTransient(ctx, syscall.ECONNRESET))
}
