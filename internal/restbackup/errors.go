package restbackup

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the client. Match them with errors.Is.
var (
	// ErrInvalidArgument reports a caller mistake detected before any network activity.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized reports an HTTP 401 response. It is never retried.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrResourceNotFound reports an HTTP 404 on an account or file lookup.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrResourceExists reports an HTTP 405 on an upload to an existing file.
	ErrResourceExists = errors.New("resource already exists")
	// ErrRetryableTransport reports a transient failure, or the exhaustion of retries on one.
	ErrRetryableTransport = errors.New("retryable transport failure")
	// ErrTerminalProtocol reports an unexpected response that retrying will not fix.
	ErrTerminalProtocol = errors.New("terminal protocol failure")
)

// maxErrorBody bounds how much of an error response body is kept in a StatusError.
const maxErrorBody = 64 * 1024

// StatusError describes a response whose status code was not acceptable.
// errors.Is matches it against its Kind.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Status is the status line text, e.g. "404 Not Found".
	Status string
	// Body is the decoded response body, possibly truncated.
	Body string
	Kind error
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: received error response %q", e.Method, e.Path, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		fmt.Fprintf(&b, ": %s", body)
	}
	return b.String()
}

// Is reports whether target is the kind of this error.
func (e *StatusError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// RetryError is returned when every allowed attempt failed with a transient
// failure. It matches ErrRetryableTransport and unwraps to the last failure.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

// Is matches ErrRetryableTransport.
func (e *RetryError) Is(target error) bool {
	return target == ErrRetryableTransport
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// remapStatus returns a copy of the StatusError in err with its Kind replaced
// when its status code equals code. Any other error is returned unchanged.
func remapStatus(err error, code int, kind error) error {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != code {
		return err
	}
	remapped := *se
	remapped.Kind = kind
	return &remapped
}

// unexpectedStatus builds the terminal error returned when a 2xx response
// other than the expected one arrives.
func unexpectedStatus(method, path string, expected int, resp *Response) error {
	body, _ := readBody(resp.Body, maxErrorBody)
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Status:     fmt.Sprintf("expected status code %d, received %s", expected, resp.Status),
		Body:       body,
		Kind:       ErrTerminalProtocol,
	}
}
