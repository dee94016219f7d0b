package restbackup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fjacquet/restbackup/internal/telemetry"
	"github.com/fjacquet/restbackup/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAttempts is how many attempts a logical call makes unless
// WithMaxAttempts says otherwise.
const DefaultMaxAttempts = 6

// Backoff delays indexed by the number of failed attempts so far.
var retryDelays = [...]time.Duration{
	0,
	100 * time.Millisecond,
	1 * time.Second,
	3 * time.Second,
	10 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// maxRetryDelay applies once the table is exhausted.
const maxRetryDelay = 600 * time.Second

// RetryDelay returns how long to wait after the given number of failed
// attempts: 0, 100ms, 1s, 3s, 10s, 60s, 300s, then 600s.
func RetryDelay(failedAttempts int) time.Duration {
	if failedAttempts < 0 {
		return 0
	}
	if failedAttempts < len(retryDelays) {
		return retryDelays[failedAttempts]
	}
	return maxRetryDelay
}

var errBodyNotRewindable = errors.New("request body cannot be rewound")

// Do executes req, retrying 5xx responses and transient network failures.
//
// Outcomes:
//   - 2xx: the response, which the caller must close
//   - 401: an error matching ErrUnauthorized, without retrying
//   - other non-5xx codes: a *StatusError matching ErrTerminalProtocol
//   - retries exhausted: a *RetryError matching ErrRetryableTransport
//   - ctx done while waiting: an error wrapping ctx.Err() and the last failure
//
// Every response body that is not returned has been closed.
func (c *HTTPCaller) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracing.StartSpan(ctx, "restbackup."+strings.ToLower(req.Method), trace.SpanKindClient,
		attribute.String(telemetry.AttrHTTPMethod, req.Method),
		attribute.String(telemetry.AttrRestBackupURI, req.URI),
		attribute.String(telemetry.AttrRestBackupHost, c.accessURL.Host()),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, req)
	c.metrics.observeCall(req.Method, err, time.Since(start))

	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.AttrRestBackupAttempts, resp.Attempts))
	span.SetStatus(codes.Ok, "Request completed successfully")
	return resp, nil
}

func (c *HTTPCaller) do(ctx context.Context, req Request) (*Response, error) {
	if err := checkURI(req.URI); err != nil {
		return nil, err
	}
	if req.Body == nil {
		req.ContentLength = 0
	}
	c.logRequest(req)

	rewind := bodyRewinder(req.Body)

	var lastErr error
	attempt := 0
	for {
		c.log.Debugf("attempt %d", attempt)

		res := c.attempt(ctx, req, attempt+1)
		switch res.outcome {
		case outcomeTerminal:
			return nil, res.err
		case outcomeTransient:
			lastErr = res.err
		case outcomeResponse:
			switch Classify(res.resp.StatusCode) {
			case ClassSuccess:
				res.resp.Attempts = attempt + 1
				return res.resp, nil
			case ClassUnauthorized:
				return nil, statusError(req, res.resp, ErrUnauthorized)
			case ClassRetryableServerError:
				lastErr = statusError(req, res.resp, ErrRetryableTransport)
			default:
				return nil, statusError(req, res.resp, ErrTerminalProtocol)
			}
		}

		c.log.Warn(lastErr.Error())
		attempt++
		if attempt >= c.maxAttempts {
			return nil, &RetryError{Attempts: attempt, Err: lastErr}
		}
		if err := rewind(); err != nil {
			c.log.Warnf("Not retrying %s %s: %v", req.Method, req.URI, err)
			return nil, &RetryError{Attempts: attempt, Err: lastErr}
		}

		delay := c.delay(attempt)
		c.log.Infof("Delaying %d milliseconds", delay.Milliseconds())
		c.metrics.observeBackoff(delay)
		if err := utils.Pause(ctx, delay); err != nil {
			return nil, fmt.Errorf("%s %s abandoned after %d attempts: %w (last failure: %w)",
				req.Method, req.URI, attempt, err, lastErr)
		}
	}
}

// bodyRewinder returns a func that puts body back where it was when the call
// started. Bodies that are not seekable cannot be sent twice.
func bodyRewinder(body io.Reader) func() error {
	if body == nil {
		return func() error { return nil }
	}
	seeker, ok := body.(io.Seeker)
	if !ok {
		return func() error { return errBodyNotRewindable }
	}
	start, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return func() error { return fmt.Errorf("%w: %v", errBodyNotRewindable, err) }
	}
	return func() error {
		if _, err := seeker.Seek(start, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %v", errBodyNotRewindable, err)
		}
		return nil
	}
}
