package restbackup

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call results used as the "result" label of restbackup_client_calls_total.
const (
	ResultSuccess      = "success"
	ResultUnauthorized = "unauthorized"
	ResultExhausted    = "exhausted"
	ResultCancelled    = "cancelled"
	ResultInvalid      = "invalid_argument"
	ResultTerminal     = "terminal"
)

// Attempt outcomes used as the "outcome" label of restbackup_client_attempts_total.
const (
	OutcomeResponse  = "response"
	OutcomeTransient = "transient"
	OutcomeTerminal  = "terminal"
)

// AttemptKey identifies one series of the attempts counter.
type AttemptKey struct {
	Method  string
	Outcome string
}

// Labels returns the metric labels as a slice.
func (k AttemptKey) Labels() []string {
	return []string{k.Method, k.Outcome}
}

// CallKey identifies one series of the calls counter.
type CallKey struct {
	Method string
	Result string
}

// Labels returns the metric labels as a slice.
func (k CallKey) Labels() []string {
	return []string{k.Method, k.Result}
}

// Metrics holds the client's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	calls    *prometheus.CounterVec
	backoff  prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewMetrics creates the client instruments and registers them on reg.
// A nil reg leaves them unregistered.
//
// The instruments are:
//   - restbackup_client_attempts_total: attempts by method and outcome
//   - restbackup_client_calls_total: logical calls by method and result
//   - restbackup_client_backoff_seconds_total: time spent waiting between attempts
//   - restbackup_client_call_duration_seconds: logical call latency by method
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restbackup_client_attempts_total",
			Help: "The number of HTTP attempts made, by method and outcome",
		}, []string{"method", "outcome"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restbackup_client_calls_total",
			Help: "The number of logical calls completed, by method and result",
		}, []string{"method", "result"}),
		backoff: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restbackup_client_backoff_seconds_total",
			Help: "The time spent waiting between attempts in seconds",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restbackup_client_call_duration_seconds",
			Help:    "The latency of logical calls including retries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"method"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.attempts, m.calls, m.backoff, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register client metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(AttemptKey{Method: method, Outcome: outcome}.Labels()...).Inc()
}

func (m *Metrics) observeBackoff(d time.Duration) {
	if m == nil {
		return
	}
	m.backoff.Add(d.Seconds())
}

func (m *Metrics) observeCall(method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(CallKey{Method: method, Result: callResult(err)}.Labels()...).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// callResult maps the error of a logical call to its result label.
func callResult(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case isContextError(err):
		return ResultCancelled
	case errors.Is(err, ErrUnauthorized):
		return ResultUnauthorized
	case errors.Is(err, ErrInvalidArgument):
		return ResultInvalid
	case errors.Is(err, ErrRetryableTransport):
		return ResultExhausted
	default:
		return ResultTerminal
	}
}
