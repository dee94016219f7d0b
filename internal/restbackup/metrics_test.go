package restbackup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fjacquet/restbackup/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue returns the value of the counter series of name whose labels
// match, or 0 when there is none.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Registering twice on the same registry fails.
	_, err = NewMetrics(reg)
	assert.Error(t, err)

	unregistered, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, unregistered)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeAttempt(http.MethodGet, OutcomeResponse)
		m.observeBackoff(time.Second)
		m.observeCall(http.MethodGet, nil, time.Second)
	})
}

func TestMetricKeys(t *testing.T) {
	assert.Equal(t, []string{"GET", "transient"}, AttemptKey{Method: "GET", Outcome: OutcomeTransient}.Labels())
	assert.Equal(t, []string{"PUT", "success"}, CallKey{Method: "PUT", Result: ResultSuccess}.Labels())
}

func TestCallResult(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ResultSuccess},
		{context.Canceled, ResultCancelled},
		{fmt.Errorf("GET / abandoned: %w", context.DeadlineExceeded), ResultCancelled},
		{&StatusError{StatusCode: 401, Kind: ErrUnauthorized}, ResultUnauthorized},
		{fmt.Errorf("%w: bad uri", ErrInvalidArgument), ResultInvalid},
		{&RetryError{Attempts: 6, Err: errors.New("503")}, ResultExhausted},
		{&StatusError{StatusCode: 404, Kind: ErrTerminalProtocol}, ResultTerminal},
		{errors.New("anything else"), ResultTerminal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, callResult(tt.err), "callResult(%v)", tt.err)
	}
}

func TestMetricsRecordRetries(t *testing.T) {
	server := testutil.NewMockServer().
		WithStatusSequence(http.MethodGet, "/", http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK).
		Build()
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	c := newTestCaller(t, server.AccessURL(),
		WithMetrics(metrics),
		WithDelayFunc(func(int) time.Duration { return 10 * time.Millisecond }))

	resp, err := c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Close())

	assert.Equal(t, 3.0, counterValue(t, reg, "restbackup_client_attempts_total",
		map[string]string{"method": "GET", "outcome": OutcomeResponse}))
	assert.Equal(t, 1.0, counterValue(t, reg, "restbackup_client_calls_total",
		map[string]string{"method": "GET", "result": ResultSuccess}))
	assert.InDelta(t, 0.02, counterValue(t, reg, "restbackup_client_backoff_seconds_total", map[string]string{}), 0.0001)
}

func TestMetricsRecordFailures(t *testing.T) {
	server := testutil.NewMockServer().WithErrorResponse(http.MethodDelete, testAccountID, http.StatusNotFound).Build()
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	c := newTestCaller(t, server.AccessURL(), WithMetrics(metrics))

	_, err = c.Delete(context.Background(), testAccountID)
	require.Error(t, err)
	_, err = c.Delete(context.Background(), "relative")
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "restbackup_client_calls_total",
		map[string]string{"method": "DELETE", "result": ResultTerminal}))
	assert.Equal(t, 1.0, counterValue(t, reg, "restbackup_client_calls_total",
		map[string]string{"method": "DELETE", "result": ResultInvalid}))
	assert.Equal(t, 1.0, counterValue(t, reg, "restbackup_client_attempts_total",
		map[string]string{"method": "DELETE", "outcome": OutcomeResponse}))
}
