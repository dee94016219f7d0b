package restbackup

import (
	"io"
	"testing"
	"time"

	"github.com/fjacquet/restbackup/internal/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// Shared test constants, aliased from testutil
const (
	testUser          = testutil.TestUser
	testPassword      = testutil.TestPassword
	testAuthorization = testutil.TestAuthorization
	testAccountID     = testutil.TestAccountID
	testDescription   = testutil.TestDescription
	testRetainDays    = testutil.TestRetainDays
	testFileURI       = testutil.TestFileURI
	testFileContent   = testutil.TestFileContent
)

// noDelay skips backoff waits.
func noDelay(int) time.Duration { return 0 }

// quietLogger returns a logger that records entries instead of printing them.
func quietLogger() (*log.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger, hook
}

// newTestCaller builds a caller with no backoff and a silent logger. Extra
// options come last so they win.
func newTestCaller(t *testing.T, accessURL string, opts ...Option) *HTTPCaller {
	t.Helper()
	logger, _ := quietLogger()
	all := append([]Option{WithDelayFunc(noDelay), WithLogger(logger)}, opts...)
	c, err := NewHTTPCaller(accessURL, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
