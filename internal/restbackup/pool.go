package restbackup

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Connection pool defaults.
const (
	DefaultConnectTimeout        = 60 * time.Second // TCP connect timeout
	DefaultReadTimeout           = 1 * time.Hour    // Maximum read inactivity on a connection
	DefaultExpectContinueTimeout = 10 * time.Second // Wait for "100 Continue" on PUT
	DefaultMaxConns              = 200              // Concurrent requests across all hosts
	DefaultMaxConnsPerHost       = 200              // Concurrent connections to any one host

	maxIdleConns        = 100              // Total idle connections across all hosts
	maxIdleConnsPerHost = 20               // Idle connections per host (default is 2, too low)
	idleConnTimeout     = 90 * time.Second // Timeout for idle connections
	tlsHandshakeTimeout = 10 * time.Second
)

// PoolConfig tunes a Pool. Zero fields take the defaults above.
type PoolConfig struct {
	ConnectTimeout        time.Duration
	ReadTimeout           time.Duration
	ExpectContinueTimeout time.Duration
	MaxConns              int
	MaxConnsPerHost       int
	// InsecureSkipVerify disables TLS certificate verification. Tests only.
	InsecureSkipVerify bool
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ExpectContinueTimeout <= 0 {
		c.ExpectContinueTimeout = DefaultExpectContinueTimeout
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	return c
}

// Pool owns the HTTP transport shared by any number of callers. It bounds the
// number of requests in flight: a slot is taken when a request is dispatched
// and given back when its response body is closed.
//
// A Pool is safe for concurrent use. The creator is responsible for Close.
type Pool struct {
	cfg       PoolConfig
	transport *http.Transport
	slots     *semaphore.Weighted
	inFlight  atomic.Int64
}

// NewPool builds a pool from cfg.
//
// Example:
//
//	pool := restbackup.NewPool(restbackup.PoolConfig{})
//	defer pool.Close()
//	mgmt, err := restbackup.NewManagementAPI(accessURL, restbackup.WithPool(pool))
func NewPool(cfg PoolConfig) *Pool {
	cfg = cfg.withDefaults()

	if cfg.InsecureSkipVerify {
		log.Error("SECURITY WARNING: TLS certificate verification disabled - this is insecure for production use")
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	readTimeout := cfg.ReadTimeout

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, readTimeout: readTimeout}, nil
		},
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		DisableCompression:    true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12, // Enforce TLS 1.2 minimum
		},
	}

	return &Pool{
		cfg:       cfg,
		transport: transport,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConns)),
	}
}

// Config returns the effective configuration, defaults applied.
func (p *Pool) Config() PoolConfig {
	return p.cfg
}

// InFlight reports how many request slots are currently held, that is how
// many dispatched requests still have an unreleased response.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Close drops idle connections. Requests already in flight are unaffected.
func (p *Pool) Close() {
	p.transport.CloseIdleConnections()
}

func (p *Pool) acquire(ctx context.Context) error {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a connection slot: %w", err)
	}
	p.inFlight.Add(1)
	return nil
}

func (p *Pool) release() {
	p.inFlight.Add(-1)
	p.slots.Release(1)
}

// track wraps body so that closing it gives the slot back exactly once.
// A nil body releases the slot immediately.
func (p *Pool) track(body io.ReadCloser) io.ReadCloser {
	if body == nil {
		p.release()
		return http.NoBody
	}
	return &trackedBody{ReadCloser: body, release: p.release}
}

type trackedBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

// deadlineConn pushes the read deadline forward before every read so the
// read timeout measures inactivity rather than the whole transfer.
type deadlineConn struct {
	net.Conn
	readTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

// SetNoDelay toggles Nagle's algorithm on the underlying TCP connection.
func (c *deadlineConn) SetNoDelay(noDelay bool) error {
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(noDelay)
	}
	return nil
}

// setNoDelay applies noDelay to the connection handed out by the transport,
// looking through TLS.
func setNoDelay(conn net.Conn, noDelay bool) {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	nd, ok := conn.(interface{ SetNoDelay(bool) error })
	if !ok {
		return
	}
	if err := nd.SetNoDelay(noDelay); err != nil {
		log.Debugf("Failed to set TCP_NODELAY=%v: %v", noDelay, err)
	}
}
