package poller

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"
)

// MaxResponseBodySize caps how much of a response body is read per fetch.
const MaxResponseBodySize = 10 << 20 // 10MB

// ErrBodyTooLarge is returned in [Response.Error] when the body exceeds
// MaxResponseBodySize. The body is not returned.
var ErrBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", MaxResponseBodySize)

const (
	dialTimeout         = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// ClientConfig holds the connection pool settings for a [Client].
type ClientConfig struct {
	// MaxIdleConnsPerHost is how many idle connections are kept per host.
	// Zero disables keep-alives entirely.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays in the pool.
	// Zero means idle connections never expire.
	IdleConnTimeout time.Duration

	// KeepAlive is the TCP keepalive probe interval. Zero disables probes.
	KeepAlive time.Duration
}

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to MaxResponseBodySize.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// ConnStats counts how the transport obtained connections.
type ConnStats struct {
	// Opened is the number of requests that dialed a new connection.
	Opened int64

	// Reused is the number of requests served by a pooled connection.
	Reused int64
}

// Client is the long-lived transport handle shared by every tick of a poller.
//
// Client uses per-request timeouts via context rather than a global timeout.
// It is safe for concurrent use, although a poller only ever has one
// request in flight.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	opened     atomic.Int64
	reused     atomic.Int64
	onConn     func(reused bool)
}

// NewClient creates a [Client] with its own connection pool configured from cfg.
func NewClient(cfg ClientConfig) *Client {
	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		// net.Dialer treats zero as "use the default"; negative disables
		keepAlive = -1
	}

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		DisableKeepAlives:   cfg.MaxIdleConnsPerHost == 0,
	}

	return &Client{
		// no default timeout - we use per-request timeouts via context
		httpClient: &http.Client{Transport: transport},
		transport:  transport,
	}
}

// OnConn registers a hook called once per request with whether the request
// reused a pooled connection. It must be set before the client is used.
func (c *Client) OnConn(fn func(reused bool)) {
	c.onConn = fn
}

// Fetch performs an HTTP GET and returns a structured [Response].
//
// A timeout of zero means the request is bounded only by ctx. Fetch always
// returns a Response; errors are captured in the Error field rather than
// returned separately.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: c.gotConn,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{Error: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{Error: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte past the limit tells a full body from a cut-off one
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize+1))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}
	if len(body) > MaxResponseBodySize {
		return Response{StatusCode: resp.StatusCode, Error: ErrBodyTooLarge}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
	}
}

func (c *Client) gotConn(info httptrace.GotConnInfo) {
	if info.Reused {
		c.reused.Add(1)
	} else {
		c.opened.Add(1)
	}
	if c.onConn != nil {
		c.onConn(info.Reused)
	}
}

// Stats returns a snapshot of the connection counters.
func (c *Client) Stats() ConnStats {
	return ConnStats{
		Opened: c.opened.Load(),
		Reused: c.reused.Load(),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil receiver. After Close, the client
// remains usable but new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.transport == nil {
		return
	}
	c.transport.CloseIdleConnections()
}
