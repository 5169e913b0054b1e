package jsonpoll

import (
	"errors"
	"net/url"
	"time"
)

// Defaults applied by [Builder] when a setter is not called.
const (
	DefaultPollInterval       = 500 * time.Millisecond
	DefaultRequestTimeout     = 1000 * time.Millisecond
	DefaultPoolMaxIdlePerHost = 1
	DefaultPoolIdleTimeout    = 90 * time.Second
	DefaultTCPKeepalive       = 60 * time.Second
)

// Config holds the immutable parameters of a [Poller].
//
// A Config is created by [ConfigBuilder.Build] and never changes afterwards.
// All fields are private with getter methods; durations and counts are
// non-negative by construction and the URL is an absolute http(s) URL.
type Config struct {
	url                string
	pollInterval       time.Duration
	requestTimeout     time.Duration
	poolMaxIdlePerHost int
	poolIdleTimeout    time.Duration
	tcpKeepalive       time.Duration
}

// URL returns the target URL exactly as it was passed to [Builder].
func (c Config) URL() string {
	return c.url
}

// PollInterval returns the spacing between tick starts.
func (c Config) PollInterval() time.Duration {
	return c.pollInterval
}

// RequestTimeout returns the per-request deadline. Zero means no deadline.
func (c Config) RequestTimeout() time.Duration {
	return c.requestTimeout
}

// PoolMaxIdlePerHost returns how many idle connections are kept per host.
// Zero disables connection reuse.
func (c Config) PoolMaxIdlePerHost() int {
	return c.poolMaxIdlePerHost
}

// PoolIdleTimeout returns how long an idle connection may stay pooled.
// Zero means idle connections never expire.
func (c Config) PoolIdleTimeout() time.Duration {
	return c.poolIdleTimeout
}

// TCPKeepalive returns the TCP keepalive probe interval. Zero disables probes.
func (c Config) TCPKeepalive() time.Duration {
	return c.tcpKeepalive
}

// ConfigBuilder accumulates optional settings for a [Config].
//
// Setters may be called in any order; calling one twice keeps the last value.
// Nothing is validated until [ConfigBuilder.Build].
type ConfigBuilder struct {
	url                string
	pollInterval       time.Duration
	requestTimeout     time.Duration
	poolMaxIdlePerHost int
	poolIdleTimeout    time.Duration
	tcpKeepalive       time.Duration
}

// Builder starts building a [Config] for rawURL with all defaults applied.
//
// Example:
//
//	cfg, err := jsonpoll.Builder("https://api.example.com/ticker").
//	    PollIntervalMS(250).
//	    RequestTimeoutMS(2000).
//	    Build()
func Builder(rawURL string) *ConfigBuilder {
	return &ConfigBuilder{
		url:                rawURL,
		pollInterval:       DefaultPollInterval,
		requestTimeout:     DefaultRequestTimeout,
		poolMaxIdlePerHost: DefaultPoolMaxIdlePerHost,
		poolIdleTimeout:    DefaultPoolIdleTimeout,
		tcpKeepalive:       DefaultTCPKeepalive,
	}
}

// PollIntervalMS sets the spacing between tick starts in milliseconds.
//
// Zero is accepted and produces back-to-back polling; choosing a sensible
// interval is the caller's responsibility.
func (b *ConfigBuilder) PollIntervalMS(ms uint64) *ConfigBuilder {
	b.pollInterval = millis(ms)
	return b
}

// RequestTimeoutMS sets the per-request timeout in milliseconds.
// Zero disables the per-request deadline.
func (b *ConfigBuilder) RequestTimeoutMS(ms uint64) *ConfigBuilder {
	b.requestTimeout = millis(ms)
	return b
}

// PoolMaxIdlePerHost sets how many idle connections are kept per host.
// Zero disables keep-alives, so every tick opens a new connection.
func (b *ConfigBuilder) PoolMaxIdlePerHost(n uint) *ConfigBuilder {
	b.poolMaxIdlePerHost = clampInt(uint64(n))
	return b
}

// PoolIdleTimeoutSecs sets how long idle connections stay pooled, in seconds.
func (b *ConfigBuilder) PoolIdleTimeoutSecs(secs uint64) *ConfigBuilder {
	b.poolIdleTimeout = seconds(secs)
	return b
}

// TCPKeepaliveSecs sets the TCP keepalive probe interval in seconds.
func (b *ConfigBuilder) TCPKeepaliveSecs(secs uint64) *ConfigBuilder {
	b.tcpKeepalive = seconds(secs)
	return b
}

// Build validates the URL and returns the finished [Config].
//
// It fails with a [*ConfigError] matching [ErrInvalidURL] if the URL does
// not parse, is not absolute, has no host, or uses a scheme other than
// http or https. No network access happens here.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := validateURL(b.url); err != nil {
		return Config{}, &ConfigError{URL: b.url, Err: err}
	}

	return Config{
		url:                b.url,
		pollInterval:       b.pollInterval,
		requestTimeout:     b.requestTimeout,
		poolMaxIdlePerHost: b.poolMaxIdlePerHost,
		poolIdleTimeout:    b.poolIdleTimeout,
		tcpKeepalive:       b.tcpKeepalive,
	}, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https, got " + parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}

const maxDuration = time.Duration(1<<63 - 1)

// millis converts without overflowing time.Duration.
func millis(ms uint64) time.Duration {
	if ms > uint64(maxDuration/time.Millisecond) {
		return maxDuration
	}
	return time.Duration(ms) * time.Millisecond
}

func seconds(secs uint64) time.Duration {
	if secs > uint64(maxDuration/time.Second) {
		return maxDuration
	}
	return time.Duration(secs) * time.Second
}

func clampInt(n uint64) int {
	const maxInt = int(^uint(0) >> 1)
	if n > uint64(maxInt) {
		return maxInt
	}
	return int(n)
}
