// Package config provides YAML configuration parsing for the jsonpoll CLI.
//
// It lets a poller be described in a file instead of code. Every duration
// key is optional and falls back to the SDK defaults.
//
// Example configuration:
//
//	url: https://api.example.com/ticker?symbol=${SYMBOL:-BTC}
//	poll_interval: 250ms
//	request_timeout: 2s
//	pool_max_idle_per_host: 1
//	pool_idle_timeout: 90s
//	tcp_keepalive: 60s
//	headers:
//	  Authorization: Bearer ${API_TOKEN}
//	field: data.price
//	listen: 9090
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxPort is the highest TCP port accepted for listen.
const maxPort = 65535

// Config is the root configuration structure for the CLI.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML, or [ForURL] for a
// URL-only config.
type Config struct {
	// URL is the JSON resource to poll.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// PollInterval is the spacing between tick starts. Whole milliseconds.
	PollInterval *Duration `yaml:"poll_interval"`

	// RequestTimeout bounds each request. Whole milliseconds; 0s disables it.
	RequestTimeout *Duration `yaml:"request_timeout"`

	// PoolMaxIdlePerHost is how many idle connections are kept. 0 disables reuse.
	PoolMaxIdlePerHost *int `yaml:"pool_max_idle_per_host"`

	// PoolIdleTimeout is how long idle connections stay pooled. Whole seconds.
	PoolIdleTimeout *Duration `yaml:"pool_idle_timeout"`

	// TCPKeepalive is the keepalive probe interval. Whole seconds; 0s disables probes.
	TCPKeepalive *Duration `yaml:"tcp_keepalive"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Field is an optional dot path; only that part of each response is printed.
	Field string `yaml:"field"`

	// Listen is the port for the API server. 0 means no server.
	Listen int `yaml:"listen"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL and header values. Unknown keys
// are rejected so that typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// an empty document decodes to io.EOF and fails validation below instead
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ForURL returns a validated Config that only sets the URL.
func ForURL(rawURL string) (*Config, error) {
	cfg := &Config{URL: rawURL}
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.URL != "" {
		expanded, err := expandEnvVars(c.URL)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		c.URL = expanded
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	return c.Validate()
}

// Validate checks an already expanded config. It is called by [Parse] and
// [ForURL]; callers that modify a Config afterwards should call it again.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}

	parsedURL, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("url must have a host")
	}

	for k := range c.Headers {
		if k == "" {
			return errors.New("headers: name cannot be empty")
		}
	}

	if err := validateDuration("poll_interval", c.PollInterval, time.Millisecond); err != nil {
		return err
	}
	if err := validateDuration("request_timeout", c.RequestTimeout, time.Millisecond); err != nil {
		return err
	}
	if err := validateDuration("pool_idle_timeout", c.PoolIdleTimeout, time.Second); err != nil {
		return err
	}
	if err := validateDuration("tcp_keepalive", c.TCPKeepalive, time.Second); err != nil {
		return err
	}

	if c.PoolMaxIdlePerHost != nil && *c.PoolMaxIdlePerHost < 0 {
		return fmt.Errorf("pool_max_idle_per_host cannot be negative, got %d", *c.PoolMaxIdlePerHost)
	}

	if c.Field != "" {
		for _, part := range strings.Split(c.Field, ".") {
			if part == "" {
				return fmt.Errorf("field %q has an empty path segment", c.Field)
			}
		}
	}

	if c.Listen < 0 || c.Listen > maxPort {
		return fmt.Errorf("listen must be between 0 and %d, got %d", maxPort, c.Listen)
	}

	return nil
}

// validateDuration checks that an optional duration is non-negative and a
// whole multiple of unit.
func validateDuration(key string, d *Duration, unit time.Duration) error {
	if d == nil {
		return nil
	}
	if d.Duration() < 0 {
		return fmt.Errorf("%s cannot be negative, got %s", key, d.Duration())
	}
	if d.Duration()%unit != 0 {
		return fmt.Errorf("%s must be a whole number of %s, got %s", key, unitName(unit), d.Duration())
	}
	return nil
}

func unitName(unit time.Duration) string {
	if unit == time.Second {
		return "seconds"
	}
	return "milliseconds"
}
