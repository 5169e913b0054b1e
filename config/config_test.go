package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
url: https://example.com/data
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.URL != "https://example.com/data" {
		t.Errorf("URL = %q, want %q", cfg.URL, "https://example.com/data")
	}
	// unset keys stay nil so the SDK defaults apply
	if cfg.PollInterval != nil || cfg.RequestTimeout != nil || cfg.PoolMaxIdlePerHost != nil ||
		cfg.PoolIdleTimeout != nil || cfg.TCPKeepalive != nil {
		t.Errorf("optional keys should be nil, got %+v", cfg)
	}
	if cfg.Listen != 0 {
		t.Errorf("Listen = %d, want 0", cfg.Listen)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
url: https://api.example.com/ticker
poll_interval: 250ms
request_timeout: 2s
pool_max_idle_per_host: 4
pool_idle_timeout: 30s
tcp_keepalive: 15s
headers:
  Authorization: Bearer token123
  X-Custom: value
field: data.prices.0
listen: 9090
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.PollInterval.Duration() != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval.Duration())
	}
	if cfg.RequestTimeout.Duration() != 2*time.Second {
		t.Errorf("RequestTimeout = %v, want 2s", cfg.RequestTimeout.Duration())
	}
	if *cfg.PoolMaxIdlePerHost != 4 {
		t.Errorf("PoolMaxIdlePerHost = %d, want 4", *cfg.PoolMaxIdlePerHost)
	}
	if cfg.PoolIdleTimeout.Duration() != 30*time.Second {
		t.Errorf("PoolIdleTimeout = %v, want 30s", cfg.PoolIdleTimeout.Duration())
	}
	if cfg.TCPKeepalive.Duration() != 15*time.Second {
		t.Errorf("TCPKeepalive = %v, want 15s", cfg.TCPKeepalive.Duration())
	}
	if cfg.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Headers[Authorization] = %q, want %q", cfg.Headers["Authorization"], "Bearer token123")
	}
	if cfg.Field != "data.prices.0" {
		t.Errorf("Field = %q, want %q", cfg.Field, "data.prices.0")
	}
	if cfg.Listen != 9090 {
		t.Errorf("Listen = %d, want 9090", cfg.Listen)
	}
}

func TestParse_ExplicitZeros(t *testing.T) {
	yaml := `
url: http://localhost:8080
poll_interval: 0s
request_timeout: 0s
pool_max_idle_per_host: 0
tcp_keepalive: 0s
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.PollInterval == nil || cfg.PollInterval.Duration() != 0 {
		t.Errorf("PollInterval = %v, want explicit 0", cfg.PollInterval)
	}
	if cfg.PoolMaxIdlePerHost == nil || *cfg.PoolMaxIdlePerHost != 0 {
		t.Errorf("PoolMaxIdlePerHost = %v, want explicit 0", cfg.PoolMaxIdlePerHost)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("JSONPOLL_HOST", "api.example.com")
	t.Setenv("JSONPOLL_TOKEN", "secret")

	yaml := `
url: https://${JSONPOLL_HOST}/ticker?symbol=${JSONPOLL_SYMBOL:-BTC}
headers:
  Authorization: Bearer ${JSONPOLL_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.URL != "https://api.example.com/ticker?symbol=BTC" {
		t.Errorf("URL = %q, want %q", cfg.URL, "https://api.example.com/ticker?symbol=BTC")
	}
	if cfg.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Headers[Authorization] = %q, want %q", cfg.Headers["Authorization"], "Bearer secret")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
url: https://example.com
headers:
  Authorization: Bearer ${JSONPOLL_DEFINITELY_UNSET}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "JSONPOLL_DEFINITELY_UNSET") {
		t.Errorf("Parse() error = %v, want error naming the variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty document", ``, "url is required"},
		{"missing url", "poll_interval: 1s", "url is required"},
		{"no scheme", "url: example.com", "must have a scheme"},
		{"bad scheme", "url: ftp://example.com", "scheme must be http or https"},
		{"no host", "url: http://", "must have a host"},
		{"negative interval", "url: http://x\npoll_interval: -1s", "poll_interval cannot be negative"},
		{"negative timeout", "url: http://x\nrequest_timeout: -5ms", "request_timeout cannot be negative"},
		{"sub-millisecond interval", "url: http://x\npoll_interval: 1500us", "whole number of milliseconds"},
		{"fractional keepalive", "url: http://x\ntcp_keepalive: 1500ms", "whole number of seconds"},
		{"fractional idle timeout", "url: http://x\npool_idle_timeout: 2.5s", "whole number of seconds"},
		{"negative max idle", "url: http://x\npool_max_idle_per_host: -1", "cannot be negative"},
		{"empty field segment", "url: http://x\nfield: data..price", "empty path segment"},
		{"listen too high", "url: http://x\nlisten: 70000", "listen must be between"},
		{"negative listen", "url: http://x\nlisten: -1", "listen must be between"},
		{"unknown key", "url: http://x\npoll_intervall: 1s", "failed to parse YAML"},
		{"invalid yaml", "url: [unclosed", "failed to parse YAML"},
		{"invalid duration", "url: http://x\npoll_interval: soon", "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"1s", time.Second},
		{"1m30s", 90 * time.Second},
		{"0s", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg, err := Parse([]byte("url: http://x\npoll_interval: " + tt.input))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.PollInterval.Duration() != tt.want {
				t.Errorf("PollInterval = %v, want %v", cfg.PollInterval.Duration(), tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsonpoll.yaml")
	if err := os.WriteFile(path, []byte("url: https://example.com\nlisten: 8081\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != 8081 {
		t.Errorf("Listen = %d, want 8081", cfg.Listen)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read failure", err)
	}
}

func TestForURL(t *testing.T) {
	cfg, err := ForURL("https://example.com")
	if err != nil {
		t.Fatalf("ForURL() error = %v", err)
	}
	if cfg.URL != "https://example.com" {
		t.Errorf("URL = %q, want %q", cfg.URL, "https://example.com")
	}

	if _, err := ForURL("mailto:someone@example.com"); err == nil {
		t.Error("ForURL() expected error for non-http url, got nil")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate_AfterOverride(t *testing.T) {
	cfg, err := ForURL("https://example.com")
	if err != nil {
		t.Fatalf("ForURL() error = %v", err)
	}

	d := Duration(-time.Second)
	cfg.PollInterval = &d
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "poll_interval cannot be negative") {
		t.Errorf("Validate() error = %v, want negative poll_interval error", err)
	}

	d = Duration(2 * time.Second)
	cfg.Listen = 8080
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
