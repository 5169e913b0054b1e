package config

import (
	"sort"
	"time"

	"github.com/jpalmerr/jsonpoll"
)

// BuildConfig converts a parsed configuration into an SDK [jsonpoll.Config].
//
// Keys left out of the file keep the builder defaults.
func BuildConfig(cfg *Config) (jsonpoll.Config, error) {
	b := jsonpoll.Builder(cfg.URL)

	if cfg.PollInterval != nil {
		b.PollIntervalMS(wholeUnits(cfg.PollInterval, time.Millisecond))
	}
	if cfg.RequestTimeout != nil {
		b.RequestTimeoutMS(wholeUnits(cfg.RequestTimeout, time.Millisecond))
	}
	if cfg.PoolMaxIdlePerHost != nil {
		b.PoolMaxIdlePerHost(uint(*cfg.PoolMaxIdlePerHost))
	}
	if cfg.PoolIdleTimeout != nil {
		b.PoolIdleTimeoutSecs(wholeUnits(cfg.PoolIdleTimeout, time.Second))
	}
	if cfg.TCPKeepalive != nil {
		b.TCPKeepaliveSecs(wholeUnits(cfg.TCPKeepalive, time.Second))
	}

	return b.Build()
}

// Options returns the poller options implied by the configuration.
func Options(cfg *Config) []jsonpoll.Option {
	var opts []jsonpoll.Option
	if len(cfg.Headers) > 0 {
		opts = append(opts, jsonpoll.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}
	return opts
}

// wholeUnits converts a validated, non-negative duration to a unit count.
func wholeUnits(d *Duration, unit time.Duration) uint64 {
	return uint64(d.Duration() / unit)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
