package jsonpoll

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// pollerOptions holds mutable state during Poller construction.
type pollerOptions struct {
	logger       *slog.Logger
	errorHandler func(error)
	headers      map[string]string
	registerer   prometheus.Registerer
}

// Option is a function that configures a [Poller] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*pollerOptions) error

// WithLogger sets a custom [slog.Logger] for the poller.
//
// Failed ticks are logged at Warn, successful ones at Debug and recovered
// callback panics at Error. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	p, err := jsonpoll.New[Ticker](cfg, jsonpoll.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(o *pollerOptions) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithErrorHandler registers a function called once for every failed tick.
//
// The handler receives a [*TickError] wrapping a [*FetchError],
// a [*DecodeError] or [ErrCallbackPanic]. It runs synchronously on the poll
// loop goroutine before the next tick is scheduled, so it must not block.
// The value callback is never invoked for a failed tick.
//
// Example:
//
//	jsonpoll.WithErrorHandler(func(err error) {
//	    if errors.Is(err, jsonpoll.ErrTimeout) {
//	        timeouts.Add(1)
//	    }
//	})
//
// Nil handlers are silently ignored.
func WithErrorHandler(fn func(error)) Option {
	return func(o *pollerOptions) error {
		if fn == nil {
			return nil
		}
		o.errorHandler = fn
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every poll request.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	jsonpoll.WithHeaders("Authorization", "Bearer token123")
//
// Returns an error if an odd number of arguments is provided or a key is empty.
func WithHeaders(keyValues ...string) Option {
	return func(o *pollerOptions) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			if keyValues[i] == "" {
				return errors.New("header name cannot be empty")
			}
			o.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithRegisterer enables Prometheus metrics for the poller.
//
// Collectors are labelled with the poller's URL, so several pollers can share
// one registry. Pass [prometheus.DefaultRegisterer] to expose them via
// promhttp.Handler.
//
// A tick whose callback panics is counted with outcome "callback_panic" in
// jsonpoll_ticks_total. Its fetch time is still observed in
// jsonpoll_fetch_duration_seconds, which times every completed tick
// regardless of outcome.
//
// Returns an error if reg is nil.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *pollerOptions) error {
		if reg == nil {
			return errors.New("registerer cannot be nil")
		}
		o.registerer = reg
		return nil
	}
}
