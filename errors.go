package jsonpoll

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jpalmerr/jsonpoll/internal/poller"
)

// Sentinel errors. Typed errors returned by this package match them with
// [errors.Is].
var (
	// ErrInvalidURL is matched by a [ConfigError] when the target URL cannot be used.
	ErrInvalidURL = errors.New("invalid url")

	// ErrTimeout is matched by a [FetchError] when the request deadline passed.
	ErrTimeout = errors.New("request timed out")

	// ErrTransport is matched by a [FetchError] for DNS, dial, TLS and other
	// transport-level failures.
	ErrTransport = errors.New("transport failure")

	// ErrUnexpectedStatus is matched by a [FetchError] for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrMalformedJSON is matched by a [DecodeError] when the body is not valid JSON.
	ErrMalformedJSON = errors.New("malformed json")

	// ErrSchemaMismatch is matched by a [DecodeError] when valid JSON does not
	// fit the target type.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrCallbackPanic is reported when a [Callback] panics.
	ErrCallbackPanic = errors.New("callback panicked")

	// ErrNilCallback is returned by [Poller.Start] when the callback is nil.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrAlreadyRunning is returned by [Poller.Start] while the poller is running.
	ErrAlreadyRunning = poller.ErrAlreadyRunning

	// ErrStopped is returned by [Poller.Start] after a previous run has ended.
	ErrStopped = poller.ErrStopped
)

// ConfigError is returned by [ConfigBuilder.Build] when the configuration
// cannot be turned into a [Config].
type ConfigError struct {
	// URL is the rejected URL string, verbatim.
	URL string

	// Err describes what is wrong with it.
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrInvalidURL].
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidURL }

// FetchErrorKind classifies a [FetchError].
type FetchErrorKind int

const (
	// FetchTransport is a connection, DNS, TLS or protocol failure.
	FetchTransport FetchErrorKind = iota
	// FetchTimeout means the request timeout elapsed.
	FetchTimeout
	// FetchUnexpectedStatus means the server answered with a non-2xx status.
	FetchUnexpectedStatus
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransport:
		return "transport"
	case FetchTimeout:
		return "timeout"
	case FetchUnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

// FetchError is a failure to obtain a successful HTTP response.
type FetchError struct {
	Kind FetchErrorKind
	URL  string

	// StatusCode is set for FetchUnexpectedStatus, zero otherwise.
	StatusCode int

	// Err is the underlying transport error, if any.
	Err error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchUnexpectedStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel corresponding to Kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == FetchTimeout
	case ErrTransport:
		return e.Kind == FetchTransport
	case ErrUnexpectedStatus:
		return e.Kind == FetchUnexpectedStatus
	}
	return false
}

// DecodeErrorKind classifies a [DecodeError].
type DecodeErrorKind int

const (
	// MalformedJSON means the body is not syntactically valid JSON.
	MalformedJSON DecodeErrorKind = iota
	// SchemaMismatch means the JSON is valid but does not match the target type.
	SchemaMismatch
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedJSON:
		return "malformed_json"
	case SchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// DecodeError is a failure to turn a response body into the target type.
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches the sentinel corresponding to Kind.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformedJSON:
		return e.Kind == MalformedJSON
	case ErrSchemaMismatch:
		return e.Kind == SchemaMismatch
	}
	return false
}

// TickError is what the error handler receives when a tick fails.
type TickError struct {
	// Tick is the 1-based sequence number of the failed tick.
	Tick uint64

	// Err is a *FetchError, a *DecodeError, or wraps ErrCallbackPanic.
	Err error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d: %v", e.Tick, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }

// classifyTransportError wraps a failed request as a FetchError.
func classifyTransportError(url string, err error) *FetchError {
	kind := FetchTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = FetchTimeout
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// outcomeLabel names the result of a tick for logs and metrics.
func outcomeLabel(err error) string {
	var (
		fetchErr  *FetchError
		decodeErr *DecodeError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &fetchErr):
		return fetchErr.Kind.String()
	case errors.As(err, &decodeErr):
		return decodeErr.Kind.String()
	case errors.Is(err, ErrCallbackPanic):
		return "callback_panic"
	default:
		return "error"
	}
}
