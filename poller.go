package jsonpoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/jsonpoll/internal/metrics"
	"github.com/jpalmerr/jsonpoll/internal/poller"
)

// Callback receives every successfully decoded value together with the time
// elapsed since the tick started.
//
// The engine calls it synchronously: the next tick does not begin until the
// callback returns, so invocations never overlap and arrive in tick order.
// ctx is cancelled when the poller is stopping; long-running callbacks should
// honour it.
type Callback[T any] func(ctx context.Context, value T, elapsed time.Duration)

// State is the lifecycle state of a [Poller].
type State = poller.State

// Lifecycle states reported by [Poller.State].
const (
	StateIdle    = poller.StateIdle
	StateRunning = poller.StateRunning
	StateStopped = poller.StateStopped
)

// ConnStats counts connections opened and reused by a poller's transport.
type ConnStats = poller.ConnStats

// Poller repeatedly fetches a JSON resource and decodes it into T.
//
// A Poller owns a single HTTP transport handle for its whole lifetime, so
// consecutive ticks reuse warm connections. It runs a single sequential loop:
// at most one request and one callback are in flight at any time. Independent
// Pollers share no state and may run concurrently.
//
// The typical lifecycle is:
//
//	cfg, err := jsonpoll.Builder("https://api.example.com/ticker").Build()
//	if err != nil {
//	    return err
//	}
//	p, err := jsonpoll.New[Ticker](cfg)
//	if err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	p.Start(ctx, func(ctx context.Context, t Ticker, elapsed time.Duration) {
//	    fmt.Println(t.Price, elapsed)
//	}) // blocks until ctx is cancelled
type Poller[T any] struct {
	cfg          Config
	decoder      Decoder[T]
	client       *poller.Client
	scheduler    *poller.Scheduler
	headers      map[string]string
	logger       *slog.Logger
	errorHandler func(error)
	metrics      *metrics.Poller
}

// New creates a [Poller] that decodes responses with [JSONDecoder].
//
// The transport handle is created here, once, from cfg's pool settings.
// Returns an error if cfg was not produced by [ConfigBuilder.Build] or if
// any option is invalid.
func New[T any](cfg Config, opts ...Option) (*Poller[T], error) {
	return NewWithDecoder[T](cfg, JSONDecoder[T]{}, opts...)
}

// NewWithDecoder is like [New] but decodes responses with dec.
//
// Example:
//
//	p, err := jsonpoll.NewWithDecoder[Ticker](cfg, jsonpoll.StrictJSONDecoder[Ticker]{})
func NewWithDecoder[T any](cfg Config, dec Decoder[T], opts ...Option) (*Poller[T], error) {
	if cfg.url == "" {
		return nil, errors.New("config has no url; create it with Builder(url).Build()")
	}
	if dec == nil {
		return nil, errors.New("decoder cannot be nil")
	}

	o := &pollerOptions{
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	client := poller.NewClient(poller.ClientConfig{
		MaxIdleConnsPerHost: cfg.poolMaxIdlePerHost,
		IdleConnTimeout:     cfg.poolIdleTimeout,
		KeepAlive:           cfg.tcpKeepalive,
	})

	var pm *metrics.Poller
	if o.registerer != nil {
		m, err := metrics.New(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		pm = m.ForURL(cfg.url)
		client.OnConn(pm.ObserveConn)
	}

	return &Poller[T]{
		cfg:          cfg,
		decoder:      dec,
		client:       client,
		scheduler:    poller.NewScheduler(cfg.pollInterval, logger),
		headers:      o.headers,
		logger:       logger,
		errorHandler: o.errorHandler,
		metrics:      pm,
	}, nil
}

// Config returns the configuration the poller was built from.
func (p *Poller[T]) Config() Config {
	return p.cfg
}

// State reports whether the poll loop has not started, is running, or has stopped.
func (p *Poller[T]) State() State {
	return p.scheduler.State()
}

// Stats returns connection counters for the poller's transport handle.
func (p *Poller[T]) Stats() ConnStats {
	return p.client.Stats()
}

// Start runs the poll loop, invoking cb once per successful tick.
//
// Start is a blocking call that runs until ctx is cancelled, then releases
// the poller's pooled connections and returns nil. Each tick fetches the URL,
// checks for a 2xx status and decodes the body; any failure is logged and
// passed to the error handler (see [WithErrorHandler]) and the loop moves on
// to the next tick. No tick failure ever stops the loop.
//
// Ticks are spaced by the poll interval measured from the start of the
// previous tick. If a tick (including its callback) runs past the next
// boundary, the next tick starts immediately.
//
// A Poller runs once. Start returns [ErrNilCallback] for a nil callback,
// [ErrAlreadyRunning] if another Start is active, and [ErrStopped] if a
// previous run has already ended. If ctx is nil, context.Background() is used.
func (p *Poller[T]) Start(ctx context.Context, cb Callback[T]) error {
	if cb == nil {
		return ErrNilCallback
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var running bool
	err := p.scheduler.Run(ctx, func(ctx context.Context, tick poller.Tick) {
		if !running {
			running = true
			p.metrics.SetRunning(true)
			p.logger.Info("poller started",
				"url", p.cfg.url,
				"interval", p.cfg.pollInterval.String(),
				"request_timeout", p.cfg.requestTimeout.String(),
			)
		}
		p.runTick(ctx, tick, cb)
	})
	if err != nil {
		return err
	}

	// the transport handle is released exactly once, when the only run ends
	p.client.Close()
	if running {
		p.metrics.SetRunning(false)
	}
	p.logger.Info("poller stopped", "url", p.cfg.url)
	return nil
}

// FetchOnce performs a single fetch-and-decode outside the poll loop.
//
// It uses the same transport handle, timeout and decoder as the loop and
// returns the same error types. It may be called whether or not the loop is
// running. If ctx is nil, context.Background() is used.
func (p *Poller[T]) FetchOnce(ctx context.Context) (T, time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	value, err := p.fetch(ctx)
	return value, time.Since(start), err
}

// runTick performs one fetch-decode-dispatch cycle.
func (p *Poller[T]) runTick(ctx context.Context, tick poller.Tick, cb Callback[T]) {
	value, err := p.fetch(ctx)
	elapsed := time.Since(tick.Started)

	// cancellation is not a tick failure, and a cancelled tick delivers nothing
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.reportError(tick.Seq, err, elapsed)
		return
	}

	if err := p.invokeCallbackSafe(ctx, tick.Seq, cb, value, elapsed); err != nil {
		p.reportError(tick.Seq, err, elapsed)
		return
	}

	p.metrics.ObserveTick(outcomeLabel(nil), elapsed)
	p.logger.Debug("poll completed",
		"url", p.cfg.url,
		"tick", tick.Seq,
		"elapsed_ms", elapsed.Milliseconds(),
		"lag_ms", tick.Started.Sub(tick.Scheduled).Milliseconds(),
	)
}

// fetch issues the GET and decodes a successful response.
func (p *Poller[T]) fetch(ctx context.Context) (T, error) {
	var zero T

	resp := p.client.Fetch(ctx, p.cfg.url, p.headers, p.cfg.requestTimeout)
	tooLarge := errors.Is(resp.Error, poller.ErrBodyTooLarge)
	if resp.Error != nil && !tooLarge {
		return zero, classifyTransportError(p.cfg.url, resp.Error)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &FetchError{
			Kind:       FetchUnexpectedStatus,
			URL:        p.cfg.url,
			StatusCode: resp.StatusCode,
		}
	}

	if tooLarge {
		// a cut-off body may still parse, so it never reaches the decoder
		return zero, &DecodeError{Kind: MalformedJSON, Err: resp.Error}
	}

	value, err := p.decoder.Decode(resp.Body)
	if err != nil {
		return zero, asDecodeError(err)
	}
	return value, nil
}

// reportError surfaces a failed tick on the out-of-band error path.
func (p *Poller[T]) reportError(seq uint64, err error, elapsed time.Duration) {
	outcome := outcomeLabel(err)
	p.metrics.ObserveTick(outcome, elapsed)

	p.logger.Warn("poll failed",
		"url", p.cfg.url,
		"tick", seq,
		"outcome", outcome,
		"elapsed_ms", elapsed.Milliseconds(),
		"error", err.Error(),
	)

	if p.errorHandler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("error handler panicked",
				"panic", r,
				"url", p.cfg.url,
				"tick", seq,
			)
		}
	}()
	p.errorHandler(&TickError{Tick: seq, Err: err})
}

// invokeCallbackSafe calls cb with panic recovery.
// If cb panics, the full stack trace is logged with a correlation ID and an
// error wrapping ErrCallbackPanic that carries the same ID is returned.
func (p *Poller[T]) invokeCallbackSafe(ctx context.Context, seq uint64, cb Callback[T], value T, elapsed time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			p.logger.Error("callback panic",
				"correlation_id", correlationID,
				"url", p.cfg.url,
				"tick", seq,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			err = fmt.Errorf("%w (correlation_id: %s)", ErrCallbackPanic, correlationID)
		}
	}()
	cb(ctx, value, elapsed)
	return nil
}
