// Package jsonpoll repeatedly fetches a JSON resource over HTTP and hands
// each decoded value to a callback, keeping warm connections alive between
// polls.
//
// jsonpoll is designed as an SDK-first library: an immutable [Config] is
// assembled with a builder, a generic [Poller] is constructed from it once,
// and [Poller.Start] runs a single sequential poll loop until its context is
// cancelled.
//
// # Quick Start
//
//	type Ticker struct {
//	    Symbol string  `json:"symbol"`
//	    Price  float64 `json:"price"`
//	}
//
//	cfg, _ := jsonpoll.Builder("https://api.example.com/ticker").
//	    PollIntervalMS(250).
//	    Build()
//	p, _ := jsonpoll.New[Ticker](cfg)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	p.Start(ctx, func(ctx context.Context, t Ticker, elapsed time.Duration) {
//	    fmt.Printf("%s %.2f (%s)\n", t.Symbol, t.Price, elapsed)
//	})
//
// # Configuration
//
// [Builder] applies these defaults, each overridable by one setter:
//
//   - poll interval: 500ms ([ConfigBuilder.PollIntervalMS])
//   - request timeout: 1000ms ([ConfigBuilder.RequestTimeoutMS])
//   - idle connections per host: 1 ([ConfigBuilder.PoolMaxIdlePerHost])
//   - idle connection lifetime: 90s ([ConfigBuilder.PoolIdleTimeoutSecs])
//   - TCP keepalive: 60s ([ConfigBuilder.TCPKeepaliveSecs])
//
// [ConfigBuilder.Build] only rejects unusable URLs ([ErrInvalidURL]).
//
// # Ticks and errors
//
// Each tick issues one GET, requires a 2xx status and decodes the body with
// the poller's [Decoder]. A failed tick never reaches the callback and never
// stops the loop; it is logged and passed to the handler registered with
// [WithErrorHandler] as a [*TickError] wrapping one of:
//
//   - [*FetchError]: [ErrTimeout], [ErrTransport] or [ErrUnexpectedStatus]
//   - [*DecodeError]: [ErrMalformedJSON] or [ErrSchemaMismatch]
//   - [ErrCallbackPanic]: the callback panicked and was recovered
//
// # Architecture
//
// The engine is split across internal packages (under internal/):
//
//   - internal/poller: the shared HTTP transport handle and the tick loop
//   - internal/metrics: Prometheus collectors enabled with [WithRegisterer]
//   - internal/store and internal/server: latest-tick storage and the HTTP
//     API used by the jsonpoll CLI
package jsonpoll
