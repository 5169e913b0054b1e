package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/jsonpoll"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockTickerServer(":9999")
	time.Sleep(100 * time.Millisecond)

	cfg, err := jsonpoll.Builder("http://localhost:9999/ticker?symbol=DEMO").
		PollIntervalMS(250).
		RequestTimeoutMS(1000).
		Build()
	if err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var timeouts, badStatus, badJSON int
	p, err := jsonpoll.New[ticker](cfg,
		jsonpoll.WithErrorHandler(func(err error) {
			switch {
			case errors.Is(err, jsonpoll.ErrTimeout):
				timeouts++
			case errors.Is(err, jsonpoll.ErrUnexpectedStatus):
				badStatus++
			case errors.Is(err, jsonpoll.ErrMalformedJSON):
				badJSON++
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  jsonpoll demo: polling http://localhost:9999/ticker every 250ms")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = p.Start(ctx, func(ctx context.Context, t ticker, elapsed time.Duration) {
		fmt.Printf("  %s  %-5s %8.2f  (%s)\n",
			t.Timestamp.Format(time.TimeOnly), t.Symbol, t.Price, elapsed.Round(time.Millisecond))
	})
	if err != nil {
		slog.Error("poller error", "error", err)
		os.Exit(1)
	}

	stats := p.Stats()
	fmt.Println()
	fmt.Printf("  connections: %d opened, %d reused\n", stats.Opened, stats.Reused)
	fmt.Printf("  skipped ticks: %d timeouts, %d bad status, %d malformed\n", timeouts, badStatus, badJSON)
}
