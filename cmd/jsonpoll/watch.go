package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/jsonpoll"
	"github.com/jpalmerr/jsonpoll/config"
	"github.com/jpalmerr/jsonpoll/internal/server"
	"github.com/jpalmerr/jsonpoll/internal/store"
)

// watchLine is printed to stdout for every successful tick.
type watchLine struct {
	Tick      uint64          `json:"tick"`
	ElapsedMs int64           `json:"elapsed_ms"`
	Value     json.RawMessage `json:"value"`
}

// watchCmd runs the poll loop until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll a URL and print every decoded response",
	Long: `Poll a JSON URL and print one line per successful tick:

  {"tick":1,"elapsed_ms":12,"value":{...}}

Failed ticks are logged to stderr and polling continues. If listen is set
(in the config file or with --listen), an API server exposes /api/latest,
/api/sse, /metrics and /healthz.

The command runs until interrupted (Ctrl+C), receives SIGTERM, or --count
successful ticks have been printed.

Example:
  jsonpoll watch -c config.yaml
  jsonpoll watch --url http://localhost:8081/ticker --poll-interval 250ms --field price`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addSourceFlags(watchCmd)
	watchCmd.Flags().Duration("poll-interval", 0, "override poll_interval")
	watchCmd.Flags().Int("listen", 0, "override listen port for the API server (0 = off)")
	watchCmd.Flags().Uint64("count", 0, "stop after this many successful ticks (0 = run until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyWatchOverrides(cmd, cfg); err != nil {
		return err
	}
	count, _ := cmd.Flags().GetUint64("count")

	pollCfg, err := config.BuildConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build poller config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	st := store.NewMemoryStore()

	w := &tickWriter{
		out:    cmd.OutOrStdout(),
		url:    pollCfg.URL(),
		field:  cfg.Field,
		store:  st,
		limit:  count,
		done:   cancel,
		logger: logger,
	}

	opts := append(config.Options(cfg),
		jsonpoll.WithLogger(logger),
		jsonpoll.WithRegisterer(reg),
		jsonpoll.WithErrorHandler(w.onError),
	)
	p, err := jsonpoll.New[json.RawMessage](pollCfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	if cfg.Listen > 0 {
		srv := server.NewServer(st, cfg.Listen, reg, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	logger.Info("watching",
		"url", pollCfg.URL(),
		"poll_interval", pollCfg.PollInterval().String(),
		"request_timeout", pollCfg.RequestTimeout().String(),
		"listen", cfg.Listen,
	)

	if err := p.Start(ctx, w.onValue); err != nil {
		return fmt.Errorf("poller error: %w", err)
	}
	if w.err != nil {
		return w.err
	}

	stats := p.Stats()
	logger.Info("shutdown complete",
		"ticks", w.tick,
		"connections_opened", stats.Opened,
		"connections_reused", stats.Reused,
	)
	return nil
}

// applyWatchOverrides copies watch-only flags onto cfg and revalidates it.
func applyWatchOverrides(cmd *cobra.Command, cfg *config.Config) error {
	changed := false
	if cmd.Flags().Changed("poll-interval") {
		d, _ := cmd.Flags().GetDuration("poll-interval")
		interval := config.Duration(d)
		cfg.PollInterval = &interval
		changed = true
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetInt("listen")
		changed = true
	}
	if !changed {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// tickWriter turns poller callbacks into stdout lines and store records.
// Both of its callbacks run on the poll loop goroutine.
type tickWriter struct {
	out    io.Writer
	url    string
	field  string
	store  store.Store
	limit  uint64
	done   context.CancelFunc
	logger *slog.Logger

	mu        sync.Mutex
	tick      uint64
	delivered uint64
	err       error
}

func (w *tickWriter) onValue(_ context.Context, value json.RawMessage, elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// every tick ends in exactly one of onValue or onError
	w.tick++

	selected, err := selectField(value, w.field)
	if err != nil {
		w.logger.Warn("field not selected", "tick", w.tick, "field", w.field, "error", err)
		w.recordError(err)
		return
	}

	if err := json.NewEncoder(w.out).Encode(watchLine{
		Tick:      w.tick,
		ElapsedMs: elapsed.Milliseconds(),
		Value:     selected,
	}); err != nil {
		// stdout is gone, nothing left to do
		w.err = fmt.Errorf("failed to write output: %w", err)
		w.done()
		return
	}

	w.store.Update(store.TickRecord{
		URL:       w.url,
		Tick:      w.tick,
		Value:     selected,
		ElapsedMs: elapsed.Milliseconds(),
		CheckedAt: time.Now(),
	})

	w.delivered++
	if w.limit > 0 && w.delivered >= w.limit {
		w.done()
	}
}

func (w *tickWriter) onError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var tickErr *jsonpoll.TickError
	if errors.As(err, &tickErr) {
		w.tick = tickErr.Tick
	} else {
		w.tick++
	}
	w.recordError(err)
}

func (w *tickWriter) recordError(err error) {
	msg := err.Error()
	w.store.Update(store.TickRecord{
		URL:       w.url,
		Tick:      w.tick,
		CheckedAt: time.Now(),
		Error:     &msg,
	})
}
