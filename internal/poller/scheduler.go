package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrAlreadyRunning is returned by [Scheduler.Run] while a loop is active.
	ErrAlreadyRunning = errors.New("poll loop already running")

	// ErrStopped is returned by [Scheduler.Run] once a previous run has ended.
	ErrStopped = errors.New("poll loop already stopped")
)

// State is the lifecycle state of a [Scheduler].
type State int

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota
	// StateRunning means the loop is waiting for a tick or executing one.
	StateRunning
	// StateStopped means the loop exited after its context was cancelled.
	StateStopped
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Tick describes one iteration of the poll loop.
type Tick struct {
	// Seq is the 1-based sequence number of the tick.
	Seq uint64

	// Scheduled is the boundary the tick was scheduled for.
	Scheduled time.Time

	// Started is when the tick actually began executing.
	Started time.Time
}

// TickFunc performs the work of a single tick. It runs on the loop goroutine;
// the next tick does not begin until it returns.
type TickFunc func(ctx context.Context, tick Tick)

// Scheduler drives a single sequential tick loop at a fixed cadence.
//
// Tick boundaries are spaced by the interval from the START of the previous
// tick, so slow ticks do not accumulate drift. If a tick overruns its
// successor's boundary, the successor fires immediately. The first tick fires
// as soon as Run is called.
//
// A Scheduler runs at most once. All methods are safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// NewScheduler creates a [Scheduler] that ticks every interval.
// An interval of zero produces back-to-back ticks.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes fn once per tick until ctx is cancelled.
//
// Run blocks and returns nil after cancellation. Cancellation is observed
// while waiting for a tick boundary and after every tick; fn itself receives
// ctx and is expected to honour it.
func (s *Scheduler) Run(ctx context.Context, fn TickFunc) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopped:
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = StateRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
	}()

	s.logger.Debug("poll loop started", "interval", s.interval.String())
	defer s.logger.Debug("poll loop stopped")

	next := time.Now()
	for seq := uint64(1); ; seq++ {
		if !waitUntil(ctx, next) {
			return nil
		}

		started := time.Now()
		fn(ctx, Tick{Seq: seq, Scheduled: next, Started: started})

		if ctx.Err() != nil {
			return nil
		}
		next = started.Add(s.interval)
	}
}

// waitUntil blocks until deadline or ctx is done. It reports false if ctx
// ended first.
func waitUntil(ctx context.Context, deadline time.Time) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
