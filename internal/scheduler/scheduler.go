package scheduler

import (
	"context"
	"sync"
	"time"
)

// Scheduler drives one periodic callback. At most one timer runs per Scheduler.
type Scheduler interface {
	// Start (re)arms the timer; the first callback fires one full interval later.
	// Starting a running scheduler replaces the previous timer.
	Start(fn func(ctx context.Context))
	// Stop cancels the timer and the context handed to any running callback. Idempotent.
	Stop()
	Running() bool
}

// Factory builds a scheduler for the given interval.
type Factory func(interval time.Duration) Scheduler

// NewIntervalFactory returns a Factory producing ticker-backed schedulers.
func NewIntervalFactory() Factory {
	return func(interval time.Duration) Scheduler {
		return NewInterval(interval)
	}
}

// Interval is a ticker-backed Scheduler.
type Interval struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewInterval constructs an interval scheduler. Non-positive intervals fall back to one second.
func NewInterval(interval time.Duration) *Interval {
	if interval <= 0 {
		interval = time.Second
	}
	return &Interval{interval: interval}
}

// Start implements Scheduler.
func (s *Interval) Start(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.run(ctx, fn)
}

func (s *Interval) run(ctx context.Context, fn func(ctx context.Context)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// a tick can race with Stop; never run the callback once cancelled
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}
}

// Stop implements Scheduler. It does not wait for a callback already in progress, so it is
// safe to call from inside the callback.
func (s *Interval) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Interval) stopLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
}

// Running implements Scheduler.
func (s *Interval) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
