// Package schedulertest provides a hand-driven Scheduler for deterministic tests.
package schedulertest

import (
	"context"
	"sync"
	"time"

	"github.com/acme/outreach-monitor/internal/scheduler"
)

// Manual is a Scheduler that only fires when told to.
type Manual struct {
	Interval time.Duration

	mu     sync.Mutex
	fn     func(ctx context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	starts int
}

// NewManual returns a stopped manual scheduler.
func NewManual(interval time.Duration) *Manual {
	return &Manual{Interval: interval}
}

// Start implements scheduler.Scheduler.
func (m *Manual) Start(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.fn = fn
	m.starts++
}

// Stop implements scheduler.Scheduler.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.fn, m.ctx, m.cancel = nil, nil, nil
}

// Running implements scheduler.Scheduler.
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// Starts reports how many times Start was called.
func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Fire runs the callback once, synchronously. It reports false when stopped.
func (m *Manual) Fire() bool {
	m.mu.Lock()
	fn, ctx := m.fn, m.ctx
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(ctx)
	return true
}

// FireN fires up to n times and returns how many callbacks ran.
func (m *Manual) FireN(n int) int {
	fired := 0
	for i := 0; i < n; i++ {
		if !m.Fire() {
			break
		}
		fired++
	}
	return fired
}

// Recorder is a scheduler.Factory that keeps every Manual it builds, in creation order.
type Recorder struct {
	mu    sync.Mutex
	built []*Manual
}

// Factory returns the recording factory.
func (r *Recorder) Factory() scheduler.Factory {
	return func(interval time.Duration) scheduler.Scheduler {
		m := NewManual(interval)
		r.mu.Lock()
		r.built = append(r.built, m)
		r.mu.Unlock()
		return m
	}
}

// For returns the schedulers built with the given interval, in creation order.
func (r *Recorder) For(interval time.Duration) []*Manual {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Manual
	for _, m := range r.built {
		if m.Interval == interval {
			out = append(out, m)
		}
	}
	return out
}
