// Package countdown turns a polled "seconds remaining" value into a locally ticking timer.
//
// The server value is ground truth: every Reset overwrites the local counter, whatever drift
// the local clock accumulated since the previous poll.
package countdown

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/acme/outreach-monitor/internal/scheduler"
)

// TickMillis is the amount removed by one tick.
const TickMillis int64 = 1000

// FromSeconds converts a server value to whole milliseconds, floored at zero.
func FromSeconds(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	ms := math.Round(seconds * 1000)
	if ms >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(ms)
}

// Format renders milliseconds as HH:MM:SS, rounding partial seconds up so a timer with any
// time left never reads zero.
func Format(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	if ms%1000 != 0 {
		total++
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Countdown is one locally ticking timer. Each instance owns its scheduler.
type Countdown struct {
	sched scheduler.Scheduler

	mu        sync.Mutex
	remaining int64
	visible   bool
	onChange  func()
}

// New builds a hidden countdown driven by the given one-second scheduler.
func New(sched scheduler.Scheduler) *Countdown {
	return &Countdown{sched: sched}
}

// OnChange registers a callback invoked after every tick. It must not call back into the
// countdown's Reset.
func (c *Countdown) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Reset replaces the local counter with a fresh server value. nil hides the timer.
// A positive value restarts the tick schedule; zero leaves it stopped.
func (c *Countdown) Reset(seconds *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sched.Stop()
	if seconds == nil {
		c.remaining = 0
		c.visible = false
		return
	}

	c.remaining = FromSeconds(*seconds)
	c.visible = true
	if c.remaining > 0 {
		c.sched.Start(c.tick)
	}
}

// tick is the scheduled callback. A callback whose schedule was replaced by Reset arrives with
// a cancelled ctx and must leave the fresh value alone.
func (c *Countdown) tick(ctx context.Context) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	notify := c.tickLocked()
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Tick removes one second, floored at zero. Reaching zero stops the schedule until the next
// positive Reset.
func (c *Countdown) Tick() {
	c.mu.Lock()
	notify := c.tickLocked()
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (c *Countdown) tickLocked() func() {
	if !c.visible || c.remaining == 0 {
		c.sched.Stop()
		return nil
	}
	c.remaining -= TickMillis
	if c.remaining <= 0 {
		c.remaining = 0
		c.sched.Stop()
	}
	return c.onChange
}

// Snapshot returns the remaining milliseconds and whether the timer is shown.
func (c *Countdown) Snapshot() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.visible
}

// Display returns the formatted timer, or "" when hidden.
func (c *Countdown) Display() string {
	ms, visible := c.Snapshot()
	if !visible {
		return ""
	}
	return Format(ms)
}

// Ticking reports whether the tick schedule is armed.
func (c *Countdown) Ticking() bool {
	return c.sched.Running()
}

// Stop tears the timer down, leaving the last value in place.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched.Stop()
}
