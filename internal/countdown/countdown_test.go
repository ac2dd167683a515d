package countdown

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/outreach-monitor/internal/scheduler/schedulertest"
)

func seconds(v float64) *float64 { return &v }

func TestFormatCeilsToWholeSeconds(t *testing.T) {
	cases := map[int64]string{
		0:          "00:00:00",
		1:          "00:00:01",
		999:        "00:00:01",
		1000:       "00:00:01",
		1001:       "00:00:02",
		59_000:     "00:00:59",
		60_000:     "00:01:00",
		3_599_001:  "01:00:00",
		90_061_000: "25:01:01",
		-5:         "00:00:00",
	}
	for ms, want := range cases {
		assert.Equal(t, want, Format(ms), "ms=%d", ms)
	}
}

func TestFormatShape(t *testing.T) {
	shape := regexp.MustCompile(`^\d{2,}:\d{2}:\d{2}$`)
	for ms := int64(0); ms < 10_000_000; ms += 7_777 {
		require.Regexp(t, shape, Format(ms))
	}
}

func TestFromSeconds(t *testing.T) {
	assert.Equal(t, int64(90_000), FromSeconds(90))
	assert.Equal(t, int64(1_235), FromSeconds(1.2346))
	assert.Equal(t, int64(0), FromSeconds(-3))
	assert.Equal(t, int64(0), FromSeconds(0.0001))
}

func TestResetNilHides(t *testing.T) {
	sched := schedulertest.NewManual(time.Second)
	c := New(sched)

	c.Reset(nil)
	assert.Equal(t, "", c.Display())
	assert.False(t, sched.Running())

	c.Reset(seconds(5))
	assert.Equal(t, "00:00:05", c.Display())
	assert.True(t, sched.Running())

	c.Reset(nil)
	assert.Equal(t, "", c.Display())
	assert.False(t, sched.Running())
}

func TestTickNeverGoesNegative(t *testing.T) {
	sched := schedulertest.NewManual(time.Second)
	c := New(sched)

	c.Reset(seconds(90))
	fired := sched.FireN(91)

	assert.Equal(t, 90, fired, "schedule must stop once zero is reached")
	ms, visible := c.Snapshot()
	assert.True(t, visible)
	assert.Equal(t, int64(0), ms)
	assert.Equal(t, "00:00:00", c.Display())
	assert.False(t, c.Ticking())

	// a stray manual tick after zero changes nothing
	c.Tick()
	ms, _ = c.Snapshot()
	assert.Equal(t, int64(0), ms)
}

func TestTickSubtractsExactlyOneSecond(t *testing.T) {
	sched := schedulertest.NewManual(time.Second)
	c := New(sched)

	c.Reset(seconds(2.5))
	sched.Fire()
	ms, _ := c.Snapshot()
	assert.Equal(t, int64(1_500), ms)
	assert.Equal(t, "00:00:02", c.Display())

	sched.Fire()
	ms, _ = c.Snapshot()
	assert.Equal(t, int64(500), ms)
	assert.Equal(t, "00:00:01", c.Display())

	sched.Fire()
	ms, _ = c.Snapshot()
	assert.Equal(t, int64(0), ms)
	assert.False(t, sched.Running())
}

func TestResetOverwritesDrift(t *testing.T) {
	sched := schedulertest.NewManual(time.Second)
	c := New(sched)

	c.Reset(seconds(60))
	sched.FireN(10)
	ms, _ := c.Snapshot()
	require.Equal(t, int64(50_000), ms)

	c.Reset(seconds(58))
	ms, _ = c.Snapshot()
	assert.Equal(t, int64(58_000), ms, "a new poll value replaces the local counter")
	assert.Equal(t, 2, sched.Starts(), "each positive reset arms a fresh tick schedule")
}

func TestResumesOnlyAfterPositiveReset(t *testing.T) {
	sched := schedulertest.NewManual(time.Second)
	c := New(sched)

	c.Reset(seconds(1))
	sched.Fire()
	require.False(t, sched.Running())

	c.Reset(seconds(0))
	assert.False(t, sched.Running())
	assert.Equal(t, "00:00:00", c.Display())

	c.Reset(seconds(3))
	assert.True(t, sched.Running())
}

func TestInstancesAreIndependent(t *testing.T) {
	nextSched := schedulertest.NewManual(time.Second)
	finishSched := schedulertest.NewManual(time.Second)
	next, finish := New(nextSched), New(finishSched)

	next.Reset(seconds(10))
	finish.Reset(seconds(100))
	nextSched.FireN(3)

	nextMs, _ := next.Snapshot()
	finishMs, _ := finish.Snapshot()
	assert.Equal(t, int64(7_000), nextMs)
	assert.Equal(t, int64(100_000), finishMs)
}

func TestOnChangeFiresPerTick(t *testing.T) {
	sched := schedulertest.NewManual(time.Second)
	c := New(sched)
	changes := 0
	c.OnChange(func() { changes++ })

	c.Reset(seconds(3))
	sched.FireN(5)
	assert.Equal(t, 3, changes)
}

// heldScheduler keeps every callback it was started with, so a test can deliver a tick that
// was already past the ticker's cancellation check when the schedule was replaced.
type heldScheduler struct {
	fns  []func(ctx context.Context)
	ctxs []context.Context
	stop context.CancelFunc
}

func (s *heldScheduler) Start(fn func(ctx context.Context)) {
	s.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	s.fns = append(s.fns, fn)
	s.ctxs = append(s.ctxs, ctx)
	s.stop = cancel
}

func (s *heldScheduler) Stop() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *heldScheduler) Running() bool { return s.stop != nil }

func TestStaleTickAfterResetIsDropped(t *testing.T) {
	sched := &heldScheduler{}
	c := New(sched)

	c.Reset(seconds(90))
	c.Reset(seconds(60))
	require.Len(t, sched.fns, 2)
	require.Error(t, sched.ctxs[0].Err())

	sched.fns[0](sched.ctxs[0])
	ms, visible := c.Snapshot()
	assert.True(t, visible)
	assert.Equal(t, int64(60_000), ms)
	assert.True(t, sched.Running(), "a stale tick must not stop the fresh schedule")

	sched.fns[1](sched.ctxs[1])
	ms, _ = c.Snapshot()
	assert.Equal(t, int64(59_000), ms)
}
