package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestIntervalFiresUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	s := NewInterval(10 * time.Millisecond)
	s.Start(func(context.Context) { atomic.AddInt32(&calls, 1) })
	require.True(t, s.Running())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	stoppedAt := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), stoppedAt+1, "at most one in-flight tick may land after Stop")
}

func TestIntervalFirstCallbackWaitsOneInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	s := NewInterval(200 * time.Millisecond)
	s.Start(func(context.Context) { atomic.AddInt32(&calls, 1) })
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestIntervalRestartReplacesTimer(t *testing.T) {
	defer goleak.VerifyNone(t)

	var first, second int32
	s := NewInterval(10 * time.Millisecond)
	s.Start(func(context.Context) { atomic.AddInt32(&first, 1) })
	s.Start(func(context.Context) { atomic.AddInt32(&second, 1) })
	defer s.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&second) >= 2 }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&first), int32(1))
}

func TestIntervalStopFromCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	s := NewInterval(10 * time.Millisecond)
	s.Start(func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
		s.Stop()
		assert.Error(t, ctx.Err())
	})

	require.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewInterval(time.Second)
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}
