package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/scheduler/schedulertest"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

func testOptions(rec *schedulertest.Recorder) Options {
	return Options{PollInterval: pollEvery, TickInterval: tickEvery, AutoRefresh: true, Schedulers: rec.Factory()}
}

func TestRegistryScopesViewsToSession(t *testing.T) {
	reg := NewRegistry(0, nil)
	defer reg.Close()
	rec := &schedulertest.Recorder{}

	v, err := reg.Open(context.Background(), "alice", "c1", newFakeSource(domain.CampaignStatusInProgress), testOptions(rec))
	require.NoError(t, err)

	got, err := reg.Get("alice", v.ID())
	require.NoError(t, err)
	assert.Same(t, v, got)

	_, err = reg.Get("bob", v.ID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, reg.Remove("bob", v.ID()), apperrors.ErrNotFound)

	require.NoError(t, reg.Remove("alice", v.ID()))
	assert.False(t, v.Mounted())
	assert.Zero(t, reg.Len())
}

func TestRegistryDoesNotKeepFailedMounts(t *testing.T) {
	reg := NewRegistry(0, nil)
	defer reg.Close()

	src := newFakeSource(domain.CampaignStatusInProgress)
	src.setGetErr(apperrors.ErrNotFound)

	_, err := reg.Open(context.Background(), "alice", "c1", src, testOptions(&schedulertest.Recorder{}))
	require.ErrorIs(t, err, ErrInitialLoad)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, reg.Len())
}

func TestRegistryUnmountSession(t *testing.T) {
	reg := NewRegistry(0, nil)
	defer reg.Close()
	rec := &schedulertest.Recorder{}

	a1, err := reg.Open(context.Background(), "alice", "c1", newFakeSource(domain.CampaignStatusInProgress), testOptions(rec))
	require.NoError(t, err)
	a2, err := reg.Open(context.Background(), "alice", "c2", newFakeSource(domain.CampaignStatusPaused), testOptions(rec))
	require.NoError(t, err)
	b1, err := reg.Open(context.Background(), "bob", "c1", newFakeSource(domain.CampaignStatusInProgress), testOptions(rec))
	require.NoError(t, err)

	assert.Equal(t, 2, reg.UnmountSession("alice"))
	assert.False(t, a1.Mounted())
	assert.False(t, a2.Mounted())
	assert.True(t, b1.Mounted())
	assert.Equal(t, 1, reg.Len())

	for _, m := range rec.For(pollEvery)[:2] {
		assert.False(t, m.Running())
	}
}

func TestRegistryCapacity(t *testing.T) {
	reg := NewRegistry(1, nil)
	defer reg.Close()
	rec := &schedulertest.Recorder{}

	_, err := reg.Open(context.Background(), "alice", "c1", newFakeSource(domain.CampaignStatusInProgress), testOptions(rec))
	require.NoError(t, err)

	_, err = reg.Open(context.Background(), "alice", "c2", newFakeSource(domain.CampaignStatusInProgress), testOptions(rec))
	assert.ErrorIs(t, err, ErrTooManyViews)
}

func TestRegistryCloseUnmountsAll(t *testing.T) {
	reg := NewRegistry(0, nil)
	rec := &schedulertest.Recorder{}
	v, err := reg.Open(context.Background(), "alice", "c1", newFakeSource(domain.CampaignStatusInProgress), testOptions(rec))
	require.NoError(t, err)

	reg.Close()
	assert.False(t, v.Mounted())
	assert.Zero(t, reg.Len())
}
