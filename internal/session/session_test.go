package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

type fakeAuth struct {
	result *upstream.LoginResult
	err    error
	calls  int
}

func (f *fakeAuth) CheckPassword(context.Context, string) (*upstream.LoginResult, error) {
	f.calls++
	return f.result, f.err
}

func TestInitStoresSession(t *testing.T) {
	rec := &events.Recorder{}
	store := NewMemoryStore()
	m := NewManager(&fakeAuth{result: &upstream.LoginResult{Success: true, AccessToken: "tok"}}, store, time.Hour, rec, nil)

	sess, err := m.Init(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	assert.WithinDuration(t, sess.CreatedAt.Add(time.Hour), sess.ExpiresAt, time.Second)

	got, err := m.Get(context.Background(), sess.ID.String())
	require.NoError(t, err)
	assert.Equal(t, sess.Token, got.Token)
	assert.Equal(t, []events.Outcome{events.OutcomeSucceeded}, rec.Outcomes(events.TypeSessionOpen))
}

func TestInitRejectsBadPassword(t *testing.T) {
	auth := &fakeAuth{result: &upstream.LoginResult{Success: false, Message: "Incorrect password"}}
	m := NewManager(auth, NewMemoryStore(), time.Hour, nil, nil)

	_, err := m.Init(context.Background(), "wrong")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "Incorrect password")

	_, err = m.Init(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 1, auth.calls)
}

func TestInitSuccessWithoutTokenIsUnauthorized(t *testing.T) {
	m := NewManager(&fakeAuth{result: &upstream.LoginResult{Success: true}}, NewMemoryStore(), time.Hour, nil, nil)

	_, err := m.Init(context.Background(), "secret")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestInitPropagatesBackendFailure(t *testing.T) {
	m := NewManager(&fakeAuth{err: apperrors.ErrUnavailable}, NewMemoryStore(), time.Hour, nil, nil)

	_, err := m.Init(context.Background(), "secret")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestGetRejectsUnknownAndMalformed(t *testing.T) {
	m := NewManager(&fakeAuth{}, NewMemoryStore(), time.Hour, nil, nil)

	_, err := m.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = m.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestExpiredSessionIsUnauthorized(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(&fakeAuth{result: &upstream.LoginResult{Success: true, AccessToken: "tok"}}, store, time.Minute, nil, nil)

	sess, err := m.Init(context.Background(), "secret")
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Minute)
	store.now = func() time.Time { return later }
	m.now = func() time.Time { return later }

	_, err = m.Get(context.Background(), sess.ID.String())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestTeardownRunsHooks(t *testing.T) {
	rec := &events.Recorder{}
	m := NewManager(&fakeAuth{result: &upstream.LoginResult{Success: true, AccessToken: "tok"}}, NewMemoryStore(), time.Hour, rec, nil)
	var torn []string
	m.OnTeardown(func(id string) { torn = append(torn, id) })

	sess, err := m.Init(context.Background(), "secret")
	require.NoError(t, err)

	require.NoError(t, m.Teardown(context.Background(), sess.ID.String()))
	assert.Equal(t, []string{sess.ID.String()}, torn)

	_, err = m.Get(context.Background(), sess.ID.String())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Len(t, rec.Outcomes(events.TypeSessionClose), 1)

	assert.ErrorIs(t, m.Teardown(context.Background(), "bogus"), apperrors.ErrValidation)
}

// storeContract is shared by every Store implementation.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	sess := &Session{
		ID:        uuid.New(),
		Token:     "tok",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		ExpiresAt: time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond),
	}

	require.NoError(t, store.Save(ctx, sess))
	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, got.Token)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	require.NoError(t, store.Delete(ctx, sess.ID), "delete is idempotent")
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("OUTREACH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OUTREACH_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	prefix := "outreach:test:" + uuid.NewString() + ":"
	store := NewRedisStore(client, prefix)
	storeContract(t, store)

	expired := &Session{ID: uuid.New(), ExpiresAt: time.Now().Add(-time.Second)}
	assert.ErrorIs(t, store.Save(context.Background(), expired), apperrors.ErrValidation)
}
