// Package lock provides campaign-scoped locks that keep lifecycle commands from overlapping
// across views and dashboard replicas.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

// Unlock releases a held lock. An error means the lock stays held until its ttl lapses.
type Unlock func(ctx context.Context) error

// Redis holds locks as expiring keys. A crashed holder's lock lapses after the ttl.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis constructs a redis-backed campaign lock.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "outreach:lock:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('GET', key) == ARGV[1] then
  return redis.call('DEL', key)
end
return 0
`)

// TryLock takes the campaign lock without waiting. held is false when someone else has it.
func (l *Redis) TryLock(ctx context.Context, campaignID string) (Unlock, bool, error) {
	key := l.key(campaignID)
	token := uuid.NewString()

	held, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: lock acquire: %w", apperrors.ErrUnavailable, err)
	}
	if !held {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("%w: lock release: %w", apperrors.ErrUnavailable, err)
		}
		return nil
	}, true, nil
}

func (l *Redis) key(campaignID string) string {
	return fmt.Sprintf("%scampaign:%s:command", l.prefix, campaignID)
}

// Local is an in-process lock for single-replica deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal constructs an in-process campaign lock.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// TryLock takes the campaign lock without waiting.
func (l *Local) TryLock(_ context.Context, campaignID string) (Unlock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[campaignID]; ok {
		return nil, false, nil
	}
	l.held[campaignID] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, campaignID)
			l.mu.Unlock()
		})
		return nil
	}, true, nil
}
