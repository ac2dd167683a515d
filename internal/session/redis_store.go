package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

// RedisStore keeps sessions as JSON values that expire with the session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a store writing keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	value, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: marshal: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if sess.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return fmt.Errorf("session store: session %s already expired: %w", sess.ID, apperrors.ErrValidation)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), value, ttl).Err(); err != nil {
		return fmt.Errorf("session store: set: %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session store: %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w: %w", apperrors.ErrUnavailable, err)
	}
	sess := new(Session)
	if err := json.Unmarshal(raw, sess); err != nil {
		return nil, fmt.Errorf("session store: decode %s: %w", id, err)
	}
	return sess, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session store: delete: %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}
