// Package session holds the explicit per-operator context: the backend access token and the
// views mounted on its behalf.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is one logged-in operator.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions. Get returns apperrors.ErrNotFound for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
