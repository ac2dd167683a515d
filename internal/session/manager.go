package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
	"github.com/acme/outreach-monitor/pkg/logger"
)

// Authenticator exchanges the operator password for a backend token.
type Authenticator interface {
	CheckPassword(ctx context.Context, password string) (*upstream.LoginResult, error)
}

// Manager creates, resolves and tears down sessions.
type Manager struct {
	auth      Authenticator
	store     Store
	ttl       time.Duration
	publisher events.Publisher
	logger    *logger.Logger
	now       func() time.Time

	mu    sync.Mutex
	hooks []func(sessionID string)
}

// NewManager constructs a session manager.
func NewManager(auth Authenticator, store Store, ttl time.Duration, pub events.Publisher, lg *logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if pub == nil {
		pub = events.Noop{}
	}
	if lg == nil {
		lg = logger.Nop()
	}
	return &Manager{auth: auth, store: store, ttl: ttl, publisher: pub, logger: lg, now: time.Now}
}

// OnTeardown registers a hook run for every torn down session.
func (m *Manager) OnTeardown(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Init logs in with the operator password.
func (m *Manager) Init(ctx context.Context, password string) (*Session, error) {
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", apperrors.ErrValidation)
	}

	res, err := m.auth.CheckPassword(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("session: check password: %w", err)
	}
	if !res.Success || res.AccessToken == "" {
		msg := res.Message
		if msg == "" {
			msg = "Incorrect password"
		}
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, msg)
	}

	now := m.now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		Token:     res.AccessToken,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: save: %w", err)
	}

	m.publish(ctx, events.TypeSessionOpen, sess.ID.String())
	m.logger.WithContext(ctx).Info("session: opened", zap.String("session_id", sess.ID.String()))
	return sess, nil
}

// Get resolves a session id. Unknown, malformed and expired ids are ErrUnauthorized.
func (m *Manager) Get(ctx context.Context, rawID string) (*Session, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session id", apperrors.ErrUnauthorized)
	}
	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: session expired or unknown", apperrors.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	if sess.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, fmt.Errorf("%w: session expired or unknown", apperrors.ErrUnauthorized)
	}
	return sess, nil
}

// Teardown runs every hook for the session and forgets it.
func (m *Manager) Teardown(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("%w: invalid session id", apperrors.ErrValidation)
	}

	m.mu.Lock()
	hooks := append([]func(string){}, m.hooks...)
	m.mu.Unlock()
	for _, hook := range hooks {
		hook(id.String())
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	m.publish(ctx, events.TypeSessionClose, id.String())
	m.logger.WithContext(ctx).Info("session: closed", zap.String("session_id", id.String()))
	return nil
}

func (m *Manager) publish(ctx context.Context, typ events.Type, sessionID string) {
	evt := events.New(typ, events.OutcomeSucceeded, "")
	evt.SessionID = sessionID
	if err := m.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		m.logger.Warn("session: publish event failed", zap.Error(err))
	}
}
