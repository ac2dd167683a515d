package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/acme/outreach-monitor/pkg/errors"
	"github.com/acme/outreach-monitor/pkg/logger"
)

// ErrTooManyViews is returned when the registry is at capacity.
var ErrTooManyViews = errors.New("monitor: too many mounted views")

type entry struct {
	view      *View
	sessionID string
}

// Registry tracks the mounted views of every session.
type Registry struct {
	max    int
	logger *logger.Logger

	mu    sync.Mutex
	views map[string]entry
}

// NewRegistry constructs a registry holding at most max views; max <= 0 means unbounded.
func NewRegistry(max int, lg *logger.Logger) *Registry {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Registry{max: max, logger: lg, views: make(map[string]entry)}
}

// Open builds and mounts a view for the session. Nothing is registered if the initial load fails.
func (r *Registry) Open(ctx context.Context, sessionID, campaignID string, source Source, opts Options) (*View, error) {
	if r.full() {
		return nil, ErrTooManyViews
	}
	opts.SessionID = sessionID
	v := NewView(campaignID, source, opts)
	if err := v.Mount(ctx); err != nil {
		return nil, err
	}
	if err := r.add(sessionID, v); err != nil {
		v.Unmount()
		return nil, err
	}
	return v, nil
}

func (r *Registry) full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max > 0 && len(r.views) >= r.max
}

func (r *Registry) add(sessionID string, v *View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.views) >= r.max {
		return ErrTooManyViews
	}
	r.views[v.ID()] = entry{view: v, sessionID: sessionID}
	return nil
}

// Get returns a view owned by the session. Views of other sessions are reported as missing.
func (r *Registry) Get(sessionID, viewID string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.views[viewID]
	if !ok || e.sessionID != sessionID {
		return nil, fmt.Errorf("monitor: view %s: %w", viewID, apperrors.ErrNotFound)
	}
	return e.view, nil
}

// Remove unmounts and forgets a view.
func (r *Registry) Remove(sessionID, viewID string) error {
	r.mu.Lock()
	e, ok := r.views[viewID]
	if !ok || e.sessionID != sessionID {
		r.mu.Unlock()
		return fmt.Errorf("monitor: view %s: %w", viewID, apperrors.ErrNotFound)
	}
	delete(r.views, viewID)
	r.mu.Unlock()

	e.view.Unmount()
	return nil
}

// UnmountSession tears down every view of a session and reports how many were removed.
func (r *Registry) UnmountSession(sessionID string) int {
	r.mu.Lock()
	var doomed []*View
	for id, e := range r.views {
		if e.sessionID == sessionID {
			doomed = append(doomed, e.view)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range doomed {
		v.Unmount()
	}
	if len(doomed) > 0 {
		r.logger.Info("monitor: session views unmounted", zap.String("session_id", sessionID), zap.Int("count", len(doomed)))
	}
	return len(doomed)
}

// Len reports the number of mounted views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close unmounts everything.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.views
	r.views = make(map[string]entry)
	r.mu.Unlock()

	for _, e := range all {
		e.view.Unmount()
	}
}
