package push

import (
	"context"
	"errors"
	"sync"

	"github.com/cadenza-fm/cadenza/internal/observe"
)

// ErrMissingUserID is returned by [Registry.Register] when the connection
// carries no user identity.
var ErrMissingUserID = errors.New("push: session has no user id")

// Registry tracks the live push sessions of every connected user. A user may
// hold several sessions at once (multiple devices or tabs). All methods are
// safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Session // userID -> sessionID -> session

	metrics *observe.Metrics
}

// NewRegistry creates an empty session registry. metrics may be nil.
func NewRegistry(metrics *observe.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]map[string]Session),
		metrics:  metrics,
	}
}

// Register adds a session under the given user. Connections without a user
// identity are rejected with [ErrMissingUserID]. Registering a session ID
// that already exists for the user replaces the old session.
func (r *Registry) Register(userID string, s Session) error {
	if userID == "" {
		return ErrMissingUserID
	}

	r.mu.Lock()
	byID, ok := r.sessions[userID]
	if !ok {
		byID = make(map[string]Session)
		r.sessions[userID] = byID
	}
	_, replaced := byID[s.ID()]
	byID[s.ID()] = s
	r.mu.Unlock()

	if r.metrics != nil && !replaced {
		r.metrics.ActiveSessions.Add(context.Background(), 1)
	}
	return nil
}

// Unregister removes a session. Unknown user or session IDs are a no-op, so
// disconnect paths can call it unconditionally.
func (r *Registry) Unregister(userID, sessionID string) {
	r.mu.Lock()
	byID, ok := r.sessions[userID]
	if ok {
		if _, present := byID[sessionID]; present {
			delete(byID, sessionID)
			if len(byID) == 0 {
				delete(r.sessions, userID)
			}
			r.mu.Unlock()
			if r.metrics != nil {
				r.metrics.ActiveSessions.Add(context.Background(), -1)
			}
			return
		}
	}
	r.mu.Unlock()
}

// SessionsFor returns a snapshot of the user's live sessions. The returned
// slice is safe to iterate without holding any registry lock.
func (r *Registry) SessionsFor(userID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.sessions[userID]
	if len(byID) == 0 {
		return nil
	}
	out := make([]Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return out
}

// Count reports the total number of live sessions across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, byID := range r.sessions {
		n += len(byID)
	}
	return n
}
