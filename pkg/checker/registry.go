package checker

import (
	"sync"
	"time"
)

// ErrDuplicateID is returned when a session id is already in use.
// Practically unreachable with random ids, but handled all the same.
var ErrDuplicateID = NewError(KindFatal, "session id already in use")

// Registry is the concurrent keyed store of live sessions. The mutex guards
// only the map: anything that touches a session's page (release, automation
// calls) happens outside the lock so a slow browser never blocks the
// registry.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
	ttl         time.Duration
}

// NewRegistry creates a registry with the default session cap and TTL.
func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		ttl:         DefaultSessionTTL,
	}
}

// SetMaxSessions caps the number of concurrent live sessions.
func (r *Registry) SetMaxSessions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxSessions = n
}

// SetTTL sets the session time-to-live, measured from creation.
func (r *Registry) SetTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttl = ttl
}

// TTL returns the configured session time-to-live.
func (r *Registry) TTL() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl
}

// Create registers a new session owning the given page. The caller keeps
// responsibility for releasing the page if Create fails.
func (r *Registry) Create(id string, page PageAutomator, fields FormFields, maxRetries int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, ErrDuplicateID
	}
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return nil, &Error{
			Kind:       KindFatal,
			Message:    "maximum number of concurrent sessions reached",
			Suggestion: "retry after an in-flight check completes or expires",
		}
	}

	session := newSession(id, page, fields, maxRetries)
	r.sessions[id] = session
	return session, nil
}

// Get looks up a live session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, notFound(id)
	}
	return session, nil
}

// Remove deletes the entry and returns the session so the caller can release
// it outside the lock. Remove-then-release ordering, never release-while-locked.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, notFound(id)
	}
	delete(r.sessions, id)
	return session, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ListActive returns diagnostic info for every live session.
func (r *Registry) ListActive() []SessionInfo {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	ttl := r.ttl
	r.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info(ttl))
	}
	return infos
}

// takeExpired removes every session past the TTL and returns them for the
// caller (the reaper) to release.
func (r *Registry) takeExpired() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*Session
	for id, s := range r.sessions {
		if s.Expired(r.ttl) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	return expired
}

// Drain removes every session and returns them for release. Used on shutdown.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		drained = append(drained, s)
		delete(r.sessions, id)
	}
	return drained
}

func notFound(id string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    "session " + id + " not found",
		Suggestion: "the session may have completed, been cancelled or expired; start a new check",
	}
}
