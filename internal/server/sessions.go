package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
)

var gallerySessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "picsum_gallery_sessions",
	Help: "Open gallery sessions on the HTTP service",
})

// Session is one gallery opened over HTTP.
type Session struct {
	ID      string
	Gallery *pagination.Controller
	Created time.Time

	lastUsed time.Time
}

// SessionStore keeps open galleries keyed by id. Galleries unused for
// longer than the idle TTL are closed by Expire.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty store. A zero idleTTL keeps sessions
// until they are deleted.
func NewSessionStore(idleTTL time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Create registers a gallery under a fresh id.
func (s *SessionStore) Create(gallery *pagination.Controller) *Session {
	now := s.now()
	session := &Session{
		ID:       uuid.NewString(),
		Gallery:  gallery,
		Created:  now,
		lastUsed: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	gallerySessions.Inc()
	return session
}

// Get returns the session and marks it used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if ok {
		session.lastUsed = s.now()
	}
	return session, ok
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Delete removes the session and closes its gallery. It reports whether
// the id was known.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	gallerySessions.Dec()
	_ = session.Gallery.Close()
	return true
}

// Expire closes sessions idle for longer than the TTL and returns their ids.
func (s *SessionStore) Expire() []string {
	if s.idleTTL <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.idleTTL)

	var expired []*Session
	s.mu.Lock()
	for id, session := range s.sessions {
		if session.lastUsed.Before(cutoff) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, session := range expired {
		gallerySessions.Dec()
		_ = session.Gallery.Close()
		ids = append(ids, session.ID)
	}
	return ids
}

// Run calls Expire every interval until ctx is done, passing expired ids
// to onExpire when it is non-nil.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration, onExpire func(ids []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := s.Expire(); len(ids) > 0 && onExpire != nil {
				onExpire(ids)
			}
		}
	}
}

// CloseAll closes every open gallery.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		gallerySessions.Dec()
		_ = session.Gallery.Close()
	}
}
