// Package session holds per-user state for one process: the in-flight
// generation flag and the bot's form draft.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"adgen/internal/creative"
)

// Draft is a partially collected form.
type Draft struct {
	Form       creative.FormData
	Step       int
	Variations bool
}

type Session struct {
	UserID   string
	Username string

	busy atomic.Bool

	mu           sync.Mutex
	draft        *Draft
	lastActivity time.Time
}

// TryBegin claims the session for one generation. It returns false when a
// generation is already in flight.
func (s *Session) TryBegin() bool {
	return s.busy.CompareAndSwap(false, true)
}

// End releases the claim taken by TryBegin.
func (s *Session) End() {
	s.busy.Store(false)
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) Draft() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, false
	}
	return *s.draft, true
}

func (s *Session) SetDraft(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = &d
	s.lastActivity = time.Now()
}

func (s *Session) ClearDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

type Options struct {
	// IdleTTL is how long an idle session is kept by Sweep.
	IdleTTL time.Duration
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		sessions: make(map[string]*Session),
		idleTTL:  ttl,
		now:      time.Now,
	}
}

// Get returns the session of userID, creating it on first use. The same
// pointer is returned for the lifetime of the session.
func (s *Store) Get(userID, username string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.mu.Lock()
	sess.lastActivity = s.now()
	sess.mu.Unlock()
	return sess
}

func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.ClearDraft()
	}
}

// Sweep drops idle sessions that are not generating and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActivity.Before(cutoff)
		sess.mu.Unlock()
		if idle && !sess.Busy() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) getOrCreateLocked(userID, username string) *Session {
	if sess, ok := s.sessions[userID]; ok {
		if sess.Username == "" && username != "" {
			sess.Username = username
		}
		return sess
	}

	sess := &Session{
		UserID:   userID,
		Username: username,
	}
	s.sessions[userID] = sess
	return sess
}
