// Package identity signs users in and answers "who is the current user".
// Backends differ only in how credentials are checked; sessions are shared.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
}

// Credentials carry either an email/password pair or a provider ID token.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IDToken  string `json:"idToken"`
}

type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Authenticator interface {
	SignIn(ctx context.Context, creds Credentials) (Session, error)
	CurrentUser(token string) (User, bool)
	SignOut(token string)
}

// DefaultSessionTTL bounds how long a session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionTable maps opaque bearer tokens to users.
type SessionTable struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

func NewSessionTable(ttl time.Duration) *SessionTable {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionTable{ttl: ttl, now: time.Now, sessions: make(map[string]Session)}
}

func (t *SessionTable) Create(u User) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Session{Token: uuid.NewString(), User: u, ExpiresAt: t.now().Add(t.ttl)}
	t.sessions[s.Token] = s
	return s
}

func (t *SessionTable) Lookup(token string) (User, bool) {
	if token == "" {
		return User{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[token]
	if !ok {
		return User{}, false
	}
	if !t.now().Before(s.ExpiresAt) {
		delete(t.sessions, token)
		return User{}, false
	}
	return s.User, true
}

func (t *SessionTable) Delete(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, token)
}

type ctxKey struct{}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user attached by WithUser.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.ID != ""
}
