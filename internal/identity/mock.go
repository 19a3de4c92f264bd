package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"adgen/internal/apperrors"
)

const minPasswordLength = 6

var mockNamespace = uuid.MustParse("6f1c64a4-8f36-4c55-9a1e-3c1c1f1d2b7a")

// Mock accepts any well-formed email with a password of at least six
// characters. The same email always maps to the same user ID.
type Mock struct {
	sessions *SessionTable
}

func NewMock(sessions *SessionTable) *Mock {
	if sessions == nil {
		sessions = NewSessionTable(0)
	}
	return &Mock{sessions: sessions}
}

func (m *Mock) SignIn(_ context.Context, creds Credentials) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return Session{}, apperrors.Validation("email")
	}
	if len([]rune(creds.Password)) < minPasswordLength {
		return Session{}, apperrors.Validation("password")
	}

	return m.sessions.Create(User{
		ID:       uuid.NewSHA1(mockNamespace, []byte(email)).String(),
		Email:    email,
		Name:     email[:at],
		Provider: "mock",
	}), nil
}

func (m *Mock) CurrentUser(token string) (User, bool) { return m.sessions.Lookup(token) }

func (m *Mock) SignOut(token string) { m.sessions.Delete(token) }
