package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"adgen/internal/apperrors"
)

const verifyTimeout = 5 * time.Second

// TokenVerifier is the part of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// NewFirebaseVerifier builds a Firebase Admin auth client.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*firebaseauth.Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return client, nil
}

// Firebase exchanges a client-side Firebase ID token for a session.
type Firebase struct {
	verifier TokenVerifier
	sessions *SessionTable
	logger   *zap.Logger
}

func NewFirebase(verifier TokenVerifier, sessions *SessionTable, logger *zap.Logger) *Firebase {
	if sessions == nil {
		sessions = NewSessionTable(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Firebase{verifier: verifier, sessions: sessions, logger: logger.Named("firebase")}
}

func (f *Firebase) SignIn(ctx context.Context, creds Credentials) (Session, error) {
	idToken := strings.TrimSpace(creds.IDToken)
	if idToken == "" {
		return Session{}, apperrors.Validation("idToken")
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	token, err := f.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		f.logger.Info("id token rejected", zap.Bool("expired", firebaseauth.IsIDTokenExpired(err)), zap.Error(err))
		return Session{}, apperrors.Unauthenticated()
	}

	user := User{ID: token.UID, Provider: "firebase"}
	if email, ok := token.Claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		user.Name = name
	}
	return f.sessions.Create(user), nil
}

func (f *Firebase) CurrentUser(token string) (User, bool) { return f.sessions.Lookup(token) }

func (f *Firebase) SignOut(token string) { f.sessions.Delete(token) }
