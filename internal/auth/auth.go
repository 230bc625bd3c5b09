// Package auth handles Google sign-in and the signed session cookie that
// identifies a user across autocomplete calls. OAuth tokens stay server
// side, keyed by session id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const stateCookie = "oauth_state"

var (
	// ErrStateMismatch is returned when the callback state does not match
	// the one issued at login.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrNoCredentials is returned when a session has no stored token.
	ErrNoCredentials = errors.New("session has no document credentials")
	// ErrOAuthDisabled is returned by the Google flow when no client is
	// configured.
	ErrOAuthDisabled = errors.New("google sign-in is not configured")
)

// TokenStore keeps OAuth tokens per session.
type TokenStore interface {
	GetToken(ctx context.Context, sessionID string) (*oauth2.Token, error)
	PutToken(ctx context.Context, sessionID string, tok *oauth2.Token) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Verifier validates a Google ID token for an audience.
type Verifier interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks ID tokens against Google's published keys.
type GoogleVerifier struct{}

func (GoogleVerifier) Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
	return idtoken.Validate(ctx, idToken, audience)
}

// Config configures a Manager.
type Config struct {
	OAuth  *oauth2.Config // nil disables the Google flow
	Secret []byte
	TTL    time.Duration
	Secure bool // mark cookies Secure
	// CredentialsOptional lets sessions without a stored token through
	// TokenSource, for backends that ignore credentials.
	CredentialsOptional bool
}

// Manager runs the login flow and issues sessions.
type Manager struct {
	oauth        *oauth2.Config
	secret       []byte
	ttl          time.Duration
	secure       bool
	credOptional bool
	tokens       TokenStore
	verifier     Verifier
	log          *slog.Logger
	now          func() time.Time
}

func NewManager(cfg Config, tokens TokenStore, verifier Verifier, log *slog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		oauth:        cfg.OAuth,
		secret:       cfg.Secret,
		ttl:          cfg.TTL,
		secure:       cfg.Secure,
		credOptional: cfg.CredentialsOptional,
		tokens:       tokens,
		verifier:     verifier,
		log:          log,
		now:          time.Now,
	}
}

// LoadOAuthConfig reads a Google client secrets file and points the
// redirect at domain's callback route.
func LoadOAuthConfig(path, domain string, scopes ...string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	scopes = append([]string{"openid", "email", "profile"}, scopes...)
	cfg, err := google.ConfigFromJSON(raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	cfg.RedirectURL = domain + "/api/docs/callback"
	return cfg, nil
}

// AuthURL issues a fresh state cookie and returns the consent page URL.
func (m *Manager) AuthURL(w http.ResponseWriter) (string, error) {
	if m.oauth == nil {
		return "", ErrOAuthDisabled
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Callback finishes the Google flow: it checks state, exchanges the code,
// verifies the ID token, stores the OAuth token and sets the session
// cookie. It returns the verified ID token claims.
func (m *Manager) Callback(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	if m.oauth == nil {
		return nil, ErrOAuthDisabled
	}
	ctx := r.Context()

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		return nil, ErrStateMismatch
	}
	clearCookie(w, stateCookie)

	if e := r.URL.Query().Get("error"); e != "" {
		return nil, fmt.Errorf("consent denied: %s", e)
	}
	tok, err := m.oauth.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, errors.New("token response has no id_token")
	}
	payload, err := m.verifier.Validate(ctx, rawID, m.oauth.ClientID)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	name, _ := payload.Claims["name"].(string)
	s := Session{ID: uuid.NewString(), Subject: payload.Subject, Name: name}
	if err := m.tokens.PutToken(ctx, s.ID, tok); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if err := m.setSessionCookie(w, s); err != nil {
		return nil, err
	}
	m.log.Info("user logged in", "session_id", s.ID, "subject", s.Subject)

	claims := payload.Claims
	if claims == nil {
		claims = map[string]any{"sub": payload.Subject}
	}
	return claims, nil
}

// DevLogin issues a session without Google. It is only mounted for the
// local document backend.
func (m *Manager) DevLogin(w http.ResponseWriter, subject, name string) (Session, error) {
	s := Session{ID: uuid.NewString(), Subject: subject, Name: name}
	if err := m.setSessionCookie(w, s); err != nil {
		return Session{}, err
	}
	m.log.Info("dev session issued", "session_id", s.ID, "subject", subject)
	return s, nil
}

// Logout drops the stored token and windows of the request's session, if
// any, and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	defer clearCookie(w, SessionCookie)
	s, err := m.SessionFromRequest(r)
	if err != nil {
		return nil
	}
	if err := m.tokens.DeleteSession(r.Context(), s.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.log.Info("user logged out", "session_id", s.ID)
	return nil
}

// TokenSource returns credentials for the session. Refreshed tokens are
// written back to the store.
func (m *Manager) TokenSource(ctx context.Context, sessionID string) (oauth2.TokenSource, error) {
	tok, err := m.tokens.GetToken(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if tok == nil || m.oauth == nil {
		if m.credOptional {
			return nil, nil
		}
		return nil, ErrNoCredentials
	}
	return &savingSource{
		base:      oauth2.ReuseTokenSource(tok, m.oauth.TokenSource(ctx, tok)),
		ctx:       ctx,
		sessionID: sessionID,
		last:      tok.AccessToken,
		tokens:    m.tokens,
		log:       m.log,
	}, nil
}

type savingSource struct {
	mu        sync.Mutex
	base      oauth2.TokenSource
	ctx       context.Context
	sessionID string
	last      string
	tokens    TokenStore
	log       *slog.Logger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.tokens.PutToken(s.ctx, s.sessionID, tok); err != nil {
			s.log.Warn("store refreshed token", "session_id", s.sessionID, "error", err)
		}
	}
	return tok, nil
}
