package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie carries the signed session token.
const SessionCookie = "session"

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.New("no valid session")

// Session identifies a logged-in user. ID keys the stored credentials and
// the suggestion windows.
type Session struct {
	ID      string `json:"sid"`
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (m *Manager) sign(s Session) (string, error) {
	now := m.now()
	claims := sessionClaims{
		SessionID: s.ID,
		Name:      s.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(raw string) (Session, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	if !tok.Valid || claims.SessionID == "" {
		return Session{}, ErrNoSession
	}
	return Session{ID: claims.SessionID, Subject: claims.Subject, Name: claims.Name}, nil
}

// SessionFromRequest reads the session cookie, falling back to a Bearer
// Authorization header.
func (m *Manager) SessionFromRequest(r *http.Request) (Session, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return m.parse(c.Value)
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return m.parse(h[7:])
	}
	return Session{}, ErrNoSession
}

func (m *Manager) setSessionCookie(w http.ResponseWriter, s Session) error {
	signed, err := m.sign(s)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
