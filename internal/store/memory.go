// Package store keeps per-session state: suggestion windows keyed by
// session and document, and the OAuth token of each session.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/dgallion1/quickfill/internal/autocomplete"
	"golang.org/x/oauth2"
)

type windowEntry struct {
	window    autocomplete.Window
	updatedAt time.Time
}

type tokenEntry struct {
	token     oauth2.Token
	updatedAt time.Time
}

// Memory is a thread-safe in-process store with TTL eviction.
type Memory struct {
	mu      sync.Mutex
	windows map[autocomplete.Key]windowEntry
	tokens  map[string]tokenEntry
	ttl     time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{
		windows: make(map[autocomplete.Key]windowEntry),
		tokens:  make(map[string]tokenEntry),
		ttl:     ttl,
	}
}

func (m *Memory) GetWindow(_ context.Context, key autocomplete.Key) (autocomplete.Window, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.windows[key]
	if !ok || m.expired(e.updatedAt) {
		return autocomplete.Window{}, false, nil
	}
	return cloneWindow(e.window), true, nil
}

func (m *Memory) PutWindow(_ context.Context, key autocomplete.Key, w autocomplete.Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows[key] = windowEntry{window: cloneWindow(w), updatedAt: time.Now()}
	return nil
}

func (m *Memory) DeleteWindow(_ context.Context, key autocomplete.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}

// GetToken returns nil when the session has no token.
func (m *Memory) GetToken(_ context.Context, sessionID string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tokens[sessionID]
	if !ok || m.expired(e.updatedAt) {
		return nil, nil
	}
	tok := e.token
	return &tok, nil
}

func (m *Memory) PutToken(_ context.Context, sessionID string, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[sessionID] = tokenEntry{token: *tok, updatedAt: time.Now()}
	return nil
}

// DeleteSession drops the session's token and all of its windows.
func (m *Memory) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, sessionID)
	for key := range m.windows {
		if key.SessionID == sessionID {
			delete(m.windows, key)
		}
	}
	return nil
}

// Cleanup removes expired entries.
func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.windows {
		if m.expired(e.updatedAt) {
			delete(m.windows, key)
		}
	}
	for id, e := range m.tokens {
		if m.expired(e.updatedAt) {
			delete(m.tokens, id)
		}
	}
}

// Run calls Cleanup every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

func (m *Memory) expired(updatedAt time.Time) bool {
	return time.Since(updatedAt) > m.ttl
}

func cloneWindow(w autocomplete.Window) autocomplete.Window {
	if w.End != nil {
		end := *w.End
		w.End = &end
	}
	return w
}
