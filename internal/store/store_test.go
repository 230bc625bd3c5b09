package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgallion1/quickfill/internal/autocomplete"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var (
	_ autocomplete.WindowStore = (*Memory)(nil)
	_ autocomplete.WindowStore = (*Redis)(nil)
)

type sessionStore interface {
	autocomplete.WindowStore
	GetToken(ctx context.Context, sessionID string) (*oauth2.Token, error)
	PutToken(ctx context.Context, sessionID string, tok *oauth2.Token) error
	DeleteSession(ctx context.Context, sessionID string) error
}

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl), mr
}

func stores(t *testing.T) map[string]sessionStore {
	r, _ := newRedisStore(t, time.Hour)
	return map[string]sessionStore{
		"memory": NewMemory(time.Hour),
		"redis":  r,
	}
}

func TestStore_WindowRoundTrip(t *testing.T) {
	ctx := context.Background()
	key := autocomplete.Key{SessionID: "s1", DocumentID: "doc-1"}

	for name, s := range stores(t) {
		if _, ok, err := s.GetWindow(ctx, key); err != nil || ok {
			t.Fatalf("%s: expected no window, got ok=%t err=%v", name, ok, err)
		}

		end := 20
		if err := s.PutWindow(ctx, key, autocomplete.Window{Start: 11, End: &end}); err != nil {
			t.Fatalf("%s: put: %v", name, err)
		}
		end = 99 // caller mutation must not leak into the store

		w, ok, err := s.GetWindow(ctx, key)
		if err != nil || !ok {
			t.Fatalf("%s: expected window, got ok=%t err=%v", name, ok, err)
		}
		if w.Start != 11 || w.End == nil || *w.End != 20 {
			t.Errorf("%s: expected {11,20}, got %s", name, w)
		}

		if err := s.PutWindow(ctx, key, autocomplete.Window{Start: 20}); err != nil {
			t.Fatalf("%s: put armed: %v", name, err)
		}
		w, _, _ = s.GetWindow(ctx, key)
		if w.Start != 20 || w.Previewed() {
			t.Errorf("%s: expected {start:20}, got %s", name, w)
		}

		if err := s.DeleteWindow(ctx, key); err != nil {
			t.Fatalf("%s: delete: %v", name, err)
		}
		if _, ok, _ := s.GetWindow(ctx, key); ok {
			t.Errorf("%s: expected window deleted", name)
		}
	}
}

func TestStore_TokenAndDeleteSession(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		if tok, err := s.GetToken(ctx, "s1"); err != nil || tok != nil {
			t.Fatalf("%s: expected no token, got %v err=%v", name, tok, err)
		}
		want := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}
		if err := s.PutToken(ctx, "s1", want); err != nil {
			t.Fatalf("%s: put token: %v", name, err)
		}
		got, err := s.GetToken(ctx, "s1")
		if err != nil || got == nil {
			t.Fatalf("%s: expected token, got err=%v", name, err)
		}
		if got.AccessToken != "at" || got.RefreshToken != "rt" {
			t.Errorf("%s: unexpected token %+v", name, got)
		}

		mine := autocomplete.Key{SessionID: "s1", DocumentID: "a"}
		theirs := autocomplete.Key{SessionID: "s2", DocumentID: "a"}
		_ = s.PutWindow(ctx, mine, autocomplete.Window{Start: 1})
		_ = s.PutWindow(ctx, theirs, autocomplete.Window{Start: 2})

		if err := s.DeleteSession(ctx, "s1"); err != nil {
			t.Fatalf("%s: delete session: %v", name, err)
		}
		if tok, _ := s.GetToken(ctx, "s1"); tok != nil {
			t.Errorf("%s: expected token removed", name)
		}
		if _, ok, _ := s.GetWindow(ctx, mine); ok {
			t.Errorf("%s: expected session window removed", name)
		}
		if _, ok, _ := s.GetWindow(ctx, theirs); !ok {
			t.Errorf("%s: expected other session's window kept", name)
		}
	}
}

func TestMemory_TTLCleanup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(50 * time.Millisecond)

	old := autocomplete.Key{SessionID: "s1", DocumentID: "old"}
	_ = m.PutWindow(ctx, old, autocomplete.Window{Start: 1})
	_ = m.PutToken(ctx, "s1", &oauth2.Token{AccessToken: "old"})

	time.Sleep(100 * time.Millisecond)

	fresh := autocomplete.Key{SessionID: "s1", DocumentID: "new"}
	_ = m.PutWindow(ctx, fresh, autocomplete.Window{Start: 2})

	if _, ok, _ := m.GetWindow(ctx, old); ok {
		t.Error("expected expired window to be invisible before cleanup")
	}

	m.Cleanup()

	m.mu.Lock()
	_, oldKept := m.windows[old]
	_, tokenKept := m.tokens["s1"]
	m.mu.Unlock()
	if oldKept || tokenKept {
		t.Error("expected expired entries to be cleaned up")
	}
	if _, ok, _ := m.GetWindow(ctx, fresh); !ok {
		t.Error("expected fresh window to survive cleanup")
	}
}

func TestMemory_CleanupEmpty(t *testing.T) {
	m := NewMemory(time.Hour)
	// Should not panic on empty store.
	m.Cleanup()
}

func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisStore(t, time.Minute)
	key := autocomplete.Key{SessionID: "s1", DocumentID: "doc-1"}

	if err := r.PutWindow(ctx, key, autocomplete.Window{Start: 5}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	if _, ok, err := r.GetWindow(ctx, key); err != nil || ok {
		t.Errorf("expected window to expire, got ok=%t err=%v", ok, err)
	}
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Dial(context.Background(), mr.Addr(), "", 0, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.Close()

	addr := mr.Addr()
	mr.Close()
	if _, err := Dial(context.Background(), addr, "", 0, 100*time.Millisecond); err == nil {
		t.Error("expected dial to a closed server to fail")
	}
}
