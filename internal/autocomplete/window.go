package autocomplete

import (
	"context"
	"fmt"
	"sync"
)

// Key scopes a suggestion window to one session and one document.
type Key struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
}

func (k Key) String() string {
	return k.SessionID + "/" + k.DocumentID
}

// Window is the offset range of the last suggestion. With End set the
// suggestion is previewed and awaiting confirm or reject; without it the
// window only records where the next suggestion is expected to go.
type Window struct {
	Start int  `json:"start_index"`
	End   *int `json:"end_index,omitempty"`
}

// Previewed reports whether an unconfirmed suggestion occupies [Start, End).
func (w Window) Previewed() bool {
	return w.End != nil
}

func (w Window) String() string {
	if w.End == nil {
		return fmt.Sprintf("{start:%d}", w.Start)
	}
	return fmt.Sprintf("{start:%d end:%d}", w.Start, *w.End)
}

// WindowStore persists windows by key. GetWindow reports ok=false when no
// window is stored for the key.
type WindowStore interface {
	GetWindow(ctx context.Context, key Key) (Window, bool, error)
	PutWindow(ctx context.Context, key Key, w Window) error
	DeleteWindow(ctx context.Context, key Key) error
}

// keyedMutex serializes coordinator operations per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key Key) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[Key]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
