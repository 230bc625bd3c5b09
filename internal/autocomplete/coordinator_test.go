package autocomplete

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/dgallion1/quickfill/internal/edit"
	"golang.org/x/oauth2"
)

type fakeDocs struct {
	mu       sync.Mutex
	docs     map[string]*doctree.Document
	fetchErr error
	applyErr error
	// failCall makes the Nth Apply call (1-based) fail with applyErr only.
	failCall int
	calls    int
	applied  [][]edit.Operation
}

func (f *fakeDocs) Fetch(_ context.Context, _ oauth2.TokenSource, id string) (*doctree.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.docs[id], nil
}

func (f *fakeDocs) Apply(_ context.Context, _ oauth2.TokenSource, _ string, b *edit.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.applyErr != nil && (f.failCall == 0 || f.failCall == f.calls) {
		return f.applyErr
	}
	f.applied = append(f.applied, b.Operations())
	return nil
}

type fakeGen struct {
	text string
	err  error
	seen []string
}

func (g *fakeGen) Generate(_ context.Context, contextText string) (string, error) {
	g.seen = append(g.seen, contextText)
	return g.text, g.err
}

type mapWindows struct {
	mu        sync.Mutex
	m         map[Key]Window
	putErr    error
	deleteErr error
	deleted   int
}

func (s *mapWindows) GetWindow(_ context.Context, key Key) (Window, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.m[key]
	return w, ok, nil
}

func (s *mapWindows) PutWindow(_ context.Context, key Key, w Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.m[key] = w
	return nil
}

func (s *mapWindows) DeleteWindow(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted++
	delete(s.m, key)
	return nil
}

func newTestCoordinator(body string, suggestion string) (*Coordinator, *fakeDocs, *fakeGen, *mapWindows) {
	docs := &fakeDocs{docs: map[string]*doctree.Document{
		"doc-1": doctree.NewDocument("doc-1", "Test", []doctree.Node{doctree.Para(body)}),
	}}
	gen := &fakeGen{text: suggestion}
	windows := &mapWindows{m: map[Key]Window{}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(docs, gen, windows, log), docs, gen, windows
}

var req = Request{SessionID: "s1", DocumentID: "doc-1"}

func intPtr(n int) *int { return &n }

func TestPreview_HelloWorld(t *testing.T) {
	c, docs, gen, _ := newTestCoordinator("Hello world", "and sky.")

	w, err := c.Preview(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Start != 11 || w.End == nil || *w.End != 20 {
		t.Fatalf("expected window {11,20}, got %s", w)
	}
	if len(gen.seen) != 1 || gen.seen[0] != "Hello world" {
		t.Errorf("expected generator to see the body, got %q", gen.seen)
	}

	if len(docs.applied) != 1 {
		t.Fatalf("expected one batch, got %d", len(docs.applied))
	}
	ops := docs.applied[0]
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].Kind != edit.KindInsertText || ops[0].Range.Start() != 11 || ops[0].Text != " and sky." {
		t.Errorf("unexpected insert: %s", ops[0])
	}
	if _, bounded := ops[0].Range.End(); bounded {
		t.Error("expected insert to use an insertion point")
	}
	end, _ := ops[1].Range.End()
	if ops[1].Kind != edit.KindUpdateStyle || ops[1].Range.Start() != 11 || end != 20 {
		t.Errorf("unexpected style update: %s", ops[1])
	}
	if !ops[1].Style.Italic || ops[1].Style.Color != edit.Gray {
		t.Errorf("expected italic gray, got %+v", ops[1].Style)
	}
}

func TestPreview_EndIsCharactersPlusInsertedLength(t *testing.T) {
	for _, s := range []string{"x", "a longer continuation.", "naïve 😀"} {
		c, _, _, _ := newTestCoordinator("Some text\nhere\n", s)
		w, err := c.Preview(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 15 + doctree.TextLength(" "+s)
		if w.Start != 15 || *w.End != want {
			t.Errorf("suggestion %q: expected {15,%d}, got %s", s, want, w)
		}
	}
}

func TestConfirm_AdvancesWindow(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[req.key()] = Window{Start: 11, End: intPtr(20)}

	w, err := c.Confirm(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Start != 20 || w.End != nil {
		t.Fatalf("expected {start:20}, got %s", w)
	}
	if stored := windows.m[req.key()]; stored.Start != 20 || stored.Previewed() {
		t.Errorf("expected stored window {start:20}, got %s", stored)
	}

	if len(docs.applied) != 1 || len(docs.applied[0]) != 1 {
		t.Fatalf("expected one single-operation batch, got %v", docs.applied)
	}
	op := docs.applied[0][0]
	end, _ := op.Range.End()
	if op.Kind != edit.KindUpdateStyle || op.Range.Start() != 11 || end != 20 {
		t.Errorf("unexpected operation: %s", op)
	}
	if op.Style != edit.DefaultStyle {
		t.Errorf("expected default style, got %+v", op.Style)
	}
}

func TestConfirm_WithoutPreview(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")

	_, err := c.Confirm(context.Background(), req)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	// An armed window without an end is not confirmable either.
	windows.m[req.key()] = Window{Start: 20}
	_, err = c.Confirm(context.Background(), req)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for armed window, got %v", err)
	}
	if len(docs.applied) != 0 {
		t.Errorf("expected no batch submitted, got %d", len(docs.applied))
	}
}

func TestPreviewThenConfirmThenPreview(t *testing.T) {
	c, docs, gen, _ := newTestCoordinator("Hello world", "and sky.")
	ctx := context.Background()

	if _, err := c.Preview(ctx, req); err != nil {
		t.Fatal(err)
	}
	w, err := c.Confirm(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if w.Start != 20 {
		t.Fatalf("expected start 20 after confirm, got %d", w.Start)
	}

	// The remote document now holds the confirmed text.
	docs.docs["doc-1"] = doctree.NewDocument("doc-1", "Test", []doctree.Node{doctree.Para("Hello world and sky.")})
	gen.text = "Then rain."
	w, err = c.Preview(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if w.Start != 20 || *w.End != 31 {
		t.Errorf("expected {20,31}, got %s", w)
	}
}

func TestPreview_DoublePreviewRejected(t *testing.T) {
	c, docs, _, _ := newTestCoordinator("Hello world", "and sky.")
	ctx := context.Background()

	if _, err := c.Preview(ctx, req); err != nil {
		t.Fatal(err)
	}
	_, err := c.Preview(ctx, req)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if len(docs.applied) != 1 {
		t.Errorf("expected only the first batch, got %d", len(docs.applied))
	}
}

func TestReject_DeletesSuggestion(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[req.key()] = Window{Start: 11, End: intPtr(20)}

	w, err := c.Reject(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Start != 11 || w.End != nil {
		t.Errorf("expected {start:11}, got %s", w)
	}
	op := docs.applied[0][0]
	end, _ := op.Range.End()
	if op.Kind != edit.KindDeleteRange || op.Range.Start() != 11 || end != 20 {
		t.Errorf("unexpected operation: %s", op)
	}
}

func TestPreview_InaccessibleDocument(t *testing.T) {
	c, docs, gen, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[Key{SessionID: "s1", DocumentID: "missing"}] = Window{Start: 3}

	_, err := c.Preview(context.Background(), Request{SessionID: "s1", DocumentID: "missing"})
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if w := windows.m[Key{SessionID: "s1", DocumentID: "missing"}]; w.Start != 3 || w.End != nil {
		t.Errorf("expected window untouched, got %s", w)
	}
	if len(gen.seen) != 0 || len(docs.applied) != 0 {
		t.Error("expected no generation or mutation")
	}
}

func TestMissingDocumentID(t *testing.T) {
	c, _, _, windows := newTestCoordinator("Hello world", "and sky.")
	ctx := context.Background()
	noID := Request{SessionID: "s1"}

	if _, err := c.Preview(ctx, noID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("preview: expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := c.Confirm(ctx, noID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("confirm: expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := c.Reject(ctx, noID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("reject: expected ErrDocumentNotFound, got %v", err)
	}
	if len(windows.m) != 0 {
		t.Errorf("expected no windows stored, got %d", len(windows.m))
	}
}

func TestPreview_ApplyFailureLeavesWindowUnset(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	docs.applyErr = errors.New("backend unavailable")

	_, err := c.Preview(context.Background(), req)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if _, ok := windows.m[req.key()]; ok {
		t.Error("expected no window after failed apply")
	}
}

func TestConfirm_ApplyFailureKeepsWindow(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[req.key()] = Window{Start: 11, End: intPtr(20)}
	docs.applyErr = errors.New("backend unavailable")

	if _, err := c.Confirm(context.Background(), req); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if w := windows.m[req.key()]; w.Start != 11 || w.End == nil || *w.End != 20 {
		t.Errorf("expected window to stay {11,20}, got %s", w)
	}
}

func TestPreview_GeneratorFailure(t *testing.T) {
	c, docs, gen, windows := newTestCoordinator("Hello world", "")
	gen.err = errors.New("rate limited")

	if _, err := c.Preview(context.Background(), req); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	gen.err = nil
	if _, err := c.Preview(context.Background(), req); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream for empty suggestion, got %v", err)
	}
	if len(docs.applied) != 0 || len(windows.m) != 0 {
		t.Error("expected no mutation after generator failure")
	}
}

func TestPreview_FetchFailureIsUpstream(t *testing.T) {
	c, docs, _, _ := newTestCoordinator("Hello world", "and sky.")
	docs.fetchErr = errors.New("connection reset")

	if _, err := c.Preview(context.Background(), req); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestWindowsAreScopedPerSession(t *testing.T) {
	c, _, _, _ := newTestCoordinator("Hello world", "and sky.")
	ctx := context.Background()

	if _, err := c.Preview(ctx, req); err != nil {
		t.Fatal(err)
	}
	other := Request{SessionID: "s2", DocumentID: "doc-1"}
	if _, err := c.Confirm(ctx, other); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected other session to have no window, got %v", err)
	}
	if _, ok, _ := c.Window(ctx, req.key()); !ok {
		t.Error("expected first session's window to remain")
	}
}

func TestConfirmBatch_RequiresEnd(t *testing.T) {
	if _, err := ConfirmBatch(Window{Start: 4}); !errors.Is(err, edit.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := RejectBatch(Window{Start: 9, End: intPtr(4)}); !errors.Is(err, edit.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for inverted window, got %v", err)
	}
}

func TestPreview_StoreFailureRevertsSuggestion(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.putErr = errors.New("store down")

	_, err := c.Preview(context.Background(), req)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(docs.applied) != 2 {
		t.Fatalf("expected preview and revert batches, got %d", len(docs.applied))
	}
	undo := docs.applied[1]
	if len(undo) != 1 || undo[0].Kind != edit.KindDeleteRange {
		t.Fatalf("expected a single delete, got %v", undo)
	}
	end, _ := undo[0].Range.End()
	if undo[0].Range.Start() != 11 || end != 20 {
		t.Errorf("expected delete of [11,20), got %s", undo[0].Range)
	}
	if _, ok, _ := windows.GetWindow(context.Background(), req.key()); ok {
		t.Error("expected no stored window")
	}
}

func TestConfirm_StoreFailureRestoresPreviewStyle(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[req.key()] = Window{Start: 11, End: intPtr(20)}
	windows.putErr = errors.New("store down")

	_, err := c.Confirm(context.Background(), req)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(docs.applied) != 2 {
		t.Fatalf("expected confirm and revert batches, got %d", len(docs.applied))
	}
	undo := docs.applied[1]
	if len(undo) != 1 || undo[0].Kind != edit.KindUpdateStyle || undo[0].Style != edit.PreviewStyle {
		t.Fatalf("expected preview restyle, got %v", undo)
	}
	w, ok, _ := windows.GetWindow(context.Background(), req.key())
	if !ok || !w.Previewed() {
		t.Errorf("expected the previewed window to remain, got %s ok=%v", w, ok)
	}
	if windows.deleted != 0 {
		t.Errorf("expected no window delete, got %d", windows.deleted)
	}
}

func TestConfirm_StoreAndRevertFailureDropsWindow(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[req.key()] = Window{Start: 11, End: intPtr(20)}
	windows.putErr = errors.New("store down")
	docs.applyErr = errors.New("docs down")
	docs.failCall = 2

	if _, err := c.Confirm(context.Background(), req); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if windows.deleted != 1 {
		t.Fatalf("expected stale window to be dropped, got %d deletes", windows.deleted)
	}
	if _, ok, _ := windows.GetWindow(context.Background(), req.key()); ok {
		t.Error("expected no stored window")
	}
}

func TestReject_StoreFailureDropsWindow(t *testing.T) {
	c, docs, _, windows := newTestCoordinator("Hello world", "and sky.")
	windows.m[req.key()] = Window{Start: 11, End: intPtr(20)}
	windows.putErr = errors.New("store down")

	if _, err := c.Reject(context.Background(), req); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(docs.applied) != 1 {
		t.Errorf("expected only the reject batch, got %d", len(docs.applied))
	}
	if windows.deleted != 1 {
		t.Errorf("expected stale window to be dropped, got %d deletes", windows.deleted)
	}
}
