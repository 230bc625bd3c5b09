// Package autocomplete runs the two-phase suggestion workflow: preview
// inserts a styled suggestion at the end of a document, confirm strips the
// preview styling, reject deletes the suggestion again.
package autocomplete

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/dgallion1/quickfill/internal/edit"
	"golang.org/x/oauth2"
)

// Documents fetches and mutates remote documents. Fetch returns a nil
// document and a nil error when the id is invalid or not accessible.
type Documents interface {
	Fetch(ctx context.Context, creds oauth2.TokenSource, documentID string) (*doctree.Document, error)
	Apply(ctx context.Context, creds oauth2.TokenSource, documentID string, batch *edit.Batch) error
}

// Generator produces continuation text for a document body.
type Generator interface {
	Generate(ctx context.Context, contextText string) (string, error)
}

// Request identifies the caller, the document, and the credentials used
// against the document service.
type Request struct {
	SessionID   string
	DocumentID  string
	Credentials oauth2.TokenSource
}

func (r Request) key() Key {
	return Key{SessionID: r.SessionID, DocumentID: r.DocumentID}
}

// Coordinator owns the suggestion windows and sequences preview, confirm
// and reject against the document service.
type Coordinator struct {
	docs    Documents
	gen     Generator
	windows WindowStore
	log     *slog.Logger
	locks   keyedMutex
}

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(docs Documents, gen Generator, windows WindowStore, log *slog.Logger) *Coordinator {
	return &Coordinator{
		docs:    docs,
		gen:     gen,
		windows: windows,
		log:     log,
	}
}

// Preview appends " "+suggestion at the end of the document body, styled
// italic gray, and records the window it occupies. The window is stored
// only after the document service accepted the batch.
func (c *Coordinator) Preview(ctx context.Context, req Request) (Window, error) {
	if req.DocumentID == "" {
		return Window{}, fmt.Errorf("%w: missing document id", ErrDocumentNotFound)
	}
	key := req.key()
	unlock := c.locks.lock(key)
	defer unlock()

	doc, err := c.fetch(ctx, req)
	if err != nil {
		return Window{}, err
	}

	current, ok, err := c.windows.GetWindow(ctx, key)
	if err != nil {
		return Window{}, fmt.Errorf("load window %s: %w", key, err)
	}
	if ok && current.Previewed() {
		return Window{}, fmt.Errorf("%w: suggestion %s is still awaiting confirm or reject", ErrInvalidState, current)
	}

	suggestion, err := c.gen.Generate(ctx, doc.Body)
	if err != nil {
		return Window{}, fmt.Errorf("%w: generate suggestion: %w", ErrUpstream, err)
	}
	if strings.TrimSpace(suggestion) == "" {
		return Window{}, fmt.Errorf("%w: generator returned an empty suggestion", ErrUpstream)
	}

	text := " " + suggestion
	start := doc.Characters
	end := start + doctree.TextLength(text)

	batch, err := PreviewBatch(start, text)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := c.docs.Apply(ctx, req.Credentials, req.DocumentID, batch); err != nil {
		return Window{}, fmt.Errorf("%w: apply preview: %w", ErrUpstream, err)
	}

	next := Window{Start: start, End: &end}
	if err := c.windows.PutWindow(ctx, key, next); err != nil {
		undo, _ := RejectBatch(next)
		c.rollback(ctx, req, "preview", undo, false)
		return Window{}, fmt.Errorf("%w: store window %s: %w", ErrUpstream, key, err)
	}
	c.log.Info("suggestion previewed", "document_id", req.DocumentID, "session_id", req.SessionID, "start", start, "end", end)
	return next, nil
}

// Confirm removes the preview styling from the current suggestion and
// advances the window so the next preview starts after the committed text.
func (c *Coordinator) Confirm(ctx context.Context, req Request) (Window, error) {
	return c.resolve(ctx, req, "confirm", func(w Window) (*edit.Batch, *edit.Batch, Window, error) {
		batch, err := ConfirmBatch(w)
		if err != nil {
			return nil, nil, Window{}, err
		}
		undo, err := previewStyleBatch(w)
		return batch, undo, Window{Start: *w.End}, err
	})
}

// Reject deletes the current suggestion from the document and rewinds the
// window to where the suggestion started.
func (c *Coordinator) Reject(ctx context.Context, req Request) (Window, error) {
	return c.resolve(ctx, req, "reject", func(w Window) (*edit.Batch, *edit.Batch, Window, error) {
		batch, err := RejectBatch(w)
		return batch, nil, Window{Start: w.Start}, err
	})
}

// Window returns the stored window for key.
func (c *Coordinator) Window(ctx context.Context, key Key) (Window, bool, error) {
	return c.windows.GetWindow(ctx, key)
}

// resolve applies the batch planned for the current previewed window. The
// planner also returns an undo batch, or nil when the change cannot be
// reverted on the document.
func (c *Coordinator) resolve(ctx context.Context, req Request, op string, plan func(Window) (*edit.Batch, *edit.Batch, Window, error)) (Window, error) {
	if req.DocumentID == "" {
		return Window{}, fmt.Errorf("%w: missing document id", ErrDocumentNotFound)
	}
	key := req.key()
	unlock := c.locks.lock(key)
	defer unlock()

	if _, err := c.fetch(ctx, req); err != nil {
		return Window{}, err
	}

	current, ok, err := c.windows.GetWindow(ctx, key)
	if err != nil {
		return Window{}, fmt.Errorf("load window %s: %w", key, err)
	}
	if !ok || !current.Previewed() {
		return Window{}, fmt.Errorf("%w: %s without a previewed suggestion", ErrInvalidState, op)
	}

	batch, undo, next, err := plan(current)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := c.docs.Apply(ctx, req.Credentials, req.DocumentID, batch); err != nil {
		return Window{}, fmt.Errorf("%w: apply %s: %w", ErrUpstream, op, err)
	}
	if err := c.windows.PutWindow(ctx, key, next); err != nil {
		c.rollback(ctx, req, op, undo, true)
		return Window{}, fmt.Errorf("%w: store window %s: %w", ErrUpstream, key, err)
	}
	c.log.Info("suggestion resolved", "op", op, "document_id", req.DocumentID, "session_id", req.SessionID, "window", current.String(), "next_start", next.Start)
	return next, nil
}

// rollback runs after the document accepted a batch but the new window
// could not be stored. It applies undo so the document matches the stored
// window again. When there is no undo, or it fails, and dropWindow is set,
// the stored window is deleted so no later operation acts on stale offsets.
func (c *Coordinator) rollback(ctx context.Context, req Request, op string, undo *edit.Batch, dropWindow bool) {
	ctx = context.WithoutCancel(ctx)
	log := c.log.With("op", op, "document_id", req.DocumentID, "session_id", req.SessionID)
	if undo != nil {
		err := c.docs.Apply(ctx, req.Credentials, req.DocumentID, undo)
		if err == nil {
			log.Warn("window not stored, document change reverted")
			return
		}
		log.Error("revert document change", "error", err)
	}
	if !dropWindow {
		return
	}
	if err := c.windows.DeleteWindow(ctx, req.key()); err != nil {
		log.Error("drop stale window", "error", err)
		return
	}
	log.Warn("window not stored, stale window dropped")
}

func (c *Coordinator) fetch(ctx context.Context, req Request) (*doctree.Document, error) {
	doc, err := c.docs.Fetch(ctx, req.Credentials, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch document: %w", ErrUpstream, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, req.DocumentID)
	}
	return doc, nil
}

// PreviewBatch inserts text at start and styles exactly the inserted span.
// The style span end is start plus the inserted length, since the document
// service applies both operations against the offsets given here.
func PreviewBatch(start int, text string) (*edit.Batch, error) {
	at, err := edit.Point(start)
	if err != nil {
		return nil, err
	}
	span, err := edit.Span(start, start+doctree.TextLength(text))
	if err != nil {
		return nil, err
	}
	b := edit.NewBatch()
	if err := b.InsertText(at, text); err != nil {
		return nil, err
	}
	if err := b.UpdateTextStyle(span, edit.PreviewStyle); err != nil {
		return nil, err
	}
	return b, nil
}

// ConfirmBatch restyles a previewed window as committed text.
func ConfirmBatch(w Window) (*edit.Batch, error) {
	span, err := windowSpan(w)
	if err != nil {
		return nil, err
	}
	b := edit.NewBatch()
	if err := b.UpdateTextStyle(span, edit.DefaultStyle); err != nil {
		return nil, err
	}
	return b, nil
}

// RejectBatch deletes a previewed window.
func RejectBatch(w Window) (*edit.Batch, error) {
	span, err := windowSpan(w)
	if err != nil {
		return nil, err
	}
	b := edit.NewBatch()
	if err := b.DeleteContentRange(span); err != nil {
		return nil, err
	}
	return b, nil
}

// previewStyleBatch restores the preview styling of a window. It undoes
// ConfirmBatch.
func previewStyleBatch(w Window) (*edit.Batch, error) {
	span, err := windowSpan(w)
	if err != nil {
		return nil, err
	}
	b := edit.NewBatch()
	if err := b.UpdateTextStyle(span, edit.PreviewStyle); err != nil {
		return nil, err
	}
	return b, nil
}

func windowSpan(w Window) (edit.Range, error) {
	if w.End == nil {
		return edit.Range{}, fmt.Errorf("%w: window %s has no end", edit.ErrInvalidRange, w)
	}
	return edit.Span(w.Start, *w.End)
}
