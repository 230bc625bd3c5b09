// Package localdocs is a file-backed stand-in for the remote document
// service. Documents are read from a directory, parsed into structural
// nodes, and edited in memory; files on disk are never written.
package localdocs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"unicode/utf16"

	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/dgallion1/quickfill/internal/edit"
	"github.com/dgallion1/quickfill/internal/parser"
	"golang.org/x/oauth2"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Run is a maximal stretch of text sharing one style.
type Run struct {
	Text  string
	Style edit.TextStyle
}

// document holds text as UTF-16 code units with one style per unit, so
// batch offsets index it directly.
type document struct {
	title  string
	units  []uint16
	styles []edit.TextStyle
}

func (d *document) snapshot(id string) *doctree.Document {
	body := string(utf16.Decode(d.units))
	return doctree.NewDocument(id, d.title, []doctree.Node{doctree.Para(body)})
}

// Store implements autocomplete.Documents over a directory. Credentials
// are accepted and ignored.
type Store struct {
	dir         string
	pdfFallback bool
	log         *slog.Logger

	mu   sync.Mutex
	docs map[string]*document
}

func New(dir string, pdfFallback bool, log *slog.Logger) *Store {
	return &Store{
		dir:         dir,
		pdfFallback: pdfFallback,
		log:         log,
		docs:        make(map[string]*document),
	}
}

// Put seeds or replaces an in-memory document.
func (s *Store) Put(id, title, body string) {
	units := utf16.Encode([]rune(body))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = &document{
		title:  title,
		units:  units,
		styles: make([]edit.TextStyle, len(units)),
	}
}

// Fetch returns nil, nil for ids that are malformed, have no backing file,
// or whose file cannot be parsed.
func (s *Store) Fetch(ctx context.Context, _ oauth2.TokenSource, documentID string) (*doctree.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(documentID)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.snapshot(documentID), nil
}

// Apply runs every operation of the batch against a working copy and
// commits only if all of them succeed.
func (s *Store) Apply(ctx context.Context, _ oauth2.TokenSource, documentID string, batch *edit.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %q not found", documentID)
	}

	units := append([]uint16(nil), doc.units...)
	styles := append([]edit.TextStyle(nil), doc.styles...)
	for i, op := range batch.Operations() {
		units, styles, err = apply(units, styles, op)
		if err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op, err)
		}
	}
	doc.units, doc.styles = units, styles
	s.log.Debug("batch applied", "document_id", documentID, "operations", batch.Len(), "length", len(units))
	return nil
}

// Runs returns the document text split into equally styled runs.
func (s *Store) Runs(documentID string) ([]Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return nil, false
	}
	var runs []Run
	start := 0
	for i := 1; i <= len(doc.units); i++ {
		if i < len(doc.units) && doc.styles[i] == doc.styles[start] {
			continue
		}
		runs = append(runs, Run{
			Text:  string(utf16.Decode(doc.units[start:i])),
			Style: doc.styles[start],
		})
		start = i
	}
	return runs, true
}

func apply(units []uint16, styles []edit.TextStyle, op edit.Operation) ([]uint16, []edit.TextStyle, error) {
	switch op.Kind {
	case edit.KindInsertText:
		at := op.Range.Start()
		if at < 0 || at > len(units) {
			return nil, nil, fmt.Errorf("%w: insert at %d beyond length %d", edit.ErrInvalidRange, at, len(units))
		}
		text := utf16.Encode([]rune(op.Text))
		inherit := edit.DefaultStyle
		if at > 0 {
			inherit = styles[at-1]
		}
		added := make([]edit.TextStyle, len(text))
		for i := range added {
			added[i] = inherit
		}
		units = append(units[:at], append(text, units[at:]...)...)
		styles = append(styles[:at], append(added, styles[at:]...)...)
		return units, styles, nil

	case edit.KindDeleteRange:
		start, end, err := bounds(op.Range, len(units))
		if err != nil {
			return nil, nil, err
		}
		units = append(units[:start], units[end:]...)
		styles = append(styles[:start], styles[end:]...)
		return units, styles, nil

	case edit.KindUpdateStyle:
		start, end, err := bounds(op.Range, len(units))
		if err != nil {
			return nil, nil, err
		}
		for i := start; i < end; i++ {
			styles[i] = op.Style
		}
		return units, styles, nil
	}
	return nil, nil, fmt.Errorf("unknown operation kind %q", op.Kind)
}

func bounds(r edit.Range, length int) (int, int, error) {
	if _, ok := r.End(); !ok {
		return 0, 0, fmt.Errorf("%w: %s has no end", edit.ErrInvalidRange, r)
	}
	start := r.Start()
	if start < 0 || start+r.Len() > length {
		return 0, 0, fmt.Errorf("%w: %s outside length %d", edit.ErrInvalidRange, r, length)
	}
	return start, start + r.Len(), nil
}

// loadLocked returns the cached document or parses it from disk. The
// caller holds s.mu.
func (s *Store) loadLocked(id string) (*document, error) {
	if doc, ok := s.docs[id]; ok {
		return doc, nil
	}
	if !validID.MatchString(id) || s.dir == "" {
		return nil, nil
	}

	path, err := s.findFile(id)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	tree, err := s.parseFile(path)
	if err != nil {
		s.log.Warn("local document unreadable", "document_id", id, "path", path, "error", err)
		return nil, nil
	}
	units := utf16.Encode([]rune(doctree.Flatten(tree.Content)))
	doc := &document{
		title:  tree.Title,
		units:  units,
		styles: make([]edit.TextStyle, len(units)),
	}
	s.docs[id] = doc
	s.log.Info("local document loaded", "document_id", id, "path", path, "length", len(units))
	return doc, nil
}

// findFile picks the first supported extension, in sorted order, that
// exists for id.
func (s *Store) findFile(id string) (string, error) {
	exts := make([]string, 0, len(parser.SupportedExtensions))
	for ext := range parser.SupportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		path := filepath.Join(s.dir, id+ext)
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", nil
}

func (s *Store) parseFile(path string) (*doctree.Tree, error) {
	p, err := parser.ForFile(path, s.pdfFallback)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return p.Parse(f, filepath.Base(path))
}
