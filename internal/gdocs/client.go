// Package gdocs adapts the Google Docs API to the document fetch and
// mutate contracts of the autocomplete coordinator.
package gdocs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/dgallion1/quickfill/internal/edit"
	"golang.org/x/oauth2"
	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Scopes are the OAuth scopes the client needs.
var Scopes = []string{docs.DocumentsScope}

// Client talks to the Google Docs API with per-request credentials.
type Client struct {
	opts    []option.ClientOption
	timeout time.Duration
	log     *slog.Logger
}

// NewClient returns a client. Extra options are appended to every service
// construction, e.g. option.WithEndpoint in tests.
func NewClient(log *slog.Logger, timeout time.Duration, opts ...option.ClientOption) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{opts: opts, timeout: timeout, log: log}
}

func (c *Client) service(ctx context.Context, creds oauth2.TokenSource) (*docs.Service, error) {
	if creds == nil {
		return nil, errors.New("no credentials")
	}
	opts := append([]option.ClientOption{option.WithTokenSource(creds)}, c.opts...)
	svc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create docs service: %w", err)
	}
	return svc, nil
}

// Fetch reads a document and flattens its body. It returns nil, nil when
// the id is invalid or the credentials cannot read the document.
func (c *Client) Fetch(ctx context.Context, creds oauth2.TokenSource, documentID string) (*doctree.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}
	d, err := svc.Documents.Get(documentID).Context(ctx).Do()
	if err != nil {
		if isAccessError(err) {
			c.log.Warn("document not accessible", "document_id", documentID, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}

	var content []doctree.Node
	if d.Body != nil {
		content = Nodes(d.Body.Content)
	}
	return doctree.NewDocument(d.DocumentId, d.Title, content), nil
}

// Apply submits the batch as one batchUpdate call. The API applies the
// requests in order and atomically.
func (c *Client) Apply(ctx context.Context, creds oauth2.TokenSource, documentID string, batch *edit.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, creds)
	if err != nil {
		return err
	}
	req := &docs.BatchUpdateDocumentRequest{Requests: Requests(batch)}
	if _, err := svc.Documents.BatchUpdate(documentID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update %s: %w", documentID, err)
	}
	c.log.Debug("batch applied", "document_id", documentID, "requests", len(req.Requests))
	return nil
}

func isAccessError(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
