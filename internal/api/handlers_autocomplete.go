package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dgallion1/quickfill/internal/auth"
	"github.com/dgallion1/quickfill/internal/autocomplete"
	"github.com/dgallion1/quickfill/internal/doctree"
)

const (
	msgMissingDocumentID = "The URL parameter `document_id` is not found."
	msgDocumentNotFound  = "The URL parameter `document_id` is either invalid or belongs to a document to which the authorized user does not have access."
	msgNoCredentials     = "The session has no document access. Log in again."
	msgUpstream          = "The document or completion service failed."
)

type operation func(context.Context, autocomplete.Request) (autocomplete.Window, error)

// windowContent is the response content of the autocomplete endpoints.
type windowContent struct {
	DocumentID string `json:"document_id"`
	autocomplete.Window
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, "preview", s.coord.Preview, "The document now contains the autocomplete text.")
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, "confirm", s.coord.Confirm, "The autocomplete text has been confirmed.")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, "reject", s.coord.Reject, "The autocomplete text has been removed.")
}

func (s *Server) runOperation(w http.ResponseWriter, r *http.Request, op string, run operation, description string) {
	req, ok := s.autocompleteRequest(w, r)
	if !ok {
		s.metrics.ObserveOperation(op, "bad_request")
		return
	}

	win, err := run(r.Context(), req)
	if err != nil {
		code, msg, outcome := classify(op, err)
		s.metrics.ObserveOperation(op, outcome)
		if code >= http.StatusInternalServerError {
			s.log.Error("autocomplete failed", "op", op, "document_id", req.DocumentID, "error", err)
		} else {
			s.log.Info("autocomplete rejected", "op", op, "document_id", req.DocumentID, "error", err)
		}
		jsonError(w, msg, code)
		return
	}
	s.metrics.ObserveOperation(op, "ok")
	respond(w, http.StatusOK, description, windowContent{DocumentID: req.DocumentID, Window: win})
}

// handleDocument reports the document text and counts, plus the caller's
// suggestion window when there is one.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := s.autocompleteRequest(w, r)
	if !ok {
		return
	}

	doc, err := s.docs.Fetch(r.Context(), req.Credentials, req.DocumentID)
	if err != nil {
		s.log.Error("fetch document", "document_id", req.DocumentID, "error", err)
		jsonError(w, msgUpstream, http.StatusBadGateway)
		return
	}
	if doc == nil {
		jsonError(w, msgDocumentNotFound, http.StatusBadRequest)
		return
	}

	content := struct {
		*doctree.Document
		Window *autocomplete.Window `json:"window,omitempty"`
	}{Document: doc}
	win, found, err := s.coord.Window(r.Context(), autocomplete.Key{SessionID: req.SessionID, DocumentID: req.DocumentID})
	if err != nil {
		s.log.Warn("load window", "document_id", req.DocumentID, "error", err)
	} else if found {
		content.Window = &win
	}
	respond(w, http.StatusOK, "", content)
}

// autocompleteRequest resolves the document id, session and credentials
// of r. It writes the error response itself and reports false on failure.
func (s *Server) autocompleteRequest(w http.ResponseWriter, r *http.Request) (autocomplete.Request, bool) {
	documentID := r.URL.Query().Get("document_id")
	if documentID == "" {
		jsonError(w, msgMissingDocumentID, http.StatusBadRequest)
		return autocomplete.Request{}, false
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		jsonError(w, msgNotLoggedIn, http.StatusUnauthorized)
		return autocomplete.Request{}, false
	}
	creds, err := s.auth.TokenSource(r.Context(), sess.ID)
	if errors.Is(err, auth.ErrNoCredentials) {
		jsonError(w, msgNoCredentials, http.StatusUnauthorized)
		return autocomplete.Request{}, false
	}
	if err != nil {
		s.log.Error("load credentials", "session_id", sess.ID, "error", err)
		jsonError(w, "credential lookup failed", http.StatusInternalServerError)
		return autocomplete.Request{}, false
	}
	return autocomplete.Request{SessionID: sess.ID, DocumentID: documentID, Credentials: creds}, true
}

// classify maps a coordinator error to a status code, a client message and
// a metrics outcome label.
func classify(op string, err error) (int, string, string) {
	switch {
	case errors.Is(err, autocomplete.ErrDocumentNotFound):
		return http.StatusBadRequest, msgDocumentNotFound, "not_found"
	case errors.Is(err, autocomplete.ErrInvalidState):
		if op == "preview" {
			return http.StatusConflict, "An autocomplete preview is already waiting to be confirmed or rejected.", "invalid_state"
		}
		return http.StatusConflict, "There is no autocomplete preview to " + op + ".", "invalid_state"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The request timed out.", "timeout"
	case errors.Is(err, autocomplete.ErrUpstream):
		return http.StatusBadGateway, msgUpstream, "upstream"
	}
	return http.StatusInternalServerError, "internal error", "error"
}
