package autocomplete

import "errors"

var (
	// ErrDocumentNotFound means the document id is missing, invalid, or not
	// accessible with the caller's credentials.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidState means the request does not fit the current suggestion
	// window: confirm or reject with nothing previewed, a second preview
	// before the first is resolved, or a malformed range.
	ErrInvalidState = errors.New("invalid suggestion state")

	// ErrUpstream wraps failures of the document, generation and window
	// store collaborators. The coordinator does not retry them.
	ErrUpstream = errors.New("upstream failure")
)
