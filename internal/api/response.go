package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the body of every API response. Status repeats the HTTP
// status code.
type envelope struct {
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
	Content     any    `json:"content,omitempty"`
}

func respond(w http.ResponseWriter, code int, description string, content any) {
	writeEnvelope(w, envelope{Status: code, Description: description, Content: content})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeEnvelope(w, envelope{Status: code, Error: msg})
}

func writeEnvelope(w http.ResponseWriter, e envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(e)
}
