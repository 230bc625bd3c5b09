package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/quickfill/internal/auth"
)

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.AuthURL(w)
	if errors.Is(err, auth.ErrOAuthDisabled) {
		jsonError(w, "Google sign-in is not configured.", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "could not start sign-in", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	claims, err := s.auth.Callback(w, r)
	switch {
	case errors.Is(err, auth.ErrOAuthDisabled):
		jsonError(w, "Google sign-in is not configured.", http.StatusNotFound)
		return
	case errors.Is(err, auth.ErrStateMismatch):
		jsonError(w, "The sign-in state does not match.", http.StatusBadRequest)
		return
	case err != nil:
		s.log.Warn("sign-in failed", "error", err)
		jsonError(w, "The sign-in could not be completed.", http.StatusUnauthorized)
		return
	}
	respond(w, http.StatusOK, "The user logged in.", claims)
}

func (s *Server) handleUnauth(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(w, r); err != nil {
		s.log.Error("logout", "error", err)
		jsonError(w, "logout failed", http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, "The user logged out.", nil)
}

func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("user")
	if subject == "" {
		subject = "dev"
	}
	sess, err := s.auth.DevLogin(w, subject, subject)
	if err != nil {
		s.log.Error("dev login", "error", err)
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, "The user logged in.", sess)
}
