// Package api serves the autocomplete workflow, the Google sign-in flow and
// the operator endpoints over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/quickfill/internal/auth"
	"github.com/dgallion1/quickfill/internal/autocomplete"
	"github.com/dgallion1/quickfill/internal/completion"
	"github.com/dgallion1/quickfill/internal/config"
	"github.com/dgallion1/quickfill/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Coordinator *autocomplete.Coordinator
	Documents   autocomplete.Documents
	Auth        *auth.Manager
	Metrics     *metrics.Metrics // nil disables metrics
	Stats       *completion.LLMStats
	Log         *slog.Logger
	Config      config.Config
}

// Server is the HTTP API server for quickfill.
type Server struct {
	router  chi.Router
	coord   *autocomplete.Coordinator
	docs    autocomplete.Documents
	auth    *auth.Manager
	metrics *metrics.Metrics
	stats   *completion.LLMStats
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(d Deps) *Server {
	s := &Server{
		coord:   d.Coordinator,
		docs:    d.Documents,
		auth:    d.Auth,
		metrics: d.Metrics,
		stats:   d.Stats,
		log:     d.Log,
		cfg:     d.Config,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log, s.metrics))
	r.Use(AllowAnyOrigin)

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/docs/auth", s.handleAuth)
	r.Get("/api/docs/callback", s.handleCallback)
	r.Get("/api/docs/unauth", s.handleUnauth)
	if s.cfg.DevLogin && s.cfg.DocsBackend == config.BackendLocal {
		r.Get("/api/docs/dev-login", s.handleDevLogin)
	}

	// Session endpoints.
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(s.auth))

		r.Get("/api/preview-autocomplete", s.handlePreview)
		r.Get("/api/confirm-autocomplete", s.handleConfirm)
		r.Get("/api/reject-autocomplete", s.handleReject)
		r.Get("/api/document", s.handleDocument)
	})

	// Operator endpoints, only when an API key is configured.
	if s.cfg.APIKey != "" {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

			r.Get("/api/stats/llm", s.handleLLMStats)
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		})
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
