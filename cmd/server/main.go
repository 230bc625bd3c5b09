package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/quickfill/internal/api"
	"github.com/dgallion1/quickfill/internal/auth"
	"github.com/dgallion1/quickfill/internal/autocomplete"
	"github.com/dgallion1/quickfill/internal/chunker"
	"github.com/dgallion1/quickfill/internal/completion"
	"github.com/dgallion1/quickfill/internal/config"
	"github.com/dgallion1/quickfill/internal/gdocs"
	"github.com/dgallion1/quickfill/internal/localdocs"
	"github.com/dgallion1/quickfill/internal/metrics"
	"github.com/dgallion1/quickfill/internal/store"
	"golang.org/x/oauth2"
)

// sessionStore holds both suggestion windows and OAuth tokens.
type sessionStore interface {
	autocomplete.WindowStore
	auth.TokenStore
}

func main() {
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// State store.
	sessions, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Document backend.
	var (
		docs     autocomplete.Documents
		oauthCfg *oauth2.Config
	)
	switch cfg.DocsBackend {
	case config.BackendGoogle:
		oauthCfg, err = auth.LoadOAuthConfig(cfg.GoogleClientSecretsFile, cfg.Domain, gdocs.Scopes...)
		if err != nil {
			log.Error("load google client", "error", err)
			os.Exit(1)
		}
		docs = gdocs.NewClient(log.With("component", "gdocs"), cfg.DocsTimeout)
	case config.BackendLocal:
		docs = localdocs.New(cfg.LocalDocsDir, cfg.PDFFallbackPdftotext, log.With("component", "localdocs"))
	}

	// Completion.
	m := metrics.New()
	stats := completion.NewLLMStats(time.Hour)
	claude := completion.NewClaudeClient(completion.ClientConfig{
		APIKey:   cfg.AnthropicAPIKey,
		Model:    cfg.AnthropicModel,
		Endpoint: cfg.AnthropicEndpoint,
		Stats:    stats,
		Observer: m,
	})
	defer claude.Close()
	gen := completion.NewGenerator(claude, completion.GeneratorConfig{
		MaxTokens:     cfg.CompletionMaxTokens,
		Temperature:   cfg.CompletionTemperature,
		SummaryTokens: cfg.SummaryMaxTokens,
		ContextTokens: cfg.ContextTokens,
		Chunk:         chunker.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap},
	}, log.With("component", "completion"))

	coord := autocomplete.NewCoordinator(docs, gen, sessions, log.With("component", "autocomplete"))
	manager := auth.NewManager(auth.Config{
		OAuth:               oauthCfg,
		Secret:              []byte(cfg.SessionSecret),
		TTL:                 cfg.SessionTTL,
		Secure:              cfg.CookieSecure,
		CredentialsOptional: cfg.DocsBackend == config.BackendLocal,
	}, sessions, auth.GoogleVerifier{}, log.With("component", "auth"))

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Coordinator: coord,
		Documents:   docs,
		Auth:        manager,
		Metrics:     m,
		Stats:       stats,
		Log:         log,
		Config:      cfg,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Info("starting quickfill", "port", cfg.Port, "docs_backend", cfg.DocsBackend, "store_backend", cfg.StoreBackend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects the configured backend. The memory store is swept
// for expired entries until ctx is done.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (sessionStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := store.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		r := store.NewRedis(client, cfg.StoreTTL)
		log.Info("redis store connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return r, func() { r.Close() }, nil
	case config.StoreMemory:
		mem := store.NewMemory(cfg.StoreTTL)
		go mem.Run(ctx, time.Minute)
		return mem, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
