package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Document backends.
const (
	BackendGoogle = "google"
	BackendLocal  = "local"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Port     string
	Domain   string // public base URL, used for the OAuth redirect
	LogLevel string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool
	DevLogin      bool

	// Operator endpoints
	APIKey string

	// Documents
	DocsBackend             string
	GoogleClientSecretsFile string
	DocsTimeout             time.Duration
	LocalDocsDir            string
	PDFFallbackPdftotext    bool

	// Window and token state
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StoreTTL      time.Duration

	// Completion
	AnthropicAPIKey       string
	AnthropicModel        string
	AnthropicEndpoint     string
	CompletionMaxTokens   int
	CompletionTemperature float64
	SummaryMaxTokens      int
	ContextTokens         int
	ChunkSize             int
	ChunkOverlap          int
}

// Load reads the environment. A .env file in the working directory is
// applied first; variables already set win.
func Load() Config {
	_ = godotenv.Load()

	port := envOr("PORT", "5000")
	cfg := Config{
		Port:     port,
		Domain:   envOr("DOMAIN", "http://localhost:"+port),
		LogLevel: envOr("LOG_LEVEL", "info"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    envDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure:  envBool("COOKIE_SECURE", false),
		DevLogin:      envBool("DEV_LOGIN", false),

		APIKey: os.Getenv("QUICKFILL_API_KEY"),

		DocsBackend:             envOr("DOCS_BACKEND", BackendGoogle),
		GoogleClientSecretsFile: envOr("GOOGLE_CLIENT_SECRETS_FILE", "client_secrets.json"),
		DocsTimeout:             envDuration("DOCS_TIMEOUT", 30*time.Second),
		LocalDocsDir:            envOr("LOCAL_DOCS_DIR", "./docs"),
		PDFFallbackPdftotext:    envBool("PDF_FALLBACK_PDFTOTEXT", true),

		StoreBackend:  envOr("STORE_BACKEND", StoreMemory),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		StoreTTL:      envDuration("STORE_TTL", 24*time.Hour),

		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:        envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		AnthropicEndpoint:     envOr("ANTHROPIC_ENDPOINT", "https://api.anthropic.com/v1/messages"),
		CompletionMaxTokens:   envInt("COMPLETION_MAX_TOKENS", 256),
		CompletionTemperature: envFloat("COMPLETION_TEMPERATURE", 0.05),
		SummaryMaxTokens:      envInt("SUMMARY_MAX_TOKENS", 200),
		ContextTokens:         envInt("CONTEXT_TOKENS", 3000),
		ChunkSize:             envInt("CHUNK_SIZE", 1500),
		ChunkOverlap:          envInt("CHUNK_OVERLAP", 200),
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.StoreTTL <= 0 {
		cfg.StoreTTL = 24 * time.Hour
	}
	if cfg.DocsTimeout <= 0 {
		cfg.DocsTimeout = 30 * time.Second
	}
	if cfg.CompletionMaxTokens <= 0 {
		cfg.CompletionMaxTokens = 256
	}
	if cfg.CompletionTemperature < 0 {
		cfg.CompletionTemperature = 0.05
	}
	if cfg.SummaryMaxTokens <= 0 {
		cfg.SummaryMaxTokens = 200
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 200
	}

	return cfg
}

func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	switch c.DocsBackend {
	case BackendGoogle:
		if c.GoogleClientSecretsFile == "" {
			return fmt.Errorf("GOOGLE_CLIENT_SECRETS_FILE is required for the google backend")
		}
		if c.DevLogin {
			return fmt.Errorf("DEV_LOGIN is only allowed with the local backend")
		}
	case BackendLocal:
		if c.LocalDocsDir == "" {
			return fmt.Errorf("LOCAL_DOCS_DIR is required for the local backend")
		}
	default:
		return fmt.Errorf("DOCS_BACKEND must be %q or %q, got %q", BackendGoogle, BackendLocal, c.DocsBackend)
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMemory, StoreRedis, c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
