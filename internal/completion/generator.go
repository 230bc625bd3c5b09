package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/quickfill/internal/chunker"
)

// ErrNoSentence is returned when the document has no sentence to finish.
var ErrNoSentence = errors.New("document has no sentence to complete")

// Completer sends one message to a model.
type Completer interface {
	Complete(ctx context.Context, msg Message) (string, error)
}

// GeneratorConfig controls prompt sizes and sampling.
type GeneratorConfig struct {
	MaxTokens     int     // Reply budget for the continuation.
	Temperature   float64 // Sampling temperature for the continuation.
	SummaryTokens int     // Reply budget for each summary call.
	ContextTokens int     // How much of the document tail is summarized.
	Chunk         chunker.Config
}

// DefaultGeneratorConfig returns the settings used in production.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxTokens:     256,
		Temperature:   0.05,
		SummaryTokens: 200,
		ContextTokens: 3000,
		Chunk:         chunker.DefaultConfig(),
	}
}

// Generator turns a document body into a continuation of its last
// sentence. The document tail is summarized first and the summary is
// given to the model as context.
type Generator struct {
	llm     Completer
	cfg     GeneratorConfig
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

func NewGenerator(llm Completer, cfg GeneratorConfig, log *slog.Logger) *Generator {
	def := DefaultGeneratorConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.SummaryTokens <= 0 {
		cfg.SummaryTokens = def.SummaryTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = def.Temperature
	}
	return &Generator{
		llm:     llm,
		cfg:     cfg,
		log:     log,
		backoff: Backoff,
	}
}

// Generate implements autocomplete.Generator.
func (g *Generator) Generate(ctx context.Context, contextText string) (string, error) {
	last := chunker.LastSentence(contextText)
	if last == "" {
		return "", ErrNoSentence
	}

	summary, err := g.summarize(ctx, chunker.Tail(contextText, g.cfg.ContextTokens))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	out, err := g.call(ctx, Message{
		System:      completionSystem,
		Prompt:      BuildPrompt(summary, last),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return Normalize(out), nil
}

// summarize condenses text one chunk at a time and joins the results.
func (g *Generator) summarize(ctx context.Context, text string) (string, error) {
	parts := chunker.Split(text, g.cfg.Chunk)
	summaries := make([]string, 0, len(parts))
	for i, part := range parts {
		out, err := g.call(ctx, Message{
			Prompt:    summaryPrompt + part,
			MaxTokens: g.cfg.SummaryTokens,
		})
		if err != nil {
			return "", fmt.Errorf("chunk %d: %w", i, err)
		}
		summaries = append(summaries, strings.TrimSpace(out))
	}
	return strings.Join(summaries, " "), nil
}

func (g *Generator) call(ctx context.Context, msg Message) (string, error) {
	var out string
	var lastErr error
	for attempt := range MaxRetries {
		out, lastErr = g.llm.Complete(ctx, msg)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		g.log.Warn("retryable completion error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(g.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return out, lastErr
}
