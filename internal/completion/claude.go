// Package completion generates sentence continuations with the Anthropic
// Messages API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the Anthropic Messages API URL.
const DefaultEndpoint = "https://api.anthropic.com/v1/messages"

// Message is one model call.
type Message struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Observer receives the latency and outcome of every model call.
type Observer interface {
	ObserveLLM(d time.Duration, err error)
}

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	stats      *LLMStats
	observer   Observer
}

// ClientConfig configures a ClaudeClient. Endpoint defaults to
// DefaultEndpoint, Timeout to two minutes.
type ClientConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
	Stats    *LLMStats
	Observer Observer
}

func NewClaudeClient(cfg ClientConfig) *ClaudeClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &ClaudeClient{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		stats:    cfg.Stats,
		observer: cfg.Observer,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one message and returns the concatenated text blocks of
// the reply. 429 and 5xx responses come back as *RetryableError.
func (c *ClaudeClient) Complete(ctx context.Context, msg Message) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, msg)
	elapsed := time.Since(start)
	if c.stats != nil {
		c.stats.Record(elapsed, err)
	}
	if c.observer != nil {
		c.observer.ObserveLLM(elapsed, err)
	}
	return text, err
}

func (c *ClaudeClient) complete(ctx context.Context, msg Message) (string, error) {
	temperature := msg.Temperature
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   msg.MaxTokens,
		System:      msg.System,
		Temperature: &temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: msg.Prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}
