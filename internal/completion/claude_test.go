package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordingObserver struct {
	calls int
	errs  int
}

func (o *recordingObserver) ObserveLLM(_ time.Duration, err error) {
	o.calls++
	if err != nil {
		o.errs++
	}
}

func TestClaudeClient_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"and sky"},{"type":"text","text":" today."}]}`))
	}))
	defer srv.Close()

	stats := NewLLMStats(time.Hour)
	obs := &recordingObserver{}
	c := NewClaudeClient(ClientConfig{APIKey: "test-key", Model: "m", Endpoint: srv.URL, Stats: stats, Observer: obs})
	defer c.Close()

	out, err := c.Complete(context.Background(), Message{Prompt: "hi", MaxTokens: 256, Temperature: 0.05})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "and sky today." {
		t.Errorf("expected concatenated text, got %q", out)
	}
	if got.Model != "m" || got.MaxTokens != 256 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0.05 {
		t.Errorf("expected temperature 0.05, got %v", got.Temperature)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if snap := stats.Snapshot(); snap.Count != 1 {
		t.Errorf("expected 1 recorded call, got %d", snap.Count)
	}
	if obs.calls != 1 || obs.errs != 0 {
		t.Errorf("expected 1 observed success, got calls=%d errs=%d", obs.calls, obs.errs)
	}
}

func TestClaudeClient_ZeroTemperatureIsSent(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient(ClientConfig{Endpoint: srv.URL})
	if _, err := c.Complete(context.Background(), Message{Prompt: "x", MaxTokens: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := raw["temperature"]; !ok || v != 0.0 {
		t.Errorf("expected explicit temperature 0, got %v (present=%v)", v, ok)
	}
}

func TestClaudeClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error"}}`, true},
		{"server error", http.StatusBadGateway, "bad gateway", true},
		{"bad request", http.StatusBadRequest, `{"error":{"type":"invalid_request_error"}}`, false},
		{"api error body", http.StatusOK, `{"error":{"type":"overloaded","message":"busy"}}`, false},
		{"empty content", http.StatusOK, `{"content":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			stats := NewLLMStats(time.Hour)
			c := NewClaudeClient(ClientConfig{Endpoint: srv.URL, Stats: stats})
			_, err := c.Complete(context.Background(), Message{Prompt: "x", MaxTokens: 10})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable=%v, want %v (err=%v)", IsRetryable(err), tt.retryable, err)
			}
			if snap := stats.Snapshot(); snap.Errors != 1 {
				t.Errorf("expected 1 recorded error, got %d", snap.Errors)
			}
		})
	}
}

func TestRetryableErrorMessage(t *testing.T) {
	err := &RetryableError{StatusCode: 503, Message: strings.Repeat("x", 500)}
	if !strings.Contains(err.Error(), "status 503") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
	if len(err.Error()) > 300 {
		t.Errorf("expected truncated message, got %d bytes", len(err.Error()))
	}
	wrapped := errors.Join(errors.New("outer"), err)
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
}

func TestBackoff(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}
