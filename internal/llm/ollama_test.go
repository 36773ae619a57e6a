package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ollama/ollama/api"
)

func newTestOllamaProvider(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	base, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return &OllamaProvider{
		client: api.NewClient(base, server.Client()),
		model:  "llama3.1",
	}
}

func TestOllamaProvider_HappyPath(t *testing.T) {
	var got api.ChatRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3.1",
			"created_at":        "2026-01-01T00:00:00Z",
			"message":           map[string]any{"role": "assistant", "content": `{"question":"Why?","index":1}`},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 12,
			"eval_count":        8,
		})
	}

	p := newTestOllamaProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System:      "You are a user researcher.",
		Messages:    []Message{{Role: RoleUser, Content: "Summarize."}},
		MaxTokens:   128,
		Temperature: 0.4,
		Schema:      testSchema(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Fatalf("expected 20 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("expected system + user messages, got %+v", got.Messages)
	}
	if got.Stream == nil || *got.Stream {
		t.Fatal("expected non-streaming request")
	}
	if len(got.Format) == 0 {
		t.Fatal("expected schema in format field")
	}
}

func TestOllamaProvider_ServerError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"error": "model not loaded"})
	}

	p := newTestOllamaProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "test"}},
	})
	if got := KindOf(err); got != KindUnavailable {
		t.Fatalf("kind = %s, want %s (%v)", got, KindUnavailable, err)
	}
}

func TestNewOllamaProvider_RequiresModel(t *testing.T) {
	if _, err := NewOllamaProvider(OllamaConfig{}); err == nil {
		t.Fatal("expected error for empty model")
	}
}
