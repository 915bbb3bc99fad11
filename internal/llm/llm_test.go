package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["contents"]; !ok {
			t.Error("expected contents in request")
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("gemini-test", "k")
	p.BaseURL = srv.URL

	out, err := p.Generate(context.Background(), "prompt", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello there" {
		t.Errorf("expected joined parts, got %q", out)
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("m", "k")
	p.BaseURL = srv.URL
	if _, err := p.Generate(context.Background(), "prompt", 100); err == nil {
		t.Error("expected error for empty candidates")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"summary"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("gpt-test", "k")
	p.BaseURL = srv.URL
	out, err := p.Generate(context.Background(), "prompt", 100)
	if err != nil || out != "summary" {
		t.Errorf("unexpected result %q, %v", out, err)
	}
}

func TestClaudeGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic headers")
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"claude says"}]}`))
	}))
	defer srv.Close()

	p := NewClaudeProvider("claude-test", "k")
	p.BaseURL = srv.URL
	out, err := p.Generate(context.Background(), "prompt", 100)
	if err != nil || out != "claude says" {
		t.Errorf("unexpected result %q, %v", out, err)
	}
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("m", "k")
	p.BaseURL = srv.URL
	_, err := p.Generate(context.Background(), "prompt", 100)
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestOllamaGenerateAndConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
		case "/api/chat":
			w.Write([]byte(`{"message":{"content":"local summary"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	if !p.IsConfigured() {
		t.Fatal("expected ollama to be configured")
	}
	out, err := p.Generate(context.Background(), "prompt", 100)
	if err != nil || out != "local summary" {
		t.Errorf("unexpected result %q, %v", out, err)
	}

	missing := NewOllamaProvider("llama3", srv.URL)
	if missing.IsConfigured() {
		t.Error("expected missing model to be unconfigured")
	}
}

func TestCreateProviderWithoutKey(t *testing.T) {
	if p := CreateProvider("gemini", "gemini-2.5-flash", "", ""); p != nil {
		t.Error("expected nil provider without key")
	}
	if p := CreateProvider("mystery", "m", "", "k"); p != nil {
		t.Error("expected nil provider for unknown name")
	}
	if p := CreateProvider("openai", "gpt-4o-mini", "", "k"); p == nil {
		t.Error("expected openai provider with key")
	}
}
