package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apigen/apigen/internal/config"
)

func TestGeminiClientGenerate(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "secret" {
			t.Fatalf("api key header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"a\":"},{"text":"1}]"}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewGeminiClient(Options{
		BaseURL:         srv.URL,
		APIKey:          "secret",
		Model:           "gemini-1.5-flash",
		Temperature:     1,
		TopP:            0.95,
		TopK:            64,
		MaxOutputTokens: 8192,
	})
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	got, err := client.Generate(context.Background(), "make data")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `[{"a":1}]` {
		t.Fatalf("Generate() = %q", got)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Parts[0].Text != "make data" {
		t.Fatalf("contents = %+v", captured.Contents)
	}
	cfg := captured.GenerationConfig
	if cfg.Temperature != 1 || cfg.TopP != 0.95 || cfg.TopK != 64 || cfg.MaxOutputTokens != 8192 || cfg.ResponseMIMEType != "text/plain" {
		t.Fatalf("generationConfig = %+v", cfg)
	}
}

func TestGeminiClientStatusErrorIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(Options{BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	_, err = client.Generate(context.Background(), "p")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusTooManyRequests || upstream.Provider != "gemini" {
		t.Fatalf("upstream = %+v", upstream)
	}
}

func TestGeminiClientBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	client, _ := NewGeminiClient(Options{BaseURL: srv.URL, APIKey: "secret"})
	_, err := client.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("error = %v, want blocked prompt", err)
	}
}

func TestMissingAPIKeyFailsEveryCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	gemini, err := NewGeminiClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	openai, err := NewOpenAIClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	for _, gen := range []Generator{gemini, openai} {
		_, err := gen.Generate(context.Background(), "p")
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("error = %v, want *UpstreamError", err)
		}
	}
	if calls != 0 {
		t.Fatalf("upstream calls = %d, want 0", calls)
	}
}

func TestOpenAIClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("Authorization = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["model"] != "gpt-test" || payload["max_tokens"] != float64(100) {
			t.Fatalf("payload = %+v", payload)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Options{BaseURL: srv.URL + "/", APIKey: "secret", Model: "gpt-test", MaxOutputTokens: 100})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	got, err := client.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "hello" {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestOpenAIClientRequiresBaseURL(t *testing.T) {
	if _, err := NewOpenAIClient(Options{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	gen, err := New(config.AIConfig{Provider: config.ProviderGemini})
	if err != nil {
		t.Fatalf("New(gemini) error = %v", err)
	}
	if _, ok := gen.(*GeminiClient); !ok {
		t.Fatalf("New(gemini) = %T", gen)
	}
	gen, err = New(config.AIConfig{Provider: config.ProviderOpenAI, BaseURL: "https://api.example.com"})
	if err != nil {
		t.Fatalf("New(openai) error = %v", err)
	}
	if _, ok := gen.(*OpenAIClient); !ok {
		t.Fatalf("New(openai) = %T", gen)
	}
	if _, err := New(config.AIConfig{Provider: "llama"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

type countingGenerator struct {
	calls int
	reply string
	err   error
}

func (g *countingGenerator) Generate(context.Context, string) (string, error) {
	g.calls++
	return g.reply, g.err
}

func TestCachingGeneratorServesRepeatPrompts(t *testing.T) {
	next := &countingGenerator{reply: "hello"}
	gen := NewCachingGenerator(next, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := gen.Generate(context.Background(), "translate: merhaba")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got != "hello" {
			t.Fatalf("Generate() = %q", got)
		}
	}
	if next.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", next.calls)
	}
}

func TestCachingGeneratorDoesNotCacheErrors(t *testing.T) {
	next := &countingGenerator{err: errors.New("down")}
	gen := NewCachingGenerator(next, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := gen.Generate(context.Background(), "p"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("upstream calls = %d, want 2", next.calls)
	}
}

func TestNewCachingGeneratorDisabledWithoutTTL(t *testing.T) {
	next := &countingGenerator{}
	if gen := NewCachingGenerator(next, 0); gen != Generator(next) {
		t.Fatalf("NewCachingGenerator(ttl=0) = %T, want passthrough", gen)
	}
}
