package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shotdeck/internal/services"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.ResponseFormat["type"] != jsonResponseType || body.Model != "demo-model" {
			t.Errorf("unexpected request %+v", body)
		}
		writeCompletion(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestCompleteSendsSystemAndHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) != 3 || body.Messages[0].Role != "system" || body.Messages[2].Content != "second" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}
		if body.ResponseFormat != nil {
			t.Errorf("free text request should not set response_format")
		}
		writeCompletion(t, w, "  a misty harbor at dawn \n")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	got, err := client.Complete(context.Background(), Request{
		System: "You write prompts.",
		Messages: []Message{
			{Role: "user", Content: "first"},
			{Role: "", Content: "   "},
			{Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "a misty harbor at dawn" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestCompleteRequiresKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Content: "hi"}}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer user-key" {
			t.Errorf("expected user key, got %q", got)
		}
		writeCompletion(t, w, "ok")
	}))
	defer server.Close()

	base := NewClient(Config{BaseURL: server.URL})
	if _, err := base.WithAPIKey("user-key").Complete(context.Background(), Request{Messages: []Message{{Content: "hi"}}}); err != nil {
		t.Fatalf("Complete with user key: %v", err)
	}
	if base.Configured() {
		t.Fatal("WithAPIKey must not mutate the receiver")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestCompleteRejectsEmptyConversation(t *testing.T) {
	client := NewClient(Config{APIKey: "test"})
	_, err := client.Complete(context.Background(), Request{System: "only system"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeCompletion(t, w, "done")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(time.Second, 10*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	got, err := client.Complete(context.Background(), Request{Messages: []Message{{Content: "go"}}})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "done" || calls.Load() != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, calls.Load())
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Fatalf("expected Retry-After sleeps, got %v", slept)
	}
}

func TestClientExhaustedRetriesAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryMaxAttempts(2),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Content: "go"}}})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClientAuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Content: "go"}}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	var out struct {
		Prompts []string `json:"prompts"`
	}
	content := "Sure! Here you go:\n```json\n{\"prompts\":[\"a\",\"b\"]}\n```"
	if err := DecodeLLMJSON(content, &out); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if len(out.Prompts) != 2 {
		t.Fatalf("unexpected decode %+v", out)
	}
	if err := DecodeLLMJSON("not json at all", &out); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"plain text":             "plain text",
		"```\nfenced body\n```":  "fenced body",
		"```text\nlabelled\n```": "labelled",
		"  ```\nspaced\n```  \n": "spaced",
	}
	for input, want := range cases {
		if got := StripFences(input); got != want {
			t.Fatalf("StripFences(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("parseRetryAfter seconds = %v, %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative Retry-After must be ignored")
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Fatal("empty Retry-After must be ignored")
	}
}
