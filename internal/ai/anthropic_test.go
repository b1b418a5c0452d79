package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestAnthropicGenerate(t *testing.T) {
	var captured anthropicRequest
	var headers http.Header
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Request-Id", "req_abc")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "msg_1",
			"role":    "assistant",
			"content": []map[string]any{{"type": "text", "text": "```python\nplt.show()\n```"}},
			"usage":   map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClientWithBaseURL("sk-test", 2*time.Second, 1, 0, 0, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "claude-3-5-sonnet-20241022",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "analyze", Images: []Image{{MediaType: "image/png", Data: "iVBO"}}},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "```python\nplt.show()\n```" {
		t.Fatalf("text = %q", resp.Text())
	}
	if resp.RequestID != "req_abc" || resp.Usage.TotalTokens != 15 {
		t.Fatalf("response meta = %+v", resp)
	}
	if headers.Get("x-api-key") != "sk-test" || headers.Get("anthropic-version") != anthropicVersion {
		t.Fatalf("headers = %v", headers)
	}
	if captured.System != "be brief" || captured.MaxTokens != DefaultMaxTokens {
		t.Fatalf("request = %+v", captured)
	}
	if len(captured.Messages) != 1 {
		t.Fatalf("messages = %+v", captured.Messages)
	}
	blocks := captured.Messages[0].Content
	if len(blocks) != 2 || blocks[0].Type != "image" || blocks[0].Source.MediaType != "image/png" || blocks[1].Text != "analyze" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestAnthropicAuthError(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClientWithBaseURL("bad", 2*time.Second, 2, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T %v", err, err)
	}
	if ae.Code != "authentication_error" || ae.Message != "invalid x-api-key" {
		t.Fatalf("parsed error = %+v", ae.APIError)
	}
}

func TestAnthropicRequiresKey(t *testing.T) {
	c := NewAnthropicClient("", time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestGetRuntimeAppliesProviderAliases(t *testing.T) {
	rt, ok := GetRuntime("Claude", RuntimeConfig{APIKey: "k"})
	if !ok {
		t.Fatal("anthropic runtime not registered")
	}
	if _, isClient := rt.(*AnthropicClient); !isClient {
		t.Fatalf("runtime = %T", rt)
	}
	rt, _ = GetRuntime("local", RuntimeConfig{RatePerMinute: 60})
	if _, limited := rt.(*limitedRuntime); !limited {
		t.Fatalf("expected limited runtime, got %T", rt)
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatal("unknown provider resolved")
	}
	if DefaultModel("") != "claude-3-5-sonnet-20241022" {
		t.Fatalf("default model = %s", DefaultModel(""))
	}
	if ProviderRequiresKey("ollama") || !ProviderRequiresKey("openrouter") {
		t.Fatal("ProviderRequiresKey mismatch")
	}
}
