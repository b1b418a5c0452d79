package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

// ollamaStub serves /api/chat, records the decoded request and answers with
// content plus token counts.
func ollamaStub(t *testing.T, content string, captured *ollamaChatRequest) string {
	t.Helper()
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": content},
			"prompt_eval_count": 12,
			"eval_count":        3,
			"done":              true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestOllamaGenerateMapsRequestAndResponse(t *testing.T) {
	var captured ollamaChatRequest
	host := ollamaStub(t, "a bar chart", &captured)

	c := NewOllamaClient(host, 2*time.Second, 1, 0, 0)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "llava:latest",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "what is this", Images: []Image{{MediaType: "image/jpeg", Data: "/9j/"}}},
		},
		MaxTokens:   64,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "a bar chart" || resp.RequestID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 3 || resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", resp.Usage)
	}

	if captured.Stream || captured.Model != "llava:latest" || len(captured.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if sys := captured.Messages[0]; sys.Role != "system" || len(sys.Images) != 0 {
		t.Fatalf("system message = %+v", sys)
	}
	if user := captured.Messages[1]; len(user.Images) != 1 || user.Images[0] != "/9j/" {
		t.Fatalf("images not forwarded: %+v", user)
	}
	if captured.Options["num_predict"] != float64(64) || captured.Options["temperature"] != 0.3 {
		t.Fatalf("options = %v", captured.Options)
	}
}

func TestOllamaGenerateValidatesInput(t *testing.T) {
	c := NewOllamaClient("", time.Second, 1, 0, 0)
	cases := map[string]GenerateRequest{
		"model cannot be empty":    {Messages: []Message{{Role: "user", Content: "hi"}}},
		"messages cannot be empty": {Model: "llava:latest"},
	}
	for want, req := range cases {
		if _, err := c.Generate(context.Background(), req); err == nil || err.Error() != want {
			t.Errorf("want %q, got %v", want, err)
		}
	}
}

func TestOllamaErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, func(err error) bool { var e *ModelNotFoundError; return errors.As(err, &e) }},
		{http.StatusBadRequest, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
		{http.StatusInternalServerError, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'llava' not found"})
		}))
		c := NewOllamaClient(srv.URL, 2*time.Second, 1, time.Millisecond, time.Millisecond)
		_, err := c.Generate(context.Background(), hiRequest)
		srv.Close()
		if !tc.check(err) {
			t.Errorf("status %d: unexpected error %T %v", tc.status, err, err)
		}
	}
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), hiRequest)
	var ue *UnreachableError
	if !errors.As(err, &ue) || ue.Host != "http://127.0.0.1:1" {
		t.Fatalf("expected UnreachableError, got %T %v", err, err)
	}
	if ue.Unwrap() == nil {
		t.Fatalf("cause should be kept")
	}
}
