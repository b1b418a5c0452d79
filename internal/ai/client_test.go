package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClientSendsImagesAsContentParts(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string            `json:"role"`
			Content []json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	var auth string
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "seen"}}}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-or", 2*time.Second, 1, 0, 0, srv.URL)
	msg := Message{Role: "user", Content: "describe", Images: []Image{{MediaType: "image/png", Data: "AAAA"}}}
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{msg}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "seen" {
		t.Fatalf("text = %q", resp.Text())
	}
	if auth != "Bearer sk-or" {
		t.Fatalf("authorization = %q", auth)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	var img struct {
		Type     string `json:"type"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(captured.Messages[0].Content[1], &img); err != nil {
		t.Fatalf("image part: %v", err)
	}
	if img.Type != "image_url" || img.ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Fatalf("image part = %+v", img)
	}
}

func TestMessageWithoutImagesKeepsStringContent(t *testing.T) {
	b, err := json.Marshal(Message{Role: "user", Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"role":"user","content":"hi"}` {
		t.Fatalf("got %s", b)
	}
}

func TestClientRejectsMissingKeyAndModel(t *testing.T) {
	if _, err := NewOpenRouterClient("").Generate(context.Background(), hiRequest); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("missing key: %v", err)
	}
	if err := NewOpenRouterClient("k").ValidateModel(""); err == nil {
		t.Fatalf("empty model should be rejected")
	}
}
