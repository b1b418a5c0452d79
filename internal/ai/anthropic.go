package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	// DefaultMaxTokens is sent when a request leaves MaxTokens unset; the
	// Messages API requires the field.
	DefaultMaxTokens = 8000
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	transport
	apiKey  string
	baseURL string
}

// NewAnthropicClient returns a Messages API client.
func NewAnthropicClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *AnthropicClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &AnthropicClient{
		transport: newTransport(httpTimeout, retryMax, baseDelay, maxDelay),
		apiKey:    apiKey,
		baseURL:   anthropicBaseURL,
	}
}

// NewAnthropicClientWithBaseURL targets a custom endpoint (used in tests).
func NewAnthropicClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *AnthropicClient {
	c := NewAnthropicClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// buildAnthropicRequest lifts system messages into the top-level system
// field and puts images ahead of the text of their message.
func buildAnthropicRequest(req GenerateRequest) anthropicRequest {
	out := anthropicRequest{Model: req.Model, MaxTokens: req.MaxTokens}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		am := anthropicMessage{Role: m.Role}
		for _, img := range m.Images {
			am.Content = append(am.Content, anthropicBlock{
				Type:   "image",
				Source: &anthropicSource{Type: "base64", MediaType: img.MediaType, Data: img.Data},
			})
		}
		if m.Content != "" || len(am.Content) == 0 {
			am.Content = append(am.Content, anthropicBlock{Type: "text", Text: m.Content})
		}
		out.Messages = append(out.Messages, am)
	}
	out.System = strings.Join(system, "\n\n")
	return out
}

// Generate sends a Messages API request and maps the reply onto
// GenerateResponse.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrNoAPIKey)
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	areq := buildAnthropicRequest(req)
	if len(areq.Messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}
	payload, err := json.Marshal(areq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var aresp anthropicResponse
	reqID, err := c.post(ctx, c.baseURL+"/messages", header, payload, &aresp)
	if err != nil {
		return nil, err
	}
	var text strings.Builder
	for _, b := range aresp.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &GenerateResponse{
		ID:      aresp.ID,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage: Usage{
			PromptTokens:     aresp.Usage.InputTokens,
			CompletionTokens: aresp.Usage.OutputTokens,
			TotalTokens:      aresp.Usage.InputTokens + aresp.Usage.OutputTokens,
		},
		RequestID: reqID,
	}, nil
}
