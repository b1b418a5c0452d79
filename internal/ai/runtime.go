package ai

import (
	"context"
	"strings"
)

// Runtime is implemented by model backends: the hosted Anthropic and
// OpenRouter APIs and a local Ollama daemon.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI and config for selection.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local"
)

// NormalizeProvider lower-cases p, maps aliases and defaults to anthropic.
func NormalizeProvider(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", ProviderAnthropic, "claude":
		return ProviderAnthropic
	case ProviderOllama, ProviderLocal:
		return ProviderOllama
	case ProviderOpenRouter:
		return ProviderOpenRouter
	default:
		return strings.ToLower(strings.TrimSpace(p))
	}
}

// ProviderRequiresKey reports whether the provider needs an API key.
func ProviderRequiresKey(p string) bool {
	return NormalizeProvider(p) != ProviderOllama
}
