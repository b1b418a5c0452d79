package ai

import (
	"encoding/json"
	"os"
	"sort"
)

// ModelInfo is catalog metadata used for defaults and cost hints.
// Prices are illustrative; verify them against the provider's pricing page.
type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
	Vision        bool    // accepts image input
}

var models = map[string]ModelInfo{
	"claude-3-5-sonnet-20241022": {
		Name: "claude-3-5-sonnet-20241022", Provider: ProviderAnthropic,
		ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015, Vision: true,
	},
	"claude-3-5-haiku-20241022": {
		Name: "claude-3-5-haiku-20241022", Provider: ProviderAnthropic,
		ContextTokens: 200000, InputPerK: 0.0008, OutputPerK: 0.004, Vision: true,
	},
	"claude-3-haiku-20240307": {
		Name: "claude-3-haiku-20240307", Provider: ProviderAnthropic,
		ContextTokens: 200000, InputPerK: 0.00025, OutputPerK: 0.00125, Vision: true,
	},
	"anthropic/claude-3.5-sonnet": {
		Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter,
		ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015, Vision: true,
	},
	"openai/gpt-4o": {
		Name: "openai/gpt-4o", Provider: ProviderOpenRouter,
		ContextTokens: 128000, InputPerK: 0.005, OutputPerK: 0.015, Vision: true,
	},
	"openai/gpt-4o-mini": {
		Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter,
		ContextTokens: 128000, InputPerK: 0.0006, OutputPerK: 0.0024, Vision: true,
	},
	"google/gemini-1.5-flash": {
		Name: "google/gemini-1.5-flash", Provider: ProviderOpenRouter,
		ContextTokens: 1000000, InputPerK: 0.0002, OutputPerK: 0.0008, Vision: true,
	},
	"meta-llama/llama-3.1-70b-instruct": {
		Name: "meta-llama/llama-3.1-70b-instruct", Provider: ProviderOpenRouter,
		ContextTokens: 131072,
	},
	"llama3.2-vision:latest": {
		Name: "llama3.2-vision:latest", Provider: ProviderOllama,
		ContextTokens: 131072, Vision: true,
	},
	"llava:latest": {
		Name: "llava:latest", Provider: ProviderOllama,
		ContextTokens: 4096, Vision: true,
	},
	"llama3.1:8b-instruct": {
		Name: "llama3.1:8b-instruct", Provider: ProviderOllama,
		ContextTokens: 8192,
	},
	"qwen2.5-coder:7b": {
		Name: "qwen2.5-coder:7b", Provider: ProviderOllama,
		ContextTokens: 32768,
	},
}

var defaultModels = map[string]string{
	ProviderAnthropic:  "claude-3-5-sonnet-20241022",
	ProviderOpenRouter: "anthropic/claude-3.5-sonnet",
	ProviderOllama:     "llama3.2-vision:latest",
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[NormalizeProvider(provider)]
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "openai/gpt-4o-mini": {"Name":"openai/gpt-4o-mini","Provider":"openrouter","ContextTokens":128000,"Vision":true} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
		}
		models[k] = v
	}
}

// CatalogList returns catalog entries sorted by provider then name,
// optionally filtered to one provider.
func CatalogList(provider string) []ModelInfo {
	var out []ModelInfo
	for _, mi := range models {
		if provider != "" && mi.Provider != NormalizeProvider(provider) {
			continue
		}
		out = append(out, mi)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider == out[j].Provider {
			return out[i].Name < out[j].Name
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}
