package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/vizqa/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizqa/internal/config"
)

func TestSelectModelPrecedence(t *testing.T) {
	c := &cfgpkg.Global{DefaultModel: "cfg-model", DefaultProvider: "openrouter"}

	if got := selectModel(c, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(c, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	c.DefaultModel = ""
	if got := selectModel(c, ""); got != ai.DefaultModel("openrouter") {
		t.Fatalf("expected provider default, got %q", got)
	}
	if got := selectModel(nil, ""); got != ai.DefaultModel("") {
		t.Fatalf("expected anthropic default for nil config, got %q", got)
	}
}

func TestNewRuntimeKeyHandling(t *testing.T) {
	c := &cfgpkg.Global{DefaultProvider: "anthropic", HTTPTimeoutSec: 5}
	if _, err := newRuntime(c, "", nil); !errors.Is(err, ai.ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if rt, err := newRuntime(c, "sk-test", nil); err != nil || rt == nil {
		t.Fatalf("expected runtime, got %v, %v", rt, err)
	}

	c.DefaultProvider = "local"
	if rt, err := newRuntime(c, "", nil); err != nil || rt == nil {
		t.Fatalf("ollama needs no key, got %v, %v", rt, err)
	}

	c.DefaultProvider = "nope"
	if _, err := newRuntime(c, "k", nil); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestExplainAIError(t *testing.T) {
	api := &ai.APIError{StatusCode: 429, Message: "slow down"}
	cases := []struct {
		name     string
		err      error
		provider string
		want     string
	}{
		{"no key", ai.ErrNoAPIKey, "anthropic", "ANTHROPIC_API_KEY"},
		{"auth", &ai.AuthError{APIError: api}, "anthropic", "authentication failed"},
		{"rate limit", &ai.RateLimitError{APIError: api, RetryAfter: 7 * time.Second}, "anthropic", "try again in ~7s"},
		{"ollama model", &ai.ModelNotFoundError{APIError: api}, "ollama", "ollama pull llava"},
		{"hosted model", &ai.ModelNotFoundError{APIError: api}, "openrouter", "vizqa models list"},
		{"ollama down", &ai.UnreachableError{Host: "http://127.0.0.1:11434"}, "local", "Ollama not reachable at http://127.0.0.1:11434"},
		{"quota", &ai.QuotaExceededError{APIError: api}, "anthropic", "quota/billing"},
		{"server", &ai.ServerError{APIError: api}, "anthropic", "server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := explainAIError(tc.err, tc.provider, "llava")
			if !strings.Contains(got.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, got)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("hint must wrap the original error")
			}
		})
	}

	plain := errors.New("boom")
	if got := explainAIError(plain, "anthropic", ""); got != plain {
		t.Fatalf("unclassified errors pass through, got %v", got)
	}
}

func TestLoadFlagsOptions(t *testing.T) {
	lf := loadFlags{delimiter: "tab", sheet: "Q3", decimal: "comma", thousands: "space"}
	opt, err := lf.options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opt.Delimiter != '\t' || opt.Sheet != "Q3" {
		t.Fatalf("unexpected options: %+v", opt)
	}
	if !opt.Infer.LocaleNumbers || opt.Infer.DecimalSeparator != ',' || opt.Infer.ThousandsSeparator != ' ' {
		t.Fatalf("unexpected infer options: %+v", opt.Infer)
	}

	for _, bad := range []loadFlags{{delimiter: ":"}, {decimal: "x"}, {thousands: "_"}} {
		if _, err := bad.options(); err == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}

func TestSetConfigValue(t *testing.T) {
	c := &cfgpkg.Global{}
	for _, kv := range [][2]string{
		{"default_provider", "Claude"},
		{"max_tokens", "2048"},
		{"temperature", "0.2"},
		{"require_api_key", "false"},
		{"exec_max_steps", "1000"},
		{"log_level", "DEBUG"},
	} {
		if err := setConfigValue(c, kv[0], kv[1]); err != nil {
			t.Fatalf("set %s: %v", kv[0], err)
		}
	}
	if c.DefaultProvider != "anthropic" || c.MaxTokens != 2048 || c.Temperature != 0.2 ||
		c.RequireAPIKey || c.ExecMaxSteps != 1000 || c.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", c)
	}

	for _, kv := range [][2]string{
		{"default_provider", "gemini"},
		{"max_tokens", "-1"},
		{"temperature", "3"},
		{"log_level", "loud"},
		{"nope", "1"},
	} {
		if err := setConfigValue(c, kv[0], kv[1]); err == nil {
			t.Fatalf("expected error for %s=%s", kv[0], kv[1])
		}
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" || mask("abc") != "******" || mask("sk-abcdefxyz") != "sk-****xyz" {
		t.Fatalf("unexpected mask output")
	}
}
