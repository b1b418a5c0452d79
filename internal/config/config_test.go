package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DefaultProvider != "anthropic" || c.MaxTokens != 8000 || c.ServerAddr != ":8501" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if !c.RequireAPIKey || c.CookieSecure || c.ExecMaxSteps != 5_000_000 || !c.ExecIsolate || c.ExecMaxMemoryMB != 2048 || c.SessionTTL() != time.Hour {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("max_tokens: 1000\ndefault_provider: OpenRouter\nlog_format: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIZQA_MAX_TOKENS", "2000")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MaxTokens != 2000 {
		t.Errorf("max_tokens = %d, want env value 2000", c.MaxTokens)
	}
	if c.DefaultProvider != "openrouter" || c.LogFormat != "json" {
		t.Errorf("file values not applied: %+v", c)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "out.yaml")
	c, _ := Load("")
	c.APIKey = "sk-saved"
	c.ExecTimeoutSec = 3
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.APIKey != "sk-saved" || got.ExecTimeout() != 3*time.Second {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestRequireKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	c := &Global{DefaultProvider: "anthropic", RequireAPIKey: true}
	if err := c.RequireKey(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	if err := c.RequireKey(); err != nil {
		t.Fatalf("env fallback not used: %v", err)
	}
	if c.ResolveAPIKey() != "sk-env" {
		t.Fatalf("ResolveAPIKey = %q", c.ResolveAPIKey())
	}

	interactive := &Global{DefaultProvider: "anthropic"}
	t.Setenv("ANTHROPIC_API_KEY", "")
	if err := interactive.RequireKey(); err != nil {
		t.Fatalf("interactive mode must not require a key: %v", err)
	}

	local := &Global{DefaultProvider: "ollama", RequireAPIKey: true}
	if err := local.RequireKey(); err != nil {
		t.Fatalf("ollama needs no key: %v", err)
	}
}
