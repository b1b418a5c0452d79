package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by RequireKey when fixed-key mode has no key.
var ErrMissingAPIKey = errors.New("API key required: set api_key in config, VIZQA_API_KEY, or the provider key env var")

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Models catalog auto-sync
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url"`
	ModelsAutoSync   bool   `mapstructure:"models_auto_sync" yaml:"models_auto_sync"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Client-side rate limit for model calls
	RateLimitPerMin float64 `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP server
	ServerAddr        string `mapstructure:"server_addr" yaml:"server_addr"`
	SessionSecret     string `mapstructure:"session_secret" yaml:"session_secret"`
	SessionTTLMin     int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	// CookieSecure marks the session cookie Secure; enable behind TLS.
	CookieSecure bool `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	// RequireAPIKey selects fixed-key mode; false lets each session supply a key.
	RequireAPIKey bool `mapstructure:"require_api_key" yaml:"require_api_key"`

	// Sandbox limits
	ExecTimeoutSec int    `mapstructure:"exec_timeout_sec" yaml:"exec_timeout_sec"`
	ExecMaxSteps   uint64 `mapstructure:"exec_max_steps" yaml:"exec_max_steps"`
	// ExecIsolate runs scripts in a child process limited to ExecMaxMemoryMB.
	ExecIsolate     bool `mapstructure:"exec_isolate" yaml:"exec_isolate"`
	ExecMaxMemoryMB int  `mapstructure:"exec_max_memory_mb" yaml:"exec_max_memory_mb"`

	// Insight images larger than this (px, longest side) are downscaled.
	InsightMaxImageDim int `mapstructure:"insight_max_image_dim" yaml:"insight_max_image_dim"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// providerKeyEnv maps providers to the conventional env var holding their key.
var providerKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// ResolveAPIKey returns the configured key, falling back to the provider's
// conventional env var.
func (c *Global) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if env, ok := providerKeyEnv[strings.ToLower(c.DefaultProvider)]; ok {
		return os.Getenv(env)
	}
	return ""
}

// RequireKey enforces fixed-key mode for providers that need a key.
func (c *Global) RequireKey() error {
	if !c.RequireAPIKey {
		return nil
	}
	if strings.EqualFold(c.DefaultProvider, "ollama") || strings.EqualFold(c.DefaultProvider, "local") {
		return nil
	}
	if c.ResolveAPIKey() == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Duration helpers.
func (c *Global) HTTPTimeout() time.Duration    { return time.Duration(c.HTTPTimeoutSec) * time.Second }
func (c *Global) RetryBaseDelay() time.Duration { return time.Duration(c.RetryBaseDelayMs) * time.Millisecond }
func (c *Global) RetryMaxDelay() time.Duration  { return time.Duration(c.RetryMaxDelayMs) * time.Millisecond }
func (c *Global) SessionTTL() time.Duration     { return time.Duration(c.SessionTTLMin) * time.Minute }
func (c *Global) RequestTimeout() time.Duration { return time.Duration(c.RequestTimeoutSec) * time.Second }
func (c *Global) ExecTimeout() time.Duration    { return time.Duration(c.ExecTimeoutSec) * time.Second }

// Dir returns ~/.vizqa.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".vizqa"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.vizqa/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("default_provider", "anthropic")
	v.SetDefault("default_model", "")
	v.SetDefault("max_tokens", 8000)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("models_auto_sync", false)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("rate_limit_per_min", 50)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	// Server defaults
	v.SetDefault("server_addr", ":8501")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_ttl_min", 60)
	v.SetDefault("max_upload_mb", 50)
	v.SetDefault("request_timeout_sec", 180)
	v.SetDefault("cookie_secure", false)
	v.SetDefault("require_api_key", true)
	v.SetDefault("exec_timeout_sec", 10)
	v.SetDefault("exec_max_steps", 5_000_000)
	v.SetDefault("exec_isolate", true)
	v.SetDefault("exec_max_memory_mb", 2048)
	v.SetDefault("insight_max_image_dim", 1568)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("VIZQA")
	v.AutomaticEnv()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.DefaultProvider = strings.ToLower(strings.TrimSpace(c.DefaultProvider))
	return &c, nil
}
