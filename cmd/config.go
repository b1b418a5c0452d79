package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizqa/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizqa/internal/config"
	"github.com/KaramelBytes/vizqa/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set vizqa configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.ResolveAPIKey()))
		fmt.Fprintf(out, "default_provider: %s\n", ai.NormalizeProvider(cfg.DefaultProvider))
		fmt.Fprintf(out, "default_model: %s\n", selectModel(cfg, ""))
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "rate_limit_per_min: %.1f (burst %d)\n", cfg.RateLimitPerMin, cfg.RateLimitBurst)
		if ai.NormalizeProvider(cfg.DefaultProvider) == ai.ProviderOllama {
			fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		}
		fmt.Fprintf(out, "server_addr: %s\n", cfg.ServerAddr)
		fmt.Fprintf(out, "session_secret: %s\n", mask(cfg.SessionSecret))
		fmt.Fprintf(out, "session_ttl_min: %d\n", cfg.SessionTTLMin)
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "cookie_secure: %t\n", cfg.CookieSecure)
		fmt.Fprintf(out, "require_api_key: %t\n", cfg.RequireAPIKey)
		fmt.Fprintf(out, "exec_timeout_sec: %d\n", cfg.ExecTimeoutSec)
		fmt.Fprintf(out, "exec_max_steps: %d\n", cfg.ExecMaxSteps)
		fmt.Fprintf(out, "exec_isolate: %t (memory %d MB)\n", cfg.ExecIsolate, cfg.ExecMaxMemoryMB)
		fmt.Fprintf(out, "insight_max_image_dim: %d\n", cfg.InsightMaxImageDim)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch p := ai.NormalizeProvider(val); p {
		case ai.ProviderAnthropic, ai.ProviderOpenRouter, ai.ProviderOllama:
			c.DefaultProvider = p
		default:
			return fmt.Errorf("invalid default_provider: %s (use anthropic, openrouter or ollama)", val)
		}
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid temperature: %v (use 0..2)", val)
		}
		c.Temperature = f
	case "ollama_host":
		c.OllamaHost = val
	case "server_addr":
		c.ServerAddr = val
	case "session_secret":
		c.SessionSecret = val
	case "session_ttl_min":
		c.SessionTTLMin, err = atoi()
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "cookie_secure":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for cookie_secure: %v", val)
		}
		c.CookieSecure = b
	case "require_api_key":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for require_api_key: %v", val)
		}
		c.RequireAPIKey = b
	case "exec_timeout_sec":
		c.ExecTimeoutSec, err = atoi()
	case "exec_max_steps":
		n, perr := strconv.ParseUint(val, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid int for exec_max_steps: %v", val)
		}
		c.ExecMaxSteps = n
	case "exec_isolate":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for exec_isolate: %v", val)
		}
		c.ExecIsolate = b
	case "exec_max_memory_mb":
		c.ExecMaxMemoryMB, err = atoi()
	case "insight_max_image_dim":
		c.InsightMaxImageDim, err = atoi()
	case "log_level":
		if _, perr := logging.ParseLevel(val); perr != nil {
			return perr
		}
		c.LogLevel = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
