package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/vizqa/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizqa/internal/config"
	"github.com/KaramelBytes/vizqa/internal/loader"
	"github.com/KaramelBytes/vizqa/internal/table"
)

// newRuntime builds the model runtime for the configured provider. Tests
// replace it with a stub.
var newRuntime = func(c *cfgpkg.Global, apiKey string, lim *rate.Limiter) (ai.Runtime, error) {
	provider := ai.NormalizeProvider(c.DefaultProvider)
	if ai.ProviderRequiresKey(provider) && apiKey == "" {
		return nil, ai.ErrNoAPIKey
	}
	rt, ok := ai.GetRuntime(provider, ai.RuntimeConfig{
		HTTPTimeout:   c.HTTPTimeout(),
		RetryMax:      c.RetryMaxAttempts,
		BaseDelay:     c.RetryBaseDelay(),
		MaxDelay:      c.RetryMaxDelay(),
		APIKey:        apiKey,
		Host:          c.OllamaHost,
		RatePerMinute: c.RateLimitPerMin,
		RateBurst:     c.RateLimitBurst,
		Limiter:       lim,
	})
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (use anthropic, openrouter or ollama)", c.DefaultProvider)
	}
	return rt, nil
}

// selectModel chooses the model by precedence: CLI flag > config > provider default.
func selectModel(c *cfgpkg.Global, cliModel string) string {
	if cliModel != "" {
		return cliModel
	}
	if c != nil && c.DefaultModel != "" {
		return c.DefaultModel
	}
	provider := ""
	if c != nil {
		provider = c.DefaultProvider
	}
	return ai.DefaultModel(provider)
}

// explainAIError adds a user-facing hint for common provider failures.
func explainAIError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	provider = ai.NormalizeProvider(provider)
	switch {
	case errors.Is(err, ai.ErrNoAPIKey):
		return fmt.Errorf("no API key: set ANTHROPIC_API_KEY (or OPENROUTER_API_KEY), VIZQA_API_KEY, or api_key in ~/.vizqa/config.yaml: %w", err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (config 'ollama_host'). Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("provider unreachable: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check your API key: %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited, please retry later: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s); run 'vizqa models list' for known models: %w", model, err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request rejected by provider: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return err
	}
}

// loadFlags are the dataset parsing flags shared by several commands.
type loadFlags struct {
	delimiter string
	sheet     string
	decimal   string
	thousands string
}

func (lf *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.delimiter, "delimiter", "", "CSV delimiter: ','|';'|'tab'|'|' (default: sniffed)")
	cmd.Flags().StringVar(&lf.sheet, "sheet", "", "Excel sheet name (default: first sheet)")
	cmd.Flags().StringVar(&lf.decimal, "decimal", "", "decimal separator: '.'|'comma' (enables locale number parsing)")
	cmd.Flags().StringVar(&lf.thousands, "thousands", "", "thousands separator: ','|'.'|'space'")
}

func (lf *loadFlags) options() (loader.Options, error) {
	var opt loader.Options
	switch lf.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	case "\t", "tab":
		opt.Delimiter = '\t'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", lf.delimiter)
	}
	opt.Sheet = lf.sheet

	var infer table.InferOptions
	switch strings.ToLower(strings.TrimSpace(lf.decimal)) {
	case ",", "comma":
		infer.DecimalSeparator = ','
	case ".", "dot":
		infer.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", lf.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(lf.thousands)) {
	case ",":
		infer.ThousandsSeparator = ','
	case ".":
		infer.ThousandsSeparator = '.'
	case "space", " ":
		infer.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", lf.thousands)
	}
	infer.LocaleNumbers = infer.DecimalSeparator != 0 || infer.ThousandsSeparator != 0
	opt.Infer = infer
	return opt, nil
}
