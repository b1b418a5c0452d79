package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizqa/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizqa/internal/config"
	"github.com/KaramelBytes/vizqa/internal/insight"
	"github.com/KaramelBytes/vizqa/internal/server"
	"github.com/KaramelBytes/vizqa/internal/viz"
)

var (
	serveAddr        string
	serveInteractive bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for uploads, visualizations and insights",
	Example: `  vizqa serve
  vizqa serve --addr 127.0.0.1:9000
  vizqa serve --interactive   # each session posts its own API key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.ServerAddr = serveAddr
		}
		if cmd.Flags().Changed("interactive") {
			c.RequireAPIKey = !serveInteractive
		}
		if err := c.RequireKey(); err != nil {
			return fmt.Errorf("%w (or run with --interactive)", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(serverConfig(c)).Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config server_addr)")
	serveCmd.Flags().BoolVar(&serveInteractive, "interactive", false, "require each session to supply its own API key")
}

// serverConfig maps the global configuration onto the server. All sessions
// share one client-side rate limiter.
func serverConfig(c *cfgpkg.Global) server.Config {
	lim := ai.NewLimiter(c.RateLimitPerMin, c.RateLimitBurst)
	fixedKey := c.ResolveAPIKey()
	model := selectModel(c, "")
	return server.Config{
		Addr:           c.ServerAddr,
		SessionSecret:  c.SessionSecret,
		SessionTTL:     c.SessionTTL(),
		MaxUploadBytes: int64(c.MaxUploadMB) << 20,
		RequestTimeout: c.RequestTimeout(),
		RequireAPIKey:  c.RequireAPIKey,
		CookieSecure:   c.CookieSecure,
		NewRuntime: func(apiKey string) (ai.Runtime, error) {
			if apiKey == "" {
				apiKey = fixedKey
			}
			return newRuntime(c, apiKey, lim)
		},
		Executor: newSandbox(c),
		Viz: viz.Options{
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
		},
		Insight: insight.Options{Model: model, MaxImageDim: c.InsightMaxImageDim},
		Logger:  log,
	}
}
