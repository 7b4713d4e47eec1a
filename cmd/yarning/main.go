package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/yarning/internal/anthropic"
	"github.com/MikeSquared-Agency/yarning/internal/config"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
)

var version = "dev"

var cfg config.Config

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "yarning",
	Short:        "Impact analysis for community storytelling transcripts",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		setupLogging(cfg.LogLevel)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported models and whether a key is configured for them",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := buildRegistry(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		configured := make(map[string]bool)
		for _, m := range registry.Models() {
			configured[m.ID] = true
		}
		for _, m := range llm.KnownModels {
			status := "no key"
			if configured[m.ID] {
				status = "ready"
			}
			marker := " "
			if m.ID == registry.Default() {
				marker = "*"
			}
			fmt.Printf("%s %-28s %-10s rate_limited=%-5t %s\n", marker, m.ID, m.Provider, m.RateLimited, status)
		}
		return nil
	},
}

// buildRegistry registers every known model whose provider has an API key.
func buildRegistry(ctx context.Context, cfg config.Config) (*llm.Registry, error) {
	registry := llm.NewRegistry(cfg.Model)
	for _, m := range llm.KnownModels {
		var (
			provider llm.Provider
			err      error
		)
		switch m.Provider {
		case llm.ProviderAnthropic:
			if cfg.AnthropicAPIKey == "" {
				continue
			}
			provider = llm.NewAnthropicProvider(anthropic.NewClient(cfg.AnthropicAPIKey, m.ID))
		case llm.ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				continue
			}
			provider = llm.NewOpenAIProvider(cfg.OpenAIAPIKey, m.ID)
		case llm.ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				continue
			}
			provider, err = llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, m.ID)
			if err != nil {
				return nil, fmt.Errorf("gemini client: %w", err)
			}
		default:
			continue
		}
		registry.Register(m, provider)
	}

	if len(registry.Models()) == 0 {
		slog.Warn("no model API keys configured, intelligent analysis unavailable")
	} else if _, _, err := registry.Resolve(""); err != nil {
		slog.Warn("default model has no configured provider", "model", cfg.Model)
	}
	return registry, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
