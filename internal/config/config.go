package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	SQLitePath  string
	LogLevel    string
	APIToken    string

	SlackBotToken      string
	SlackReviewChannel string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	Model           string

	LLMTimeout          time.Duration
	BatchSize           int
	BatchDelay          time.Duration
	MaxTranscriptTokens int
	CacheLRUSize        int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        envInt("YARNING_PORT", 8770),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		SQLitePath:  envStr("SQLITE_PATH", "yarning.db"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("YARNING_API_TOKEN", ""),

		SlackBotToken:      envStr("SLACK_BOT_TOKEN", ""),
		SlackReviewChannel: envStr("SLACK_REVIEW_CHANNEL", ""),

		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		Model:           envStr("YARNING_MODEL", "claude-sonnet-4-20250514"),

		LLMTimeout:          envDuration("LLM_TIMEOUT", 45*time.Second),
		BatchSize:           envInt("BATCH_SIZE", 2),
		BatchDelay:          envDuration("BATCH_DELAY", 2*time.Second),
		MaxTranscriptTokens: envInt("MAX_TRANSCRIPT_TOKENS", 12000),
		CacheLRUSize:        envInt("CACHE_LRU_SIZE", 256),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("45s") or bare milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
