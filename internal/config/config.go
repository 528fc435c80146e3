package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"mindcheck-bot/internal/reminders"
)

const (
	DBName             = "./data/bot.db"
	OpenRouterURL      = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel       = "deepseek/deepseek-chat"
	DefaultTZ          = "Europe/Moscow"
	DefaultCheckinTime = "18:00"
	secretPath         = "/run/secrets/telegram_bot_token"
)

type Config struct {
	DBName        string
	TelegramToken string

	OpenRouterKey   string
	OpenRouterModel string
	OpenRouterURL   string
	LLMTimeout      time.Duration
	LLMRPS          float64
	LLMBurst        int

	DefaultTZ          string
	DefaultCheckinTime string

	Port       string
	RedisURL   string
	SessionTTL time.Duration
	LogLevel   slog.Level
}

// Load reads configuration from the environment. godotenv.Load must run before it.
func Load() (Config, error) {
	cfg := Config{
		DBName:        getEnv("DB_PATH", DBName),
		TelegramToken: getBotToken(),

		OpenRouterKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterModel: getEnv("OPENROUTER_MODEL", DefaultModel),
		OpenRouterURL:   getEnv("OPENROUTER_URL", OpenRouterURL),
		LLMTimeout:      getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		LLMRPS:          getEnvFloat("LLM_RPS", 1),
		LLMBurst:        getEnvInt("LLM_BURST", 3),

		DefaultTZ:          getEnv("DEFAULT_TZ", DefaultTZ),
		DefaultCheckinTime: getEnv("DEFAULT_CHECKIN_TIME", DefaultCheckinTime),

		Port:       getEnv("PORT", "10000"),
		RedisURL:   strings.TrimSpace(os.Getenv("REDIS_URL")),
		SessionTTL: getEnvDuration("SESSION_TTL", 2*time.Hour),
		LogLevel:   parseLevel(os.Getenv("LOG_LEVEL")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("bot token not found: neither docker secret nor BOT_TOKEN/TELEGRAM_BOT_TOKEN is set")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if _, err := time.LoadLocation(c.DefaultTZ); err != nil {
		return fmt.Errorf("DEFAULT_TZ %q: %w", c.DefaultTZ, err)
	}
	if _, _, ok := reminders.ParseHHMM(c.DefaultCheckinTime); !ok {
		return fmt.Errorf("DEFAULT_CHECKIN_TIME %q is not HH:MM", c.DefaultCheckinTime)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.LLMRPS <= 0 || c.LLMBurst <= 0 {
		return fmt.Errorf("LLM_RPS and LLM_BURST must be > 0")
	}
	return nil
}

// LLMEnabled reports whether an OpenRouter credential is configured.
func (c Config) LLMEnabled() bool { return c.OpenRouterKey != "" }

func getBotToken() string {
	if data, err := os.ReadFile(secretPath); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token
		}
	}
	for _, key := range []string{"BOT_TOKEN", "TELEGRAM_BOT_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(key)); token != "" {
			return token
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return d
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
