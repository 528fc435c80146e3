package config

import (
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("LLM_TIMEOUT", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "123:abc" {
		t.Fatalf("token = %q", cfg.TelegramToken)
	}
	if cfg.DBName != DBName {
		t.Fatalf("DBName = %q, want %q", cfg.DBName, DBName)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Fatalf("LLMTimeout = %v, want 30s", cfg.LLMTimeout)
	}
	if cfg.LLMEnabled() {
		t.Fatal("LLM should be disabled without OPENROUTER_API_KEY")
	}
	if cfg.OpenRouterModel != DefaultModel {
		t.Fatalf("model = %q", cfg.OpenRouterModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEFAULT_TZ", "Asia/Yekaterinburg")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.LLMEnabled() {
		t.Fatal("LLM should be enabled")
	}
	if cfg.LLMTimeout != 5*time.Second || cfg.SessionTTL != 10*time.Minute {
		t.Fatalf("durations = %v / %v", cfg.LLMTimeout, cfg.SessionTTL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.DefaultTZ != "Asia/Yekaterinburg" {
		t.Fatalf("DefaultTZ = %q", cfg.DefaultTZ)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{
		DBName:             "bot.db",
		TelegramToken:      "t",
		LLMTimeout:         time.Second,
		LLMRPS:             1,
		LLMBurst:           1,
		DefaultTZ:          "UTC",
		DefaultCheckinTime: "18:00",
		SessionTTL:         time.Minute,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	cases := map[string]func(c *Config){
		"no token":    func(c *Config) { c.TelegramToken = "" },
		"no db":       func(c *Config) { c.DBName = "" },
		"bad tz":      func(c *Config) { c.DefaultTZ = "Mars/Olympus" },
		"bad time":    func(c *Config) { c.DefaultCheckinTime = "25:00" },
		"zero ttl":    func(c *Config) { c.SessionTTL = 0 },
		"zero llm to": func(c *Config) { c.LLMTimeout = 0 },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
