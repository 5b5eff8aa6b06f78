package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AGENTS_PATH", "DEFAULT_AGENT", "LLM_PROVIDER", "LLM_MODEL", "SESSION_STORE", "ADMIN_LOG_WINDOW", "ADMIN_LOG_MEMORY_LIMIT", "SESSION_TTL", "WIKI_TOP_K", "WIKI_MAX_CHARS"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultAgent != "Research Assistant" {
		t.Errorf("DefaultAgent = %q", cfg.DefaultAgent)
	}
	if cfg.AdminLog.Window != 10 {
		t.Errorf("AdminLog.Window = %d, want 10", cfg.AdminLog.Window)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("Session.TTL = %v, want 24h", cfg.Session.TTL)
	}
	if cfg.Tools.WikiTopK != 3 || cfg.Tools.WikiMaxChars != 500 {
		t.Errorf("unexpected wiki defaults: top_k=%d max_chars=%d", cfg.Tools.WikiTopK, cfg.Tools.WikiMaxChars)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("DB_PATH", "/tmp/chat.db")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("AGENT_STRUCTURED_OUTPUT", "yes")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Session.Store != "sqlite" || cfg.Session.DBPath != "/tmp/chat.db" {
		t.Errorf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.RateLimit.WindowDuration != 30*time.Second {
		t.Errorf("WindowDuration = %v", cfg.RateLimit.WindowDuration)
	}
	if !cfg.LLM.StructuredOutput {
		t.Error("expected structured output to be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.IsDevelopment() {
		t.Error("explicit origins should not be treated as development")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:               "8080",
			AgentsPath:         "agents.json",
			DefaultAgent:       "Research Assistant",
			MaxRequestBodySize: 1024,
			AdminLog:           AdminLogConfig{Path: "admin.json", Window: 10, MemoryLimit: 100, QueueSize: 10},
			LLM:                LLMConfig{Provider: "openai", Model: "gpt-4o-mini", MaxIterations: 15},
			Session:            SessionConfig{Store: "memory"},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"blank default agent", func(c *Config) { c.DefaultAgent = "  " }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"zero iterations", func(c *Config) { c.LLM.MaxIterations = 0 }},
		{"unknown store", func(c *Config) { c.Session.Store = "redis" }},
		{"sqlite without path", func(c *Config) { c.Session.Store = "sqlite" }},
		{"memory limit below window", func(c *Config) { c.AdminLog.MemoryLimit = 5 }},
		{"negative ttl", func(c *Config) { c.Session.TTL = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, ok := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, prev)
		}
	})
}
