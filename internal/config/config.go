// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	AllowedOrigins     []string
	LogLevel           string
	AgentsPath         string
	DefaultAgent       string
	MaxRequestBodySize int64
	GRPCHealthAddr     string
	AdminLog           AdminLogConfig
	LLM                LLMConfig
	Tools              ToolsConfig
	Session            SessionConfig
	RateLimit          RateLimitConfig
}

// AdminLogConfig controls the invocation log behind /admin.
type AdminLogConfig struct {
	Path        string
	Window      int
	MemoryLimit int
	QueueSize   int
}

// LLMConfig selects and configures the chat model backing every agent.
type LLMConfig struct {
	Provider         string // "openai", "ollama" or "echo"
	Model            string
	APIKey           string
	BaseURL          string
	OllamaHost       string
	Timeout          time.Duration
	MaxIterations    int
	StructuredOutput bool
}

// ToolsConfig configures the tool adapters bound to every agent.
type ToolsConfig struct {
	SearchURL        string
	SearchMaxResults int
	WikiURL          string
	WikiTopK         int
	WikiMaxChars     int
	SaveDir          string
	Timeout          time.Duration
}

// SessionConfig controls chat history storage and eviction.
type SessionConfig struct {
	Store         string // "memory" or "sqlite"
	DBPath        string
	TTL           time.Duration
	MaxSessions   int
	SweepInterval time.Duration
}

// RateLimitConfig controls per-client request throttling on /chat.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AgentsPath:         getEnv("AGENTS_PATH", "./agents.json"),
		DefaultAgent:       getEnv("DEFAULT_AGENT", "Research Assistant"),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		GRPCHealthAddr:     getEnv("GRPC_HEALTH_ADDR", ""),
		AdminLog: AdminLogConfig{
			Path:        getEnv("ADMIN_LOG_PATH", "./admin_logs.json"),
			Window:      getEnvInt("ADMIN_LOG_WINDOW", 10),
			MemoryLimit: getEnvInt("ADMIN_LOG_MEMORY_LIMIT", 1000),
			QueueSize:   getEnvInt("ADMIN_LOG_QUEUE_SIZE", 1000),
		},
		LLM: LLMConfig{
			Provider:         strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:            getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:           getEnv("OPENAI_API_KEY", ""),
			BaseURL:          getEnv("OPENAI_BASE_URL", ""),
			OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Timeout:          getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxIterations:    getEnvInt("AGENT_MAX_ITERATIONS", 15),
			StructuredOutput: getEnvBool("AGENT_STRUCTURED_OUTPUT", false),
		},
		Tools: ToolsConfig{
			SearchURL:        getEnv("SEARCH_URL", "https://html.duckduckgo.com/html/"),
			SearchMaxResults: getEnvInt("SEARCH_MAX_RESULTS", 5),
			WikiURL:          getEnv("WIKI_URL", "https://en.wikipedia.org"),
			WikiTopK:         getEnvInt("WIKI_TOP_K", 3),
			WikiMaxChars:     getEnvInt("WIKI_MAX_CHARS", 500),
			SaveDir:          getEnv("SAVE_DIR", "."),
			Timeout:          getEnvDuration("TOOL_TIMEOUT", 20*time.Second),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(getEnv("SESSION_STORE", "memory")),
			DBPath:        getEnv("DB_PATH", "./data/chat.db"),
			TTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
			MaxSessions:   getEnvInt("SESSION_MAX", 10000),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.AgentsPath == "" {
		return fmt.Errorf("AGENTS_PATH cannot be empty")
	}
	if strings.TrimSpace(c.DefaultAgent) == "" {
		return fmt.Errorf("DEFAULT_AGENT cannot be empty")
	}
	if c.AdminLog.Path == "" {
		return fmt.Errorf("ADMIN_LOG_PATH cannot be empty")
	}
	if c.AdminLog.Window <= 0 {
		return fmt.Errorf("ADMIN_LOG_WINDOW must be > 0")
	}
	if c.AdminLog.MemoryLimit < c.AdminLog.Window {
		return fmt.Errorf("ADMIN_LOG_MEMORY_LIMIT must be >= ADMIN_LOG_WINDOW")
	}
	if c.AdminLog.QueueSize <= 0 {
		return fmt.Errorf("ADMIN_LOG_QUEUE_SIZE must be > 0")
	}
	switch c.LLM.Provider {
	case "openai", "ollama", "echo":
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider)
	}
	if c.LLM.Model == "" && c.LLM.Provider != "echo" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.MaxIterations <= 0 {
		return fmt.Errorf("AGENT_MAX_ITERATIONS must be > 0")
	}
	switch c.Session.Store {
	case "memory":
	case "sqlite":
		if c.Session.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when SESSION_STORE=sqlite")
		}
	default:
		return fmt.Errorf("SESSION_STORE %q is not supported", c.Session.Store)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("SESSION_TTL must be >= 0")
	}
	if c.RateLimit.RequestsPerWindow > 0 && c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true when every origin is allowed.
func (c *Config) IsDevelopment() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.Contains(o, "localhost") || strings.Contains(o, "127.0.0.1") {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
