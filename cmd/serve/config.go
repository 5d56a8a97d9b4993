package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration loaded from environment variables.
type Config struct {
	// Server
	Port        string
	LogLevel    string // debug, info, warn, error
	CORSOrigins []string

	// Provider selection
	Provider string
	Model    string

	// API keys
	AnthropicKey  string
	OpenAIKey     string
	OpenAIBaseURL string
	GoogleKey     string

	// Tools
	TavilyAPIKey string
	TrendsMCPURL string

	// Persistence
	DatabaseURL string

	// Auth
	JWTSecret string

	// Agent config
	MaxIterations     int
	GenerationTimeout time.Duration
	HistoryLimit      int
}

// LoadConfig loads configuration from environment variables.
// It loads a .env file if present (silent fail if not found).
func LoadConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8000"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins:       splitCommaList(getEnvOrDefault("CORS_ORIGINS", "*")),
		Provider:          getEnvOrDefault("PROVIDER", "openai"),
		Model:             os.Getenv("MODEL"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		GoogleKey:         os.Getenv("GOOGLE_API_KEY"),
		TavilyAPIKey:      os.Getenv("TAVILY_API_KEY"),
		TrendsMCPURL:      os.Getenv("MCP_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		MaxIterations:     getEnvIntOrDefault("AGENT_MAX_ITERATIONS", 10),
		GenerationTimeout: getEnvDurationOrDefault("AGENT_TIMEOUT", 30*time.Second),
		HistoryLimit:      getEnvIntOrDefault("HISTORY_LIMIT", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for anthropic provider")
		}
	case "google":
		if c.GoogleKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for google provider")
		}
	default:
		return fmt.Errorf("unknown provider: %s (must be openai, anthropic, or google)", c.Provider)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	return nil
}

func splitCommaList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
