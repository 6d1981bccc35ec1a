package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Providers     ProvidersConfig
	Analysis      AnalysisConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ProvidersConfig holds AI provider configurations
type ProvidersConfig struct {
	Anthropic ProviderConfig
	Gemini    ProviderConfig
	OpenAI    OpenAIProviderConfig
}

// ProviderConfig holds configuration common to provider adapters
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIProviderConfig extends ProviderConfig for OpenAI-compatible
// endpoints
type OpenAIProviderConfig struct {
	ProviderConfig

	// Compatible marks a non-OpenAI endpoint speaking the same wire
	// format; model validation is relaxed
	Compatible bool
}

// AnalysisConfig holds beat analysis configuration
type AnalysisConfig struct {
	// TemplateDir holds user beat-template YAML files; empty means
	// built-ins only
	TemplateDir string

	// CacheTTL controls analysis result caching; zero disables it
	CacheTTL time.Duration

	// AuditCapacity bounds the in-memory audit store
	AuditCapacity int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present (backend/.env when run from project root)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Providers: ProvidersConfig{
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
				Timeout: getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
			},
			Gemini: ProviderConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", ""),
				Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			},
			OpenAI: OpenAIProviderConfig{
				ProviderConfig: ProviderConfig{
					APIKey:  getEnv("OPENAI_API_KEY", ""),
					BaseURL: getEnv("OPENAI_BASE_URL", ""),
					Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				},
				Compatible: getEnvAsBool("OPENAI_COMPATIBLE", false),
			},
		},
		Analysis: AnalysisConfig{
			TemplateDir:   getEnv("TEMPLATE_DIR", ""),
			CacheTTL:      getEnvAsDuration("ANALYSIS_CACHE_TTL", 10*time.Minute),
			AuditCapacity: getEnvAsInt("AUDIT_CAPACITY", 1000),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for problems
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if !c.HasAnyProvider() {
		return fmt.Errorf("no provider configured: set at least one of ANTHROPIC_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY")
	}

	return nil
}

// HasAnyProvider reports whether at least one provider has an API key
func (c *Config) HasAnyProvider() bool {
	return c.Providers.Anthropic.APIKey != "" ||
		c.Providers.Gemini.APIKey != "" ||
		c.Providers.OpenAI.APIKey != ""
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Redacted returns a loggable summary without credential material
func (c *Config) Redacted() map[string]string {
	summary := map[string]string{
		"environment": c.Environment,
		"address":     c.Server.Address(),
		"log_level":   c.Observability.LogLevel,
	}
	summary["anthropic"] = redactedState(c.Providers.Anthropic.APIKey)
	summary["gemini"] = redactedState(c.Providers.Gemini.APIKey)
	summary["openai"] = redactedState(c.Providers.OpenAI.APIKey)
	return summary
}

func redactedState(key string) string {
	if key == "" {
		return "unconfigured"
	}
	return "configured"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
