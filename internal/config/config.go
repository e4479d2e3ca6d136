// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	AI       AIConfig
	Convert  ConvertConfig
	Schema   SchemaConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Events   EventsConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// AppConfig identifies the service in health checks and logs.
type AppConfig struct {
	Name    string `env:"APP_NAME" default:"Daana Ingestion Service"`
	Version string `env:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envAlt:"HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8000"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"150s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a whole request including the AI round trip (default: 120s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"120s"`

	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AIConfig selects and tunes the header-mapping backend.
type AIConfig struct {
	// Provider is one of: openai, gemini, fuzzy (default: openai)
	Provider string `env:"AI_PROVIDER" default:"openai"`

	OpenAIKey string `env:"OPENAI_API_KEY"`
	GeminiKey string `env:"GEMINI_API_KEY" envAlt:"GOOGLE_API_KEY"`

	// Model overrides the provider default model.
	Model string `env:"AI_MODEL"`

	// BaseURL points the OpenAI client at a compatible endpoint.
	BaseURL string `env:"AI_BASE_URL" default:"https://api.openai.com/v1"`

	Timeout     time.Duration `env:"AI_TIMEOUT" default:"60s"`
	Temperature float64       `env:"AI_TEMPERATURE" default:"0.1"`
	MaxTokens   int           `env:"AI_MAX_TOKENS" default:"1000"`

	// MaxRetries is the number of extra attempts after a transport failure (default: 0)
	MaxRetries int `env:"AI_MAX_RETRIES" default:"0"`

	// SampleRows is how many data rows are shown to the model as context (default: 3)
	SampleRows int `env:"AI_SAMPLE_ROWS" default:"3"`
}

// ConvertConfig holds CSV conversion settings.
type ConvertConfig struct {
	// MaxFileSize is the maximum accepted upload size in bytes (default: 20MB)
	MaxFileSize int64 `env:"CONVERT_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent bounds simultaneous AI-backed conversions (default: 10)
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"10"`

	// MaxWaitTime is how long a request waits for a conversion slot (default: 30s)
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT" default:"30s"`

	// KeepUnmapped retains columns the mapper could not place (default: false)
	KeepUnmapped bool `env:"CONVERT_KEEP_UNMAPPED" default:"false"`
}

// SchemaConfig locates the target schema catalog.
type SchemaConfig struct {
	// File replaces the embedded catalog when set.
	File string `env:"SCHEMA_FILE"`
}

// DatabaseConfig holds settings for the optional ingestion database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; ingestion is disabled when empty.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// CacheConfig holds settings for the optional mapping cache.
type CacheConfig struct {
	// RedisURL enables the cache when set, e.g. redis://localhost:6379/0
	RedisURL string        `env:"REDIS_URL"`
	TTL      time.Duration `env:"CACHE_TTL" default:"24h"`
}

// EventsConfig holds settings for the optional event publisher.
type EventsConfig struct {
	// Brokers enables Kafka publishing when set.
	Brokers []string `env:"KAFKA_BROKERS"`
	Topic   string   `env:"KAFKA_TOPIC" default:"csv-conversions"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// ConvertLimit is requests per minute for /convert and /ingest (default: 20)
	ConvertLimit int `env:"RATE_LIMIT_CONVERT" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects /convert and /ingest with X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DefaultModel returns the model name for the configured provider.
func (c *AIConfig) DefaultModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOpenAI:
		return "gpt-4o"
	}
	return ""
}

// Configured reports whether the selected provider has the credentials it needs.
func (c *AIConfig) Configured() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIKey != ""
	case ProviderGemini:
		return c.GeminiKey != ""
	case ProviderFuzzy:
		return true
	}
	return false
}

// Mapping backends.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderFuzzy  = "fuzzy"
)
