package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup, used by tests and the CLI.
func LoadFrom(lookup func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct walks nested structs and fills tagged fields.
func loadStruct(v reflect.Value, lookup func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookup(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = lookup(alt)
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// AI validation
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderFuzzy:
	default:
		errs = append(errs, fmt.Sprintf("AI_PROVIDER (%q) must be one of: openai, gemini, fuzzy", c.AI.Provider))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, "AI_TIMEOUT must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("AI_TEMPERATURE (%g) must be between 0 and 2", c.AI.Temperature))
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, "AI_MAX_TOKENS must be positive")
	}
	if c.AI.MaxRetries < 0 {
		errs = append(errs, "AI_MAX_RETRIES must be non-negative")
	}
	if c.AI.SampleRows < 0 {
		errs = append(errs, "AI_SAMPLE_ROWS must be non-negative")
	}

	// Convert validation
	if c.Convert.MaxFileSize <= 0 {
		errs = append(errs, "CONVERT_MAX_FILE_SIZE must be positive")
	}
	if c.Convert.MaxConcurrent <= 0 {
		errs = append(errs, "CONVERT_MAX_CONCURRENT must be positive")
	}
	if c.Convert.MaxWaitTime <= 0 {
		errs = append(errs, "CONVERT_MAX_WAIT must be positive")
	}

	// Database validation only applies when ingestion is enabled
	if c.Database.URL != "" {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	if c.Cache.RedisURL != "" && c.Cache.TTL <= 0 {
		errs = append(errs, "CACHE_TTL must be positive when REDIS_URL is set")
	}
	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		errs = append(errs, "KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ConvertLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_CONVERT must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials and connection strings are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("AI: {Provider: %q, Model: %q, Key: %s, MaxRetries: %d}, ",
		c.AI.Provider, c.AI.DefaultModel(), mask(c.AI.Configured()), c.AI.MaxRetries))
	b.WriteString(fmt.Sprintf("Convert: {MaxFileSize: %d, MaxConcurrent: %d, KeepUnmapped: %v}, ",
		c.Convert.MaxFileSize, c.Convert.MaxConcurrent, c.Convert.KeepUnmapped))
	b.WriteString(fmt.Sprintf("Database: {URL: %s}, ", mask(c.Database.URL != "")))
	b.WriteString(fmt.Sprintf("Cache: {URL: %s}, ", mask(c.Cache.RedisURL != "")))
	b.WriteString(fmt.Sprintf("Events: {Brokers: %d, Topic: %q}, ", len(c.Events.Brokers), c.Events.Topic))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(set bool) string {
	if set {
		return "[MASKED]"
	}
	return "[UNSET]"
}
