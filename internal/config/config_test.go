package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Errorf("AI.Provider = %q, want %q", cfg.AI.Provider, ProviderOpenAI)
	}
	if cfg.AI.Temperature != 0.1 {
		t.Errorf("AI.Temperature = %v, want %v", cfg.AI.Temperature, 0.1)
	}
	if cfg.AI.MaxRetries != 0 {
		t.Errorf("AI.MaxRetries = %d, want 0", cfg.AI.MaxRetries)
	}
	if cfg.Convert.KeepUnmapped {
		t.Error("Convert.KeepUnmapped = true, want false")
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty", cfg.Database.URL)
	}
	if diff := cmp.Diff([]string{"*"}, cfg.Server.CORSOrigins); diff != "" {
		t.Errorf("Server.CORSOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.AI.Configured() {
		t.Error("AI.Configured() = true without OPENAI_API_KEY")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"SERVER_PORT":            "9090",
		"AI_PROVIDER":            " Gemini ",
		"GEMINI_API_KEY":         "g-key",
		"AI_TEMPERATURE":         "0.3",
		"CONVERT_MAX_CONCURRENT": "3",
		"LOG_LEVEL":              "debug",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.AI.Provider != ProviderGemini {
		t.Errorf("AI.Provider = %q, want %q", cfg.AI.Provider, ProviderGemini)
	}
	if !cfg.AI.Configured() {
		t.Error("AI.Configured() = false, want true")
	}
	if got := cfg.AI.DefaultModel(); got != "gemini-2.5-flash" {
		t.Errorf("AI.DefaultModel() = %q, want %q", got, "gemini-2.5-flash")
	}
	if cfg.AI.Temperature != 0.3 {
		t.Errorf("AI.Temperature = %v, want %v", cfg.AI.Temperature, 0.3)
	}
	if cfg.Convert.MaxConcurrent != 3 {
		t.Errorf("Convert.MaxConcurrent = %d, want %d", cfg.Convert.MaxConcurrent, 3)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"DB_URL": "postgres://localhost/alttest",
		"PORT":   "7000",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
	if cfg.Server.Addr() != "0.0.0.0:7000" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "0.0.0.0:7000")
	}
}

func TestLoad_Duration(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"AI_TIMEOUT":       "45s",
		"CONVERT_MAX_WAIT": "1m30s",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.AI.Timeout != 45*time.Second {
		t.Errorf("AI.Timeout = %v, want %v", cfg.AI.Timeout, 45*time.Second)
	}
	if cfg.Convert.MaxWaitTime != 90*time.Second {
		t.Errorf("Convert.MaxWaitTime = %v, want %v", cfg.Convert.MaxWaitTime, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"KAFKA_BROKERS": "kafka-1:9092, kafka-2:9092 ,",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if diff := cmp.Diff(want, cfg.Events.Brokers); diff != "" {
		t.Errorf("Events.Brokers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := LoadFrom(env(map[string]string{"SERVER_PORT": "eighty"}))
	if err == nil {
		t.Fatal("LoadFrom() expected error for non-numeric port")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error = %q, want it to name SERVER_PORT", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"invalid port", map[string]string{"SERVER_PORT": "99999"}, "SERVER_PORT"},
		{"unknown provider", map[string]string{"AI_PROVIDER": "llama"}, "AI_PROVIDER"},
		{"temperature range", map[string]string{"AI_TEMPERATURE": "3"}, "AI_TEMPERATURE"},
		{"negative retries", map[string]string{"AI_MAX_RETRIES": "-1"}, "AI_MAX_RETRIES"},
		{"api key required", map[string]string{"REQUIRE_API_KEY": "true"}, "API_KEYS"},
		{"db pool bounds", map[string]string{"DATABASE_URL": "postgres://x", "DB_MAX_CONNS": "1", "DB_MIN_CONNS": "5"}, "DB_MAX_CONNS"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(env(tt.vars))
			if err == nil {
				t.Fatal("LoadFrom() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	_, err := LoadFrom(env(map[string]string{
		"SERVER_PORT": "0",
		"LOG_LEVEL":   "verbose",
	}))
	if err == nil {
		t.Fatal("LoadFrom() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"OPENAI_API_KEY": "sk-secret",
		"DATABASE_URL":   "postgres://user:pass@db/app",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	s := cfg.String()
	for _, secret := range []string{"sk-secret", "user:pass"} {
		if strings.Contains(s, secret) {
			t.Errorf("String() leaks %q: %s", secret, s)
		}
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked fields", s)
	}
}
