// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.supportiq/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Ollama: generation model, embedding model, sampling, timeout
//   - RAG: retrieval and escalation policy thresholds (see rag.go)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: CORS, proxy trust, rate limiting
//
// Security: Sensitive data (passwords) are never logged; config directory uses 0750 permissions.
// Validation: Comprehensive range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidModelName indicates a model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidVectorDimension indicates the embedding dimension is invalid.
	ErrInvalidVectorDimension = errors.New("invalid vector dimension")

	// ErrInvalidThreshold indicates a RAG policy threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Default model configuration.
//
// all-minilm is the Ollama packaging of the MiniLM sentence encoder and
// outputs 384-dimensional vectors, matching the embeddings table schema.
// Changing the embedder model requires re-ingesting every document: vectors
// from different models are not comparable.
const (
	DefaultGenerationModel = "llama3.1"
	DefaultEmbedderModel   = "all-minilm"
	DefaultVectorDimension = 384
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// Ollama configuration
	OllamaHost      string  `mapstructure:"ollama_host" json:"ollama_host"`
	GenerationModel string  `mapstructure:"generation_model" json:"generation_model"`
	EmbedderModel   string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	TopP            float32 `mapstructure:"top_p" json:"top_p"`
	MaxTokens       int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Generation timeout in seconds. The generator boundary enforces this;
	// a stuck model call returns fallback text instead of blocking the caller.
	GenerationTimeoutSecs int `mapstructure:"generation_timeout_seconds" json:"generation_timeout_seconds"`

	// RAG retrieval and escalation policy (see rag.go)
	RAG RAGConfig `mapstructure:"rag" json:"rag"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration (serve mode only)
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// GenerationTimeout returns the generator timeout as a time.Duration.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSecs) * time.Second
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.supportiq/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".supportiq")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Ollama defaults. Low temperature keeps support answers factual.
	viper.SetDefault("ollama_host", "http://localhost:11434")
	viper.SetDefault("generation_model", DefaultGenerationModel)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("top_p", 0.9)
	viper.SetDefault("max_tokens", 512)
	viper.SetDefault("generation_timeout_seconds", 120)

	// RAG policy defaults (see rag.go for the meaning of each knob)
	viper.SetDefault("rag.top_k", 5)
	viper.SetDefault("rag.similarity_threshold", 0.3)
	viper.SetDefault("rag.auto_escalate_threshold", 0.4)
	viper.SetDefault("rag.offer_escalation_threshold", 0.7)
	viper.SetDefault("rag.strong_source_threshold", 0.6)
	viper.SetDefault("rag.weak_source_threshold", 0.35)
	viper.SetDefault("rag.vector_dimension", DefaultVectorDimension)
	viper.SetDefault("rag.chunk_size", 500)
	viper.SetDefault("rag.chunk_overlap", 50)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "supportiq")
	viper.SetDefault("postgres_password", "supportiq_dev_password")
	viper.SetDefault("postgres_db_name", "supportiq")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// CORS defaults (local frontend dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})

	// Proxy trust (default false, safe for direct exposure; set true behind reverse proxy)
	viper.SetDefault("trust_proxy", false)

	// Rate limiter burst per IP (0 = server default)
	viper.SetDefault("rate_burst", 0)
}

// bindEnvVariables binds environment variables explicitly.
// Only operational overrides are bound; everything else comes from the file.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("ollama_host", "SUPPORTIQ_OLLAMA_HOST")
	mustBind("generation_model", "SUPPORTIQ_GENERATION_MODEL")
	mustBind("embedder_model", "SUPPORTIQ_EMBEDDER_MODEL")

	mustBind("cors_origins", "SUPPORTIQ_CORS_ORIGINS")
	mustBind("trust_proxy", "SUPPORTIQ_TRUST_PROXY")
	mustBind("rate_burst", "SUPPORTIQ_RATE_BURST")

	// NOTE: DATABASE_URL is read directly in parseDatabaseURL, not via Viper,
	// because it overrides several postgres_* fields at once.
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
