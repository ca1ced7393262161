// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (SKALD_* prefix, plus DATABASE_URL / OPENAI_API_KEY)
//  2. Config file (~/.skald/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Provider: OpenAI-compatible gateway (base URL, API key, models)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k and similarity threshold tunables
//   - Ingest: chunking and file-size limits
//   - Observability: OTLP tracing (optional)
//
// Security: the API key and database password are never logged; use
// Config.Redacted() when echoing configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration problems. Check with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidBaseURL indicates the provider base URL is malformed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidScoreThreshold indicates the similarity threshold is out of range.
	ErrInvalidScoreThreshold = errors.New("invalid score threshold")

	// ErrInvalidChunkSize indicates the chunk character budget is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidMaxFileSize indicates the ingestion file-size limit is out of range.
	ErrInvalidMaxFileSize = errors.New("invalid max file size")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Defaults for the provider and retrieval tunables.
const (
	// DefaultBaseURL targets the public OpenAI endpoint; deployments behind a
	// self-hosted gateway override it.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultEmbedModel is the default embedding model.
	DefaultEmbedModel = "text-embedding-3-small"

	// DefaultEmbedDimension matches text-embedding-3-small output and the
	// vector column created by the store.
	DefaultEmbedDimension = 1536

	// DefaultChatModel is the default chat-completion model.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTopK is the default number of context chunks per query.
	DefaultTopK = 5

	// DefaultScoreThreshold is the default minimum cosine similarity for a
	// chunk to qualify as context. Tunable; call sites must not hardcode it.
	DefaultScoreThreshold = 0.25

	// DefaultChunkSize is the target character budget per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of sentences repeated between
	// adjacent chunks.
	DefaultChunkOverlap = 1

	// DefaultMaxFileSize caps a single ingested file at 10 MB.
	DefaultMaxFileSize = 10 << 20

	// DefaultRequestTimeoutSeconds bounds each provider/store network call.
	DefaultRequestTimeoutSeconds = 30
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked by Redacted(); when adding new
// sensitive fields (passwords, API keys, tokens), update Redacted.
type Config struct {
	// Provider (OpenAI-compatible gateway)
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	ChatModel      string  `mapstructure:"chat_model"`
	EmbedModel     string  `mapstructure:"embed_model"`
	EmbedDimension int     `mapstructure:"embed_dimension"`
	Temperature    float64 `mapstructure:"temperature"`

	// RequestTimeoutSeconds bounds every outbound network call (provider,
	// vector search). Zero means DefaultRequestTimeoutSeconds.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`

	// Retrieval tunables
	TopK           int     `mapstructure:"top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`

	// Ingestion
	ChunkSize    int   `mapstructure:"chunk_size"`
	ChunkOverlap int   `mapstructure:"chunk_overlap"`
	MaxFileSize  int64 `mapstructure:"max_file_size"`

	// PostgreSQL
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Observability (optional OTLP tracing)
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`

	// Logging
	LogLevel string `mapstructure:"log_level"` // debug|info|warn|error
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from file, environment, and defaults.
//
// The config file is optional; a missing file falls back to env + defaults.
// Environment variables use the SKALD_ prefix (SKALD_CHAT_MODEL, ...), with
// OPENAI_API_KEY and DATABASE_URL honored as conventional overrides.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("SKALD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; env + defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Conventional environment overrides.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers the default value for every key so that a bare
// environment still yields a runnable configuration (minus the API key).
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("embed_model", DefaultEmbedModel)
	v.SetDefault("embed_dimension", DefaultEmbedDimension)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("request_timeout_seconds", DefaultRequestTimeoutSeconds)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("score_threshold", DefaultScoreThreshold)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("max_file_size", DefaultMaxFileSize)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "skald")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "skald")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("otlp_endpoint", "localhost:4318")
	v.SetDefault("service_name", "skald")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// configDir returns the skald config directory (~/.skald), creating it with
// restrictive permissions if absent.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".skald")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// Redacted returns a copy safe for logging: secrets replaced with "****".
func (c *Config) Redacted() Config {
	cp := *c
	if cp.APIKey != "" {
		cp.APIKey = "****"
	}
	if cp.PostgresPassword != "" {
		cp.PostgresPassword = "****"
	}
	return cp
}
