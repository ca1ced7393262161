package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validation bounds. Values outside these ranges are almost certainly
// configuration mistakes rather than deliberate tuning.
const (
	maxEmbedDimension = 8192
	maxTopK           = 100
	maxChunkSize      = 32_000
	maxFileSizeLimit  = 100 << 20
)

// Validate performs range checks over the whole configuration.
// It returns the first problem found, wrapped around a sentinel error so
// call sites can branch with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.APIKey == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY or api_key in config", ErrMissingAPIKey)
	}

	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}

	if strings.TrimSpace(c.ChatModel) == "" {
		return fmt.Errorf("%w: chat_model must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedModel) == "" {
		return fmt.Errorf("%w: embed_model must not be empty", ErrInvalidModelName)
	}

	if c.EmbedDimension <= 0 || c.EmbedDimension > maxEmbedDimension {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidDimension, c.EmbedDimension, maxEmbedDimension)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (must be 0..2)", ErrInvalidTemperature, c.Temperature)
	}

	if c.TopK <= 0 || c.TopK > maxTopK {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidTopK, c.TopK, maxTopK)
	}

	if c.ScoreThreshold < 0 || c.ScoreThreshold >= 1 {
		return fmt.Errorf("%w: %.2f (must be in [0,1))", ErrInvalidScoreThreshold, c.ScoreThreshold)
	}

	if c.ChunkSize < 100 || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("%w: %d (must be 100..%d)", ErrInvalidChunkSize, c.ChunkSize, maxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap > 10 {
		return fmt.Errorf("%w: chunk_overlap %d (must be 0..10)", ErrInvalidChunkSize, c.ChunkOverlap)
	}

	if c.MaxFileSize <= 0 || c.MaxFileSize > maxFileSizeLimit {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidMaxFileSize, c.MaxFileSize, int64(maxFileSizeLimit))
	}

	return c.validatePostgres()
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: dbname must not be empty", ErrInvalidPostgresDBName)
	}

	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidBaseURL)
	}
	return nil
}

// RequestTimeout returns the configured per-call timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	secs := c.RequestTimeoutSeconds
	if secs <= 0 {
		secs = DefaultRequestTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}
