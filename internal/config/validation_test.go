package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a configuration that passes Validate; tests mutate a
// single field and assert the matching sentinel.
func validConfig() *Config {
	return &Config{
		BaseURL:        "https://gateway.internal/v1",
		APIKey:         "sk-test",
		ChatModel:      "gpt-4o-mini",
		EmbedModel:     "text-embedding-3-small",
		EmbedDimension: 1536,
		Temperature:    0.2,
		TopK:           5,
		ScoreThreshold: 0.25,
		ChunkSize:      1000,
		ChunkOverlap:   1,
		MaxFileSize:    10 << 20,

		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresUser:    "skald",
		PostgresDBName:  "skald",
		PostgresSSLMode: "disable",
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateSentinels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing api key", func(c *Config) { c.APIKey = "" }, ErrMissingAPIKey},
		{"bad base url scheme", func(c *Config) { c.BaseURL = "ftp://x" }, ErrInvalidBaseURL},
		{"base url no host", func(c *Config) { c.BaseURL = "https://" }, ErrInvalidBaseURL},
		{"empty chat model", func(c *Config) { c.ChatModel = " " }, ErrInvalidModelName},
		{"empty embed model", func(c *Config) { c.EmbedModel = "" }, ErrInvalidModelName},
		{"zero dimension", func(c *Config) { c.EmbedDimension = 0 }, ErrInvalidDimension},
		{"huge dimension", func(c *Config) { c.EmbedDimension = 100000 }, ErrInvalidDimension},
		{"negative temperature", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"zero top-k", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"threshold >= 1", func(c *Config) { c.ScoreThreshold = 1.0 }, ErrInvalidScoreThreshold},
		{"negative threshold", func(c *Config) { c.ScoreThreshold = -0.1 }, ErrInvalidScoreThreshold},
		{"tiny chunk size", func(c *Config) { c.ChunkSize = 10 }, ErrInvalidChunkSize},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, ErrInvalidChunkSize},
		{"zero max file size", func(c *Config) { c.MaxFileSize = 0 }, ErrInvalidMaxFileSize},
		{"empty pg host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"pg port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty dbname", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad sslmode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "hunter2"

	red := cfg.Redacted()
	assert.Equal(t, "****", red.APIKey)
	assert.Equal(t, "****", red.PostgresPassword)
	// Original untouched.
	assert.Equal(t, "sk-test", cfg.APIKey)
}
