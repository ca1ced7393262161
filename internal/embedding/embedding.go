// Package embedding provides a client for OpenAI-compatible embedding
// endpoints.
//
// Every returned vector is validated before it reaches storage: a vector of
// the wrong dimension or a degenerate all-zero vector fails the call. The
// validation is fail-closed so corrupt vectors never enter the store.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Sentinel errors. Callers check these with errors.Is.
var (
	// ErrDimensionMismatch indicates the provider returned a vector whose
	// length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDegenerateVector indicates the provider returned an all-zero
	// vector, which carries no similarity signal.
	ErrDegenerateVector = errors.New("degenerate all-zero embedding")

	// ErrEmptyInput indicates the caller passed no text to embed.
	ErrEmptyInput = errors.New("no input text to embed")

	// ErrCountMismatch indicates the provider returned a different number
	// of vectors than inputs.
	ErrCountMismatch = errors.New("embedding count mismatch")
)

// Config configures the embedding client.
type Config struct {
	// APIKey authenticates against the gateway.
	APIKey string
	// BaseURL points at the OpenAI-compatible endpoint. Empty uses the
	// official API.
	BaseURL string
	// Model is the embedding model identifier.
	Model string
	// Dimension is the expected vector length. Must match the vector
	// store's column dimension.
	Dimension int
	// Timeout bounds each request. Zero leaves the call bounded only by
	// the caller's context.
	Timeout time.Duration
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return errors.New("api key is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	return nil
}

// Client embeds text via an OpenAI-compatible gateway. Safe for concurrent
// use.
type Client struct {
	api       openai.Client
	model     string
	dimension int
}

// New creates an embedding client.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding config: %w", err)
	}

	// Retry policy belongs to callers; the SDK's implicit retries would
	// stack with theirs.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		api:       openai.NewClient(reqOpts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Dimension returns the configured vector length.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order. The batch
// is all-or-nothing: any provider error or invalid vector fails the whole
// call and no partial results are returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d vectors",
			ErrCountMismatch, len(texts), len(resp.Data))
	}

	// The provider may return data out of order; Index restores it.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrCountMismatch, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		if err := c.validateVector(vec); err != nil {
			return nil, fmt.Errorf("vector %d: %w", d.Index, err)
		}
		vecs[d.Index] = vec
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("%w: missing vector for input %d", ErrCountMismatch, i)
		}
	}
	return vecs, nil
}

func (c *Client) validateVector(vec []float32) error {
	if len(vec) != c.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dimension)
	}
	for _, v := range vec {
		if v != 0 {
			return nil
		}
	}
	return ErrDegenerateVector
}
