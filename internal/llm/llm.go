// Package llm wraps chat-completion calls against an OpenAI-compatible
// gateway.
//
// The client is deliberately thin: prompt assembly, retries and fallback
// live in the chat package. This layer only performs the call and surfaces
// provider errors unchanged.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyCompletion indicates the provider returned no choices or an empty
// message.
var ErrEmptyCompletion = errors.New("empty completion from provider")

// Config configures the completion client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Temperature controls sampling randomness. Grounded answering wants
	// low values.
	Temperature float64
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
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature out of range: %g", c.Temperature)
	}
	return nil
}

// Client performs chat completions. Safe for concurrent use.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
}

// New creates a completion client.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

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
		api:         openai.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends a system prompt and user message, returning the assistant's
// reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
