// Package chat orchestrates grounded answer generation: retrieve context,
// assemble the grounding prompt, call the completion gateway with retry,
// rate limiting and a circuit breaker.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/skald-ai/skald/internal/retrieval"
)

// ErrGeneration wraps completion failures that survived the retry budget.
var ErrGeneration = errors.New("answer generation failed")

// FallbackMode decides what happens when retrieval itself fails.
type FallbackMode int

const (
	// FallbackError surfaces retrieval failures to the caller.
	FallbackError FallbackMode = iota

	// FallbackUngrounded answers without document context, marking the
	// reply as ungrounded so the caller can flag it.
	FallbackUngrounded
)

// Retriever supplies ranked context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, threadID uuid.UUID, opts ...retrieval.Option) (*retrieval.Result, error)
}

// Completer performs the LLM call.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Reply is a generated answer with its provenance.
type Reply struct {
	Answer string

	// Context is the retrieval result the answer was grounded in. Nil when
	// retrieval failed and the fallback allowed answering without it.
	Context *retrieval.Result

	// Grounded is false when the answer was produced without document
	// context, either because retrieval found nothing or because it
	// failed and the fallback allowed continuing.
	Grounded bool
}

// Sources returns the distinct source file names behind the reply.
func (r *Reply) Sources() []string {
	if r.Context == nil {
		return nil
	}
	return r.Context.FileNames()
}

// Config configures a Responder.
type Config struct {
	Fallback FallbackMode
	Retry    RetryConfig
	Breaker  CircuitBreakerConfig

	// RequestsPerMinute throttles completion calls. Zero disables the
	// limiter.
	RequestsPerMinute int
}

func (c Config) validate() error {
	if c.Fallback != FallbackError && c.Fallback != FallbackUngrounded {
		return fmt.Errorf("unknown fallback mode %d", c.Fallback)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute must be non-negative, got %d", c.RequestsPerMinute)
	}
	return nil
}

// Responder generates grounded answers. Safe for concurrent use.
type Responder struct {
	retriever Retriever
	completer Completer
	breaker   *CircuitBreaker
	limiter   *rate.Limiter
	retry     RetryConfig
	fallback  FallbackMode
	logger    *slog.Logger
}

// New creates a Responder.
func New(rt Retriever, cp Completer, cfg Config, logger *slog.Logger) (*Responder, error) {
	if rt == nil {
		return nil, errors.New("retriever is required")
	}
	if cp == nil {
		return nil, errors.New("completer is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialInterval == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.RequestsPerMinute)
	}

	return &Responder{
		retriever: rt,
		completer: cp,
		breaker:   NewCircuitBreaker(cfg.Breaker),
		limiter:   limiter,
		retry:     cfg.Retry,
		fallback:  cfg.Fallback,
		logger:    logger,
	}, nil
}

// Generate answers a query using the thread's indexed documents. The answer
// is grounded in retrieved context when any exists; an empty thread still
// gets an answer, with the model instructed to say when the documents do not
// cover the question.
func (r *Responder) Generate(ctx context.Context, query string, threadID uuid.UUID) (*Reply, error) {
	if strings.TrimSpace(query) == "" {
		return nil, retrieval.ErrEmptyQuery
	}

	var (
		contextText string
		retrieved   *retrieval.Result
		grounded    bool
	)
	res, err := r.retriever.Retrieve(ctx, query, threadID)
	switch {
	case err == nil:
		retrieved = res
		contextText = res.ContextText
		grounded = contextText != ""
	case r.fallback == FallbackUngrounded:
		r.logger.Warn("retrieval failed, answering ungrounded",
			"thread_id", threadID, "error", err)
	default:
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	if err := r.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer, err := r.completeWithRetry(ctx, systemPrompt(contextText), query)
	if err != nil {
		r.breaker.Failure()
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	r.breaker.Success()

	return &Reply{
		Answer:   answer,
		Context:  retrieved,
		Grounded: grounded,
	}, nil
}

// BreakerState exposes the circuit state for health reporting.
func (r *Responder) BreakerState() CircuitState {
	return r.breaker.State()
}

// Apology is the canned user-facing message printed when generation fails
// entirely. Kept here so every surface says the same thing.
func Apology() string {
	return "Sorry, I couldn't generate an answer right now. Please try again in a moment."
}

// systemPrompt assembles the grounding instructions. The numbered context
// blocks match the [n] citation format the model is asked to use.
func systemPrompt(contextText string) string {
	var b strings.Builder
	b.WriteString("You are a careful assistant that answers questions using the provided document excerpts.\n")

	if contextText == "" {
		b.WriteString("\nNo relevant excerpts were found for this question. ")
		b.WriteString("Say clearly that the available documents do not contain the answer, ")
		b.WriteString("then answer from general knowledge only if you can do so reliably.\n")
		return b.String()
	}

	b.WriteString("Base your answer on the excerpts below and cite them as [1], [2] and so on. ")
	b.WriteString("If the excerpts do not contain enough information, say so instead of guessing.\n")
	b.WriteString("\nExcerpts:\n")
	b.WriteString(contextText)
	b.WriteString("\n")
	return b.String()
}
