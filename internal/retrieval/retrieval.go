// Package retrieval turns a user query into ranked context for grounded
// answering.
//
// The engine embeds the query, runs a thread-scoped similarity search, and
// renders the hits as a numbered context block the generation layer can
// cite. No hits is a normal outcome, not an error; the caller decides how
// to respond to an empty context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/vectorstore"
)

// ErrEmptyQuery indicates a blank query string.
var ErrEmptyQuery = errors.New("empty query")

// Embedder produces the query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs similarity search over stored chunks.
type Searcher interface {
	SearchSimilar(ctx context.Context, vector []float32, opts ...vectorstore.SearchOption) ([]vectorstore.ScoredPoint, error)
}

// Hit is one retrieved chunk with its provenance.
type Hit struct {
	Text       string
	Score      float64
	FileName   string
	DocumentID string
	ChunkIndex string
}

// Source attributes one hit to its file, in the same order as the hits.
type Source struct {
	FileName   string
	Similarity float64
}

// Result is the retrieval outcome for one query.
type Result struct {
	Query string
	Hits  []Hit

	// ContextText is the hits rendered as numbered blocks ("[1] ...",
	// "[2] ...") ready for prompt assembly. Empty when nothing matched.
	ContextText string

	// Sources attributes each hit, in rank order. Entries repeat when
	// multiple chunks of one file match; FileNames gives the distinct set.
	Sources []Source
}

// FileNames returns the distinct source file names in rank order.
func (r *Result) FileNames() []string {
	seen := make(map[string]struct{}, len(r.Sources))
	var names []string
	for _, s := range r.Sources {
		if s.FileName == "" {
			continue
		}
		if _, ok := seen[s.FileName]; ok {
			continue
		}
		seen[s.FileName] = struct{}{}
		names = append(names, s.FileName)
	}
	return names
}

// Option overrides engine defaults per query.
type Option func(*queryConfig)

type queryConfig struct {
	topK      int
	threshold float64
	source    string
}

// WithTopK overrides the result limit for one query.
func WithTopK(k int) Option {
	return func(c *queryConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold overrides the minimum similarity score for one query.
func WithThreshold(t float64) Option {
	return func(c *queryConfig) {
		if t >= 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithSource restricts the search to chunks from one content origin
// (vectorstore.SourceDocument or vectorstore.SourceLink).
func WithSource(source string) Option {
	return func(c *queryConfig) {
		c.source = source
	}
}

// Config sets engine defaults.
type Config struct {
	TopK      int
	Threshold float64
}

// Engine retrieves context for queries. Safe for concurrent use.
type Engine struct {
	embedder Embedder
	searcher Searcher
	topK     int
	thresh   float64
	logger   *slog.Logger
}

// New creates an Engine.
func New(em Embedder, se Searcher, cfg Config, logger *slog.Logger) (*Engine, error) {
	if em == nil {
		return nil, errors.New("embedder is required")
	}
	if se == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = vectorstore.DefaultTopK
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold out of range: %g", cfg.Threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder: em,
		searcher: se,
		topK:     cfg.TopK,
		thresh:   cfg.Threshold,
		logger:   logger,
	}, nil
}

// Retrieve embeds the query and returns the thread's most relevant chunks.
func (e *Engine) Retrieve(ctx context.Context, query string, threadID uuid.UUID, opts ...Option) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	cfg := queryConfig{topK: e.topK, threshold: e.thresh}
	for _, opt := range opts {
		opt(&cfg)
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	searchOpts := []vectorstore.SearchOption{
		vectorstore.WithTopK(cfg.topK),
		vectorstore.WithThreshold(cfg.threshold),
		vectorstore.WithFilter(vectorstore.PayloadThreadID, threadID.String()),
	}
	if cfg.source != "" {
		searchOpts = append(searchOpts, vectorstore.WithFilter(vectorstore.PayloadSource, cfg.source))
	}

	hits, err := e.searcher.SearchSimilar(ctx, vector, searchOpts...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	res := &Result{Query: query, Hits: make([]Hit, 0, len(hits))}
	var b strings.Builder
	for i, h := range hits {
		hit := Hit{
			Text:       h.Text,
			Score:      h.Score,
			FileName:   h.Payload[vectorstore.PayloadFileName],
			DocumentID: h.Payload[vectorstore.PayloadDocumentID],
			ChunkIndex: h.Payload[vectorstore.PayloadChunkIndex],
		}
		res.Hits = append(res.Hits, hit)
		res.Sources = append(res.Sources, Source{FileName: hit.FileName, Similarity: hit.Score})

		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, h.Text)
	}
	res.ContextText = b.String()

	e.logger.Debug("retrieved context",
		"thread_id", threadID, "hits", len(res.Hits))
	return res, nil
}
