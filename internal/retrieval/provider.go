package retrieval

import (
	"context"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/vectorstore"
)

// Provider narrows retrieval to a single content origin. The set is closed:
// construct a DocumentProvider or LinkProvider explicitly; there is no
// runtime registration.
type Provider interface {
	Context(ctx context.Context, query string, threadID uuid.UUID, limit int) (*Result, error)
}

// DocumentProvider retrieves only chunks ingested from uploaded documents.
type DocumentProvider struct {
	engine *Engine
}

// NewDocumentProvider creates a DocumentProvider over the engine.
func NewDocumentProvider(e *Engine) *DocumentProvider {
	return &DocumentProvider{engine: e}
}

// Context retrieves up to limit document-sourced chunks for the query.
func (p *DocumentProvider) Context(ctx context.Context, query string, threadID uuid.UUID, limit int) (*Result, error) {
	return p.engine.Retrieve(ctx, query, threadID,
		WithTopK(limit), WithSource(vectorstore.SourceDocument))
}

// LinkProvider retrieves only chunks ingested from scraped links.
type LinkProvider struct {
	engine *Engine
}

// NewLinkProvider creates a LinkProvider over the engine.
func NewLinkProvider(e *Engine) *LinkProvider {
	return &LinkProvider{engine: e}
}

// Context retrieves up to limit link-sourced chunks for the query.
func (p *LinkProvider) Context(ctx context.Context, query string, threadID uuid.UUID, limit int) (*Result, error) {
	return p.engine.Retrieve(ctx, query, threadID,
		WithTopK(limit), WithSource(vectorstore.SourceLink))
}
