// Package rag is the composition surface over the retrieval-augmented
// pipeline: indexing, retrieval-backed generation, and document management,
// scoped per thread.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/chat"
	"github.com/skald-ai/skald/internal/docstore"
	"github.com/skald-ai/skald/internal/ingest"
	"github.com/skald-ai/skald/internal/vectorstore"
)

// Indexer is the slice of the ingest pipeline the facade needs.
type Indexer interface {
	Index(ctx context.Context, threadID uuid.UUID, files []ingest.File) (*ingest.Result, error)
	DeleteByFilename(ctx context.Context, threadID uuid.UUID, fileName string) (*ingest.DeleteResult, error)
}

// Generator produces grounded answers.
type Generator interface {
	Generate(ctx context.Context, query string, threadID uuid.UUID) (*chat.Reply, error)
}

// LinkFetcher resolves a URL to readable text.
type LinkFetcher interface {
	FromURL(ctx context.Context, rawURL string) (title, text string, err error)
}

// DocumentLister reads document metadata.
type DocumentLister interface {
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]docstore.Document, error)
}

// System bundles the pipeline components behind one coherent API. Safe for
// concurrent use.
type System struct {
	indexer   Indexer
	generator Generator
	fetcher   LinkFetcher
	documents DocumentLister
	logger    *slog.Logger
}

// New creates a System. The fetcher may be nil, which disables IndexLink.
func New(ix Indexer, gen Generator, fetch LinkFetcher, docs DocumentLister, logger *slog.Logger) (*System, error) {
	if ix == nil {
		return nil, errors.New("indexer is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if docs == nil {
		return nil, errors.New("document lister is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		indexer:   ix,
		generator: gen,
		fetcher:   fetch,
		documents: docs,
		logger:    logger,
	}, nil
}

// IndexDocuments ingests uploaded files into the thread.
func (s *System) IndexDocuments(ctx context.Context, threadID uuid.UUID, files []ingest.File) (*ingest.Result, error) {
	return s.indexer.Index(ctx, threadID, files)
}

// IndexLink fetches a web page and indexes its readable text as a document
// named after the page.
func (s *System) IndexLink(ctx context.Context, threadID uuid.UUID, rawURL string) (*ingest.Result, error) {
	if s.fetcher == nil {
		return nil, errors.New("link indexing is not configured")
	}

	title, text, err := s.fetcher.FromURL(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch link: %w", err)
	}

	return s.indexer.Index(ctx, threadID, []ingest.File{{
		Name:        linkDocumentName(title, rawURL),
		ContentType: "text/plain",
		Data:        []byte(text),
		Source:      vectorstore.SourceLink,
	}})
}

// GenerateResponse answers a query from the thread's indexed documents.
func (s *System) GenerateResponse(ctx context.Context, threadID uuid.UUID, query string) (*chat.Reply, error) {
	return s.generator.Generate(ctx, query, threadID)
}

// DeleteDocumentsByFilename removes a file's vectors and metadata from the
// thread.
func (s *System) DeleteDocumentsByFilename(ctx context.Context, threadID uuid.UUID, fileName string) (*ingest.DeleteResult, error) {
	return s.indexer.DeleteByFilename(ctx, threadID, fileName)
}

// Documents lists the thread's indexed documents, newest first.
func (s *System) Documents(ctx context.Context, threadID uuid.UUID) ([]docstore.Document, error) {
	return s.documents.ListByThread(ctx, threadID)
}

// linkDocumentName derives a stable document name for an indexed page. The
// page title wins when present; otherwise host and path identify it.
func linkDocumentName(title, rawURL string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		return u.Host + "/" + path.Base(p)
	}
	return u.Host
}
