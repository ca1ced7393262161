package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/skald-ai/skald/db"
	"github.com/skald-ai/skald/internal/chat"
	"github.com/skald-ai/skald/internal/chunker"
	"github.com/skald-ai/skald/internal/config"
	"github.com/skald-ai/skald/internal/database"
	"github.com/skald-ai/skald/internal/docstore"
	"github.com/skald-ai/skald/internal/embedding"
	"github.com/skald-ai/skald/internal/extract"
	"github.com/skald-ai/skald/internal/ingest"
	"github.com/skald-ai/skald/internal/llm"
	applog "github.com/skald-ai/skald/internal/log"
	"github.com/skald-ai/skald/internal/observability"
	"github.com/skald-ai/skald/internal/rag"
	"github.com/skald-ai/skald/internal/retrieval"
	"github.com/skald-ai/skald/internal/vectorstore"
)

// Setup builds a ready App from configuration. On any failure everything
// already initialized is torn down before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	logger := provideLogger(cfg)
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: cfg.ServiceName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		a.otelShutdown = shutdown
	}

	pool, err := database.Open(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.Pool = pool

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	vectors, err := vectorstore.New(pool, cfg.EmbedDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if err := vectors.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector schema: %w", err)
	}
	a.Vectors = vectors

	docs, err := docstore.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("create document store: %w", err)
	}
	a.Docs = docs

	embedder, err := embedding.New(embedding.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDimension,
		Timeout:   cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	completer, err := llm.New(llm.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.ChatModel,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("create completion client: %w", err)
	}

	extractor := extract.New(
		extract.WithMaxSize(cfg.MaxFileSize),
		extract.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
	)
	splitter := chunker.New(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
	)

	pipeline, err := ingest.New(extractor, splitter, embedder, vectors, docs,
		ingest.Config{MaxFileSize: cfg.MaxFileSize}, logger)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	engine, err := retrieval.New(embedder, vectors, retrieval.Config{
		TopK:      cfg.TopK,
		Threshold: cfg.ScoreThreshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create retrieval engine: %w", err)
	}
	a.Engine = engine

	responder, err := chat.New(engine, completer, chat.Config{}, logger)
	if err != nil {
		return nil, fmt.Errorf("create responder: %w", err)
	}

	system, err := rag.New(pipeline, responder, extractor, docs, logger)
	if err != nil {
		return nil, fmt.Errorf("create rag system: %w", err)
	}
	a.System = system

	logger.Debug("application ready",
		"chat_model", cfg.ChatModel,
		"embed_model", cfg.EmbedModel,
		"dimension", cfg.EmbedDimension,
	)
	return a, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return applog.New(applog.Config{
		Level: applog.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
}
