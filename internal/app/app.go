// Package app assembles the application: configuration, logging, tracing,
// database, provider clients and the RAG system, with ordered teardown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skald-ai/skald/internal/config"
	"github.com/skald-ai/skald/internal/docstore"
	"github.com/skald-ai/skald/internal/rag"
	"github.com/skald-ai/skald/internal/retrieval"
	"github.com/skald-ai/skald/internal/vectorstore"
)

// App is the application container. Build it with Setup and release it with
// Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool   *pgxpool.Pool
	System *rag.System

	// Docs, Vectors and Engine are exposed for CLI surfaces that need raw
	// store or retrieval access beyond the facade.
	Docs    *docstore.Store
	Vectors *vectorstore.Store
	Engine  *retrieval.Engine

	otelShutdown func(context.Context) error
}

// Close releases resources in reverse initialization order.
func (a *App) Close() error {
	var firstErr error

	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush traces: %w", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		if a.Logger != nil {
			a.Logger.Debug("database pool closed")
		}
	}
	return firstErr
}
