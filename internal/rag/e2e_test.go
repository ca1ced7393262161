package rag_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/chat"
	"github.com/skald-ai/skald/internal/chunker"
	"github.com/skald-ai/skald/internal/embedding"
	"github.com/skald-ai/skald/internal/extract"
	"github.com/skald-ai/skald/internal/ingest"
	"github.com/skald-ai/skald/internal/llm"
	"github.com/skald-ai/skald/internal/rag"
	"github.com/skald-ai/skald/internal/retrieval"
	"github.com/skald-ai/skald/internal/testutil"
)

// TestSystemAgainstGateway runs the whole stack with the real provider
// clients pointed at an in-process OpenAI-compatible server: only the
// stores are in-memory doubles.
func TestSystemAgainstGateway(t *testing.T) {
	const dim = 16

	gw := testutil.NewFakeGateway(t, dim)
	gw.CompleteFunc = func(system, _ string) string {
		if i := strings.Index(system, "Excerpts:"); i >= 0 {
			return system[i:]
		}
		return "The documents do not cover this."
	}

	logger := slog.New(slog.DiscardHandler)

	embedder, err := embedding.New(embedding.Config{
		APIKey:    "test-key",
		BaseURL:   gw.URL(),
		Model:     "text-embedding-3-small",
		Dimension: dim,
	})
	if err != nil {
		t.Fatalf("embedding.New() error = %v", err)
	}
	completer, err := llm.New(llm.Config{
		APIKey:  "test-key",
		BaseURL: gw.URL(),
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("llm.New() error = %v", err)
	}

	vectors := testutil.NewMemoryVectorStore()
	docs := testutil.NewMemoryDocStore()

	pipeline, err := ingest.New(extract.New(), chunker.New(), embedder,
		vectors, docs, ingest.Config{}, logger)
	if err != nil {
		t.Fatalf("ingest.New() error = %v", err)
	}
	engine, err := retrieval.New(embedder, vectors, retrieval.Config{Threshold: 0.1}, logger)
	if err != nil {
		t.Fatalf("retrieval.New() error = %v", err)
	}
	responder, err := chat.New(engine, completer, chat.Config{}, logger)
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}
	sys, err := rag.New(pipeline, responder, nil, docs, logger)
	if err != nil {
		t.Fatalf("rag.New() error = %v", err)
	}

	ctx := context.Background()
	threadID := uuid.New()

	// A three-sentence document fits in one chunk under the default budget.
	res, err := sys.IndexDocuments(ctx, threadID, []ingest.File{{
		Name:        "weather.txt",
		ContentType: "text/plain",
		Data:        []byte("The document describes the weather. The sky today is blue. Rain arrives on Sunday."),
	}})
	if err != nil {
		t.Fatalf("IndexDocuments() error = %v", err)
	}
	if res.ChunksCreated != 1 {
		t.Fatalf("chunks = %d, want 1", res.ChunksCreated)
	}

	reply, err := sys.GenerateResponse(ctx, threadID, "what does the document say about the weather")
	if err != nil {
		t.Fatalf("GenerateResponse() error = %v", err)
	}
	if !reply.Grounded {
		t.Error("reply not grounded")
	}
	if got := reply.Sources(); len(got) != 1 || got[0] != "weather.txt" {
		t.Errorf("Sources() = %v, want [weather.txt]", got)
	}
	if !strings.Contains(reply.Answer, "sky today is blue") {
		t.Errorf("answer %q does not carry the indexed content", reply.Answer)
	}

	// One batch for indexing, one query embedding, one completion.
	if gw.EmbedCalls() != 2 {
		t.Errorf("embedding requests = %d, want 2", gw.EmbedCalls())
	}
	if gw.ChatCalls() != 1 {
		t.Errorf("completion requests = %d, want 1", gw.ChatCalls())
	}
}
