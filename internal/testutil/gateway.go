package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// FakeGateway is an OpenAI-compatible HTTP server for tests. Embeddings are
// produced by a WordEmbedder so similarity behaves plausibly, and chat
// completions are answered by a caller-supplied function.
type FakeGateway struct {
	Server   *httptest.Server
	Embedder *WordEmbedder

	// CompleteFunc produces the assistant reply for a chat completion.
	// Nil echoes a fixed acknowledgement.
	CompleteFunc func(system, user string) string

	embedCalls int64
	chatCalls  int64
}

// NewFakeGateway starts the server and registers cleanup with t.
func NewFakeGateway(t *testing.T, dim int) *FakeGateway {
	t.Helper()

	g := &FakeGateway{Embedder: &WordEmbedder{Dim: dim}}

	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", g.handleEmbeddings)
	mux.HandleFunc("/chat/completions", g.handleChat)

	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Server.Close)
	return g
}

// URL returns the gateway base URL for client configuration.
func (g *FakeGateway) URL() string { return g.Server.URL }

// EmbedCalls reports how many embedding requests were served.
func (g *FakeGateway) EmbedCalls() int64 { return atomic.LoadInt64(&g.embedCalls) }

// ChatCalls reports how many completion requests were served.
func (g *FakeGateway) ChatCalls() int64 { return atomic.LoadInt64(&g.chatCalls) }

func (g *FakeGateway) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&g.embedCalls, 1)

	var req struct {
		Input any    `json:"input"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var texts []string
	switch in := req.Input.(type) {
	case string:
		texts = []string{in}
	case []any:
		for _, v := range in {
			if s, ok := v.(string); ok {
				texts = append(texts, s)
			}
		}
	}

	type datum struct {
		Object    string    `json:"object"`
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, len(texts))
	for i, text := range texts {
		vec := g.Embedder.vectorFor(text)
		emb := make([]float64, len(vec))
		for j, v := range vec {
			emb[j] = float64(v)
		}
		data[i] = datum{Object: "embedding", Embedding: emb, Index: i}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
	})
}

func (g *FakeGateway) handleChat(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&g.chatCalls, 1)

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var system, user string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			user = m.Content
		}
	}

	reply := "Acknowledged."
	if g.CompleteFunc != nil {
		reply = g.CompleteFunc(system, user)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-fake",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": reply,
				},
			},
		},
	})
}
