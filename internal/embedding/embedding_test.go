package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeGateway serves an OpenAI-compatible /embeddings endpoint whose vectors
// are supplied per test.
func fakeGateway(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func embedResponse(vectors [][]float64) []byte {
	type datum struct {
		Object    string    `json:"object"`
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, len(vectors))
	for i, v := range vectors {
		data[i] = datum{Object: "embedding", Embedding: v, Index: i}
	}
	body, _ := json.Marshal(map[string]any{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-3-small",
	})
	return body
}

func newTestClient(t *testing.T, baseURL string, dim int) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Model:     "text-embedding-3-small",
		Dimension: dim,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing api key", Config{Model: "m", Dimension: 3}},
		{"missing model", Config{APIKey: "k", Dimension: 3}},
		{"zero dimension", Config{APIKey: "k", Model: "m"}},
		{"negative dimension", Config{APIKey: "k", Model: "m", Dimension: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		// Return vectors out of order to exercise index-based reassembly.
		type datum struct {
			Object    string    `json:"object"`
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		body, _ := json.Marshal(map[string]any{
			"object": "list",
			"data": []datum{
				{Object: "embedding", Embedding: []float64{0, 0, 2}, Index: 1},
				{Object: "embedding", Embedding: []float64{0, 0, 1}, Index: 0},
			},
			"model": "text-embedding-3-small",
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	c := newTestClient(t, srv.URL, 3)

	vecs, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if vecs[0][2] != 1 || vecs[1][2] != 2 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", 3)

	_, err := c.EmbedBatch(context.Background(), nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("EmbedBatch() error = %v, want ErrEmptyInput", err)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := fakeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(embedResponse([][]float64{{0.1, 0.2}}))
	})

	c := newTestClient(t, srv.URL, 3)

	_, err := c.Embed(context.Background(), "text")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Embed() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedDegenerateVector(t *testing.T) {
	srv := fakeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(embedResponse([][]float64{{0, 0, 0}}))
	})

	c := newTestClient(t, srv.URL, 3)

	_, err := c.Embed(context.Background(), "text")
	if !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("Embed() error = %v, want ErrDegenerateVector", err)
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv := fakeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(embedResponse([][]float64{{0.1, 0.2, 0.3}}))
	})

	c := newTestClient(t, srv.URL, 3)

	_, err := c.EmbedBatch(context.Background(), []string{"one", "two"})
	if !errors.Is(err, ErrCountMismatch) {
		t.Errorf("EmbedBatch() error = %v, want ErrCountMismatch", err)
	}
}

func TestEmbedBatchProviderError(t *testing.T) {
	srv := fakeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	c := newTestClient(t, srv.URL, 3)

	// Whole batch fails; no partial results.
	vecs, err := c.EmbedBatch(context.Background(), []string{"one", "two"})
	if err == nil {
		t.Fatal("EmbedBatch() expected error")
	}
	if vecs != nil {
		t.Errorf("EmbedBatch() returned partial results: %v", vecs)
	}
}

func TestEmbedBatchRequestTimeout(t *testing.T) {
	srv := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(embedResponse([][]float64{{1, 0, 0}}))
	})

	c, err := New(Config{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Model:     "text-embedding-3-small",
		Dimension: 3,
		Timeout:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.EmbedBatch(context.Background(), []string{"slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("EmbedBatch() error = %v, want context.DeadlineExceeded", err)
	}
}
