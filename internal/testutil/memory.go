package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/docstore"
	"github.com/skald-ai/skald/internal/vectorstore"
)

// WordEmbedder is a deterministic in-process embedder. Each word hashes into
// a vector bucket, so texts sharing words produce similar vectors. Good
// enough to make similarity ranking meaningful in tests without a gateway.
type WordEmbedder struct {
	Dim int
}

func (w *WordEmbedder) dim() int {
	if w.Dim > 0 {
		return w.Dim
	}
	return 8
}

// Dimension returns the vector length.
func (w *WordEmbedder) Dimension() int { return w.dim() }

// Embed produces the bag-of-words vector for one text.
func (w *WordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return w.vectorFor(text), nil
}

// EmbedBatch embeds texts in order.
func (w *WordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = w.vectorFor(t)
	}
	return vecs, nil
}

func (w *WordEmbedder) vectorFor(text string) []float32 {
	dim := w.dim()
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"()[]")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dim)]++ //nolint:gosec // dim is small and positive
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Avoid degenerate vectors for empty text.
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// MemoryVectorStore is an in-memory stand-in for the pgvector store. It
// implements the pipeline's VectorStore and the retrieval engine's Searcher.
type MemoryVectorStore struct {
	mu     sync.Mutex
	points map[uuid.UUID]vectorstore.Point

	// UpsertErr and DeleteErr inject failures when set.
	UpsertErr error
	DeleteErr error
}

// NewMemoryVectorStore creates an empty store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{points: make(map[uuid.UUID]vectorstore.Point)}
}

// Len reports how many points are stored.
func (m *MemoryVectorStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

// Upsert stores points keyed by id.
func (m *MemoryVectorStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if p.Created.IsZero() {
			p.Created = time.Now()
		}
		m.points[p.ID] = p
	}
	return nil
}

// DeleteByFilter removes points whose payload contains every filter pair.
func (m *MemoryVectorStore) DeleteByFilter(_ context.Context, filter map[string]string) (int64, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	if len(filter) == 0 {
		return 0, vectorstore.ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, p := range m.points {
		if payloadMatches(p.Payload, filter) {
			delete(m.points, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteByIDs removes specific points.
func (m *MemoryVectorStore) DeleteByIDs(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

// SearchSimilar ranks stored points by cosine similarity against the query
// vector, honoring the same options as the real store.
func (m *MemoryVectorStore) SearchSimilar(_ context.Context, vector []float32, opts ...vectorstore.SearchOption) ([]vectorstore.ScoredPoint, error) {
	cfg := vectorstore.NewSearchConfig(opts...)

	m.mu.Lock()
	defer m.mu.Unlock()

	var hits []vectorstore.ScoredPoint
	for _, p := range m.points {
		if !payloadMatches(p.Payload, cfg.Filter) {
			continue
		}
		score := cosine(vector, p.Vector)
		if score < cfg.Threshold {
			continue
		}
		hits = append(hits, vectorstore.ScoredPoint{Point: p, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})
	if len(hits) > cfg.TopK {
		hits = hits[:cfg.TopK]
	}
	return hits, nil
}

func payloadMatches(payload, filter map[string]string) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MemoryDocStore is an in-memory stand-in for the document metadata store.
type MemoryDocStore struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]docstore.Document
	threads map[uuid.UUID]struct{}

	CreateErr error
	UpdateErr error
}

// NewMemoryDocStore creates an empty store.
func NewMemoryDocStore() *MemoryDocStore {
	return &MemoryDocStore{
		docs:    make(map[uuid.UUID]docstore.Document),
		threads: make(map[uuid.UUID]struct{}),
	}
}

// EnsureThread registers the thread id.
func (m *MemoryDocStore) EnsureThread(_ context.Context, threadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = struct{}{}
	return nil
}

// CreateDocument stores a document row.
func (m *MemoryDocStore) CreateDocument(_ context.Context, doc docstore.Document) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	m.docs[doc.ID] = doc
	return nil
}

// UpdateStatus enforces the same transition rules as the real store.
func (m *MemoryDocStore) UpdateStatus(_ context.Context, docID uuid.UUID, status string) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if status != docstore.StatusReady && status != docstore.StatusError {
		return fmt.Errorf("%w: target %q", docstore.ErrInvalidTransition, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[docID]
	if !ok {
		return fmt.Errorf("document %s: %w", docID, docstore.ErrNotFound)
	}
	if doc.Status != docstore.StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", docstore.ErrInvalidTransition, doc.Status, status)
	}
	doc.Status = status
	m.docs[docID] = doc
	return nil
}

// ListByThread returns the thread's documents, newest first.
func (m *MemoryDocStore) ListByThread(_ context.Context, threadID uuid.UUID) ([]docstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []docstore.Document
	for _, d := range m.docs {
		if d.ThreadID == threadID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID.String() < docs[j].ID.String()
	})
	return docs, nil
}

// DeleteByThreadAndName removes matching rows and reports the count.
func (m *MemoryDocStore) DeleteByThreadAndName(_ context.Context, threadID uuid.UUID, fileName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, d := range m.docs {
		if d.ThreadID == threadID && d.FileName == fileName {
			delete(m.docs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns one document row.
func (m *MemoryDocStore) Get(_ context.Context, docID uuid.UUID) (*docstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, docstore.ErrNotFound)
	}
	return &doc, nil
}
