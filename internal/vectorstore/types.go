package vectorstore

import (
	"time"

	"github.com/google/uuid"
)

// Point is one embedded chunk stored in the vector table.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Text    string
	Payload map[string]string
	Created time.Time
}

// ScoredPoint is a search hit with its cosine similarity score in [0, 1]
// for normalized embeddings.
type ScoredPoint struct {
	Point
	Score float64
}

// Payload keys written by the indexing pipeline and relied on by search
// filters. Writers and readers must agree on these, so they live here.
const (
	PayloadThreadID    = "thread_id"
	PayloadDocumentID  = "document_id"
	PayloadFileName    = "file_name"
	PayloadChunkIndex  = "chunk_index"
	PayloadContentType = "content_type"
	PayloadUploadedAt  = "uploaded_at"
	PayloadSource      = "source"
)

// Values for the PayloadSource key.
const (
	SourceDocument = "document"
	SourceLink     = "link"
)

// Search defaults. Overridable per call through options.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.25
	DefaultTimeout   = 10 * time.Second
)

// SearchConfig is the resolved set of search parameters after options are
// applied. Exported so alternative Searcher implementations honor the same
// option semantics as the pgvector store.
type SearchConfig struct {
	TopK      int
	Threshold float64
	Filter    map[string]string
	Timeout   time.Duration
}

// SearchOption configures a similarity search.
type SearchOption func(*SearchConfig)

// WithTopK sets the maximum number of results. Non-positive values keep the
// default.
func WithTopK(k int) SearchOption {
	return func(c *SearchConfig) {
		if k > 0 {
			c.TopK = k
		}
	}
}

// WithThreshold sets the minimum similarity score. Hits scoring below it are
// excluded even when fewer than topK results exist.
func WithThreshold(t float64) SearchOption {
	return func(c *SearchConfig) {
		if t >= 0 && t <= 1 {
			c.Threshold = t
		}
	}
}

// WithFilter restricts the search to points whose payload contains the
// given key/value pair. Repeated calls accumulate; all pairs must match.
func WithFilter(key, value string) SearchOption {
	return func(c *SearchConfig) {
		if c.Filter == nil {
			c.Filter = make(map[string]string)
		}
		c.Filter[key] = value
	}
}

// WithTimeout bounds the search query. Non-positive values keep the default.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *SearchConfig) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// NewSearchConfig applies options over the defaults.
func NewSearchConfig(opts ...SearchOption) SearchConfig {
	cfg := SearchConfig{
		TopK:      DefaultTopK,
		Threshold: DefaultThreshold,
		Timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
