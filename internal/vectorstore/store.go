// Package vectorstore persists embedded chunks in PostgreSQL with pgvector
// and serves filtered cosine similarity search.
//
// The chunk table is created lazily and idempotently by EnsureSchema, so a
// fresh database needs no manual setup beyond the pgvector extension being
// installable. Payload filters use the JSONB containment operator, which the
// GIN index serves.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Sentinel errors. Callers check these with errors.Is.
var (
	// ErrDimensionMismatch indicates a point's vector length differs from
	// the store's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyBatch indicates Upsert was called with no points.
	ErrEmptyBatch = errors.New("empty point batch")

	// ErrEmptyContent indicates a point carries no chunk text.
	ErrEmptyContent = errors.New("empty point content")

	// ErrEmptyFilter guards delete and count calls that would otherwise
	// touch every row.
	ErrEmptyFilter = errors.New("empty payload filter")
)

// DB is the database access required by Store. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store manages embedded chunks. Safe for concurrent use by multiple
// goroutines.
type Store struct {
	db        DB
	dimension int
	logger    *slog.Logger
}

// New creates a Store. The dimension must match the embedding client's
// configured dimension; EnsureSchema bakes it into the column type.
func New(db DB, dimension int, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dimension: dimension, logger: logger}, nil
}

// EnsureSchema creates the chunk table and its indexes if they do not exist.
// Calling it repeatedly is harmless, so every writer runs it on startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			content TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx
			ON chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS chunks_payload_idx
			ON chunks USING gin (payload jsonb_path_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	s.logger.Debug("vector schema ready", "dimension", s.dimension)
	return nil
}

// Upsert writes a batch of points in one transaction. Every point is
// validated (vector dimension, non-empty content) before any row is written;
// a single bad point rejects the whole batch so the store never holds
// partial documents.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return ErrEmptyBatch
	}
	for i, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %d (%s): %w: got %d, want %d",
				i, p.ID, ErrDimensionMismatch, len(p.Vector), s.dimension)
		}
		if p.Text == "" {
			return fmt.Errorf("point %d (%s): %w", i, p.ID, ErrEmptyContent)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO chunks (id, embedding, content, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content = EXCLUDED.content,
			payload = EXCLUDED.payload`

	for _, p := range points {
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", p.ID, err)
		}
		vec := pgvector.NewVector(p.Vector)

		var created any
		if !p.Created.IsZero() {
			created = p.Created
		}
		if _, err := tx.Exec(ctx, q, p.ID, vec, p.Text, payloadJSON, created); err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.logger.Debug("upserted points", "count", len(points))
	return nil
}

// SearchSimilar returns the points most similar to the query vector, best
// first. Ties on score break by id so result order is deterministic.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, opts ...SearchOption) ([]ScoredPoint, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector: %w: got %d, want %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}
	cfg := NewSearchConfig(opts...)

	// Bounded so a cold index cannot block callers.
	queryCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	filterJSON, err := marshalFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	// Filter values come through json.Marshal and parameters only; never
	// interpolate payload keys into the SQL text.
	const q = `SELECT id, embedding, content, payload, created_at,
			1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2::jsonb = '{}'::jsonb OR payload @> $2)
			AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1, id
		LIMIT $4`

	qv := pgvector.NewVector(vector)
	rows, err := s.db.Query(queryCtx, q, qv, filterJSON, cfg.Threshold, cfg.TopK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("similarity search timeout: %w", err)
		}
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []ScoredPoint
	for rows.Next() {
		var (
			sp          ScoredPoint
			vec         pgvector.Vector
			payloadJSON []byte
			created     time.Time
		)
		if err := rows.Scan(&sp.ID, &vec, &sp.Text, &payloadJSON, &created, &sp.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		sp.Vector = vec.Slice()
		sp.Created = created
		if err := json.Unmarshal(payloadJSON, &sp.Payload); err != nil {
			s.logger.Warn("unreadable payload", "id", sp.ID, "error", err)
			sp.Payload = map[string]string{}
		}
		results = append(results, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// DeleteByFilter removes all points whose payload contains every pair in
// filter and reports how many rows went away. An empty filter is rejected
// rather than interpreted as delete-everything.
func (s *Store) DeleteByFilter(ctx context.Context, filter map[string]string) (int64, error) {
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return 0, fmt.Errorf("marshal filter: %w", err)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE payload @> $1`, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("delete by filter: %w", err)
	}

	s.logger.Debug("deleted points", "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// CountByFilter reports how many points match the payload filter. A nil or
// empty filter counts every point.
func (s *Store) CountByFilter(ctx context.Context, filter map[string]string) (int64, error) {
	filterJSON, err := marshalFilter(filter)
	if err != nil {
		return 0, fmt.Errorf("marshal filter: %w", err)
	}

	var count int64
	err = s.db.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE $1::jsonb = '{}'::jsonb OR payload @> $1`,
		filterJSON,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by filter: %w", err)
	}
	return count, nil
}

// marshalFilter serializes a payload filter, mapping nil to the empty JSON
// object so the containment predicates see '{}' rather than 'null'.
func marshalFilter(filter map[string]string) ([]byte, error) {
	if len(filter) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(filter)
}

// DeleteByIDs removes specific points. Used by the indexing pipeline to roll
// back vectors when the metadata write fails after a successful upsert.
func (s *Store) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete by ids: %w", err)
	}
	return nil
}
