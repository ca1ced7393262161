// Package docstore manages document and thread metadata in PostgreSQL.
//
// A document row is the user-visible record of an indexed file. Its status
// moves processing -> ready on success or processing -> error on failure;
// no other transition is legal. Rows are written only after the document's
// vectors are safely stored, so a ready row always has searchable content
// behind it.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Document status values, enforced by a CHECK constraint in the schema.
const (
	// StatusProcessing marks a document whose vectors are stored but whose
	// indexing has not been confirmed complete.
	StatusProcessing = "processing"

	// StatusReady marks a fully indexed, searchable document.
	StatusReady = "ready"

	// StatusError marks a document whose indexing failed after the row was
	// created.
	StatusError = "error"
)

// Sentinel errors. Callers check these with errors.Is.
var (
	// ErrNotFound indicates the requested document or thread does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a status change outside the legal
	// processing -> ready/error moves.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Document is one indexed file's metadata.
type Document struct {
	ID          uuid.UUID
	ThreadID    uuid.UUID
	FileName    string
	FileSize    int64
	ContentType string
	Status      string
	CreatedAt   time.Time
}

// Thread groups documents into an isolated search scope.
type Thread struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// DB is the database access required by Store. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages document metadata. Safe for concurrent use.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store.
func New(db DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// EnsureThread creates the thread row if it does not exist. Threads carry no
// state of their own beyond grouping, so creation is idempotent.
func (s *Store) EnsureThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO threads (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		threadID)
	if err != nil {
		return fmt.Errorf("ensure thread %s: %w", threadID, err)
	}
	return nil
}

// CreateDocument inserts a document row with the given status. The pipeline
// calls this only after the document's vectors are stored.
func (s *Store) CreateDocument(ctx context.Context, doc Document) error {
	if doc.Status == "" {
		doc.Status = StatusProcessing
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (id, thread_id, file_name, file_size, content_type, status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.ThreadID, doc.FileName, doc.FileSize, doc.ContentType, doc.Status)
	if err != nil {
		return fmt.Errorf("create document %q: %w", doc.FileName, err)
	}

	s.logger.Debug("created document",
		"id", doc.ID, "thread_id", doc.ThreadID, "file_name", doc.FileName, "status", doc.Status)
	return nil
}

// UpdateStatus moves a document to a new status, enforcing the transition
// rules in SQL so a concurrent writer cannot race past them. ready and error
// are terminal.
func (s *Store) UpdateStatus(ctx context.Context, docID uuid.UUID, status string) error {
	if status != StatusReady && status != StatusError {
		return fmt.Errorf("%w: target %q", ErrInvalidTransition, status)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $2 WHERE id = $1 AND status = $3`,
		docID, status, StatusProcessing)
	if err != nil {
		return fmt.Errorf("update document %s status: %w", docID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing or it already left processing.
		var current string
		err := s.db.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, docID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("document %s: %w", docID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check document %s status: %w", docID, err)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	s.logger.Debug("document status updated", "id", docID, "status", status)
	return nil
}

// Get returns one document by id.
func (s *Store) Get(ctx context.Context, docID uuid.UUID) (*Document, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, thread_id, file_name, file_size, content_type, status, created_at
			FROM documents WHERE id = $1`, docID)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	return doc, nil
}

// ListByThread returns all of a thread's documents, newest first.
func (s *Store) ListByThread(ctx context.Context, threadID uuid.UUID) ([]Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, thread_id, file_name, file_size, content_type, status, created_at
			FROM documents WHERE thread_id = $1 ORDER BY created_at DESC, id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list documents for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

// FindByThreadAndName returns the documents in a thread with the given file
// name. Multiple rows can exist when the same name was indexed repeatedly.
func (s *Store) FindByThreadAndName(ctx context.Context, threadID uuid.UUID, fileName string) ([]Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, thread_id, file_name, file_size, content_type, status, created_at
			FROM documents WHERE thread_id = $1 AND file_name = $2 ORDER BY created_at DESC, id`,
		threadID, fileName)
	if err != nil {
		return nil, fmt.Errorf("find documents %q in thread %s: %w", fileName, threadID, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

// DeleteByThreadAndName removes all document rows in a thread with the given
// file name, reporting how many went away. Zero is not an error; the caller
// decides whether a missing name matters.
func (s *Store) DeleteByThreadAndName(ctx context.Context, threadID uuid.UUID, fileName string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE thread_id = $1 AND file_name = $2`,
		threadID, fileName)
	if err != nil {
		return 0, fmt.Errorf("delete documents %q in thread %s: %w", fileName, threadID, err)
	}

	s.logger.Debug("deleted documents",
		"thread_id", threadID, "file_name", fileName, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// Delete removes one document row by id.
func (s *Store) Delete(ctx context.Context, docID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.ThreadID, &doc.FileName, &doc.FileSize,
		&doc.ContentType, &doc.Status, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
