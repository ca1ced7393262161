// Package ingest runs the document indexing pipeline: extract, chunk,
// embed, store vectors, then record metadata.
//
// The ordering is the pipeline's core invariant. Vectors are written before
// any document row, and a row is promoted to ready only after the upsert
// succeeded, so a document visible as ready always has its searchable
// content in place. When a metadata write fails after a successful vector
// upsert, the pipeline deletes the vectors not yet covered by a ready row
// rather than leave unsearchable orphans, and a row created but never
// promoted is parked at error instead of processing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/chunker"
	"github.com/skald-ai/skald/internal/docstore"
	"github.com/skald-ai/skald/internal/extract"
	"github.com/skald-ai/skald/internal/vectorstore"
)

// File is one upload to index.
type File struct {
	Name        string
	ContentType string
	Data        []byte

	// Source tags the origin of the content ("document" or "link").
	// Empty means document.
	Source string
}

// Result reports what one successful Index call wrote.
type Result struct {
	DocumentsIndexed int
	ChunksCreated    int
}

// DeleteResult reports what a by-filename delete removed.
type DeleteResult struct {
	VectorsDeleted   int64
	DocumentsDeleted int64
}

// Extractor converts file content to plain text.
type Extractor interface {
	Extract(contentType string, data []byte) (string, error)
}

// Splitter produces bounded chunks from extracted text.
type Splitter interface {
	Split(text string) []chunker.Chunk
	Placeholder(label string) []chunker.Chunk
}

// Embedder turns chunk texts into vectors, preserving order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the vector persistence the pipeline needs.
type VectorStore interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
	DeleteByFilter(ctx context.Context, filter map[string]string) (int64, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

// DocumentStore is the metadata persistence the pipeline needs.
type DocumentStore interface {
	EnsureThread(ctx context.Context, threadID uuid.UUID) error
	CreateDocument(ctx context.Context, doc docstore.Document) error
	UpdateStatus(ctx context.Context, docID uuid.UUID, status string) error
	DeleteByThreadAndName(ctx context.Context, threadID uuid.UUID, fileName string) (int64, error)
}

// Config bounds pipeline inputs.
type Config struct {
	// MaxFileSize rejects oversized uploads before extraction.
	MaxFileSize int64
}

// Pipeline indexes files into a thread. Safe for concurrent use.
type Pipeline struct {
	extractor Extractor
	splitter  Splitter
	embedder  Embedder
	vectors   VectorStore
	docs      DocumentStore
	maxSize   int64
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(ex Extractor, sp Splitter, em Embedder, vs VectorStore, ds DocumentStore, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	switch {
	case ex == nil:
		return nil, errors.New("extractor is required")
	case sp == nil:
		return nil, errors.New("splitter is required")
	case em == nil:
		return nil, errors.New("embedder is required")
	case vs == nil:
		return nil, errors.New("vector store is required")
	case ds == nil:
		return nil, errors.New("document store is required")
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = extract.DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: ex,
		splitter:  sp,
		embedder:  em,
		vectors:   vs,
		docs:      ds,
		maxSize:   cfg.MaxFileSize,
		logger:    logger,
	}, nil
}

// preparedFile is one input file after local validation and chunking,
// before anything was written.
type preparedFile struct {
	file     File
	docID    uuid.UUID
	chunks   []chunker.Chunk
	pointIDs []uuid.UUID
}

// Index processes a batch of files into the given thread as one unit: all
// files are validated and chunked up front, embedded in a single batch, and
// upserted in a single call. Any stage failure fails the whole call, typed
// by the stage that broke, and leaves no document row without its vectors.
func (p *Pipeline) Index(ctx context.Context, threadID uuid.UUID, files []File) (*Result, error) {
	if len(files) == 0 {
		return nil, stageErr(StageValidation, errors.New("no files to index"))
	}

	// Validate and chunk everything locally before touching any store or
	// spending an embedding call.
	prepared := make([]preparedFile, 0, len(files))
	var texts []string
	for _, f := range files {
		pf, err := p.prepare(f)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, pf)
		for _, c := range pf.chunks {
			texts = append(texts, c.Text)
		}
	}

	if err := p.docs.EnsureThread(ctx, threadID); err != nil {
		return nil, stageErr(StageMetadataStore, fmt.Errorf("ensure thread: %w", err))
	}

	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, stageErr(StageEmbedding, err)
	}

	uploadedAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]vectorstore.Point, 0, len(texts))
	vi := 0
	for i := range prepared {
		pf := &prepared[i]
		pf.pointIDs = make([]uuid.UUID, len(pf.chunks))
		for j, c := range pf.chunks {
			id := uuid.New()
			pf.pointIDs[j] = id
			points = append(points, vectorstore.Point{
				ID:     id,
				Vector: vecs[vi],
				Text:   c.Text,
				Payload: map[string]string{
					vectorstore.PayloadThreadID:    threadID.String(),
					vectorstore.PayloadDocumentID:  pf.docID.String(),
					vectorstore.PayloadFileName:    pf.file.Name,
					vectorstore.PayloadChunkIndex:  strconv.Itoa(c.Index),
					vectorstore.PayloadContentType: pf.file.ContentType,
					vectorstore.PayloadUploadedAt:  uploadedAt,
					vectorstore.PayloadSource:      sourceOf(pf.file),
				},
			})
			vi++
		}
	}

	// Vectors first. No document row may exist without them.
	if err := p.vectors.Upsert(ctx, points); err != nil {
		return nil, stageErr(StageVectorStore, err)
	}

	for i := range prepared {
		if err := p.recordDocument(ctx, threadID, prepared[i]); err != nil {
			// Files already promoted to ready keep their vectors; the
			// failing file and everything after it gets rolled back so no
			// vectors linger without a row.
			var orphaned []uuid.UUID
			for _, pf := range prepared[i:] {
				orphaned = append(orphaned, pf.pointIDs...)
			}
			if delErr := p.vectors.DeleteByIDs(ctx, orphaned); delErr != nil {
				p.logger.Error("vector rollback failed",
					"thread_id", threadID, "file_name", prepared[i].file.Name, "error", delErr)
				err = errors.Join(err, fmt.Errorf("vector rollback: %w", delErr))
			}
			return nil, stageErr(StageMetadataStore, err)
		}
	}

	res := &Result{DocumentsIndexed: len(prepared), ChunksCreated: len(points)}
	p.logger.Info("batch indexed",
		"thread_id", threadID,
		"documents", res.DocumentsIndexed,
		"chunks", res.ChunksCreated)
	return res, nil
}

func (p *Pipeline) prepare(f File) (preparedFile, error) {
	if f.Name == "" {
		return preparedFile{}, stageErr(StageValidation, errors.New("file name is empty"))
	}
	if int64(len(f.Data)) > p.maxSize {
		return preparedFile{}, stageErr(StageValidation,
			fmt.Errorf("%q: %w: %d bytes (max %d)", f.Name, extract.ErrTooLarge, len(f.Data), p.maxSize))
	}

	chunks, err := p.chunksFor(f)
	if err != nil {
		return preparedFile{}, err
	}
	if len(chunks) == 0 {
		return preparedFile{}, stageErr(StageValidation,
			fmt.Errorf("%q: no extractable content", f.Name))
	}
	return preparedFile{file: f, docID: uuid.New(), chunks: chunks}, nil
}

// chunksFor routes a file to text extraction or, for known non-text types,
// to a single placeholder chunk carrying a display label.
func (p *Pipeline) chunksFor(f File) ([]chunker.Chunk, error) {
	if !extract.IsTextLike(f.ContentType) {
		return p.splitter.Placeholder(fmt.Sprintf("[File: %s (%s)]", f.Name, f.ContentType)), nil
	}

	text, err := p.extractor.Extract(f.ContentType, f.Data)
	if err != nil {
		return nil, stageErr(StageExtraction, fmt.Errorf("%q: %w", f.Name, err))
	}
	return p.splitter.Split(text), nil
}

func sourceOf(f File) string {
	if f.Source != "" {
		return f.Source
	}
	return vectorstore.SourceDocument
}

func (p *Pipeline) recordDocument(ctx context.Context, threadID uuid.UUID, pf preparedFile) error {
	err := p.docs.CreateDocument(ctx, docstore.Document{
		ID:          pf.docID,
		ThreadID:    threadID,
		FileName:    pf.file.Name,
		FileSize:    int64(len(pf.file.Data)),
		ContentType: pf.file.ContentType,
		Status:      docstore.StatusProcessing,
	})
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if err := p.docs.UpdateStatus(ctx, pf.docID, docstore.StatusReady); err != nil {
		// The row exists but its vectors are about to be rolled back. Park
		// it at error so it cannot sit at processing forever.
		if markErr := p.docs.UpdateStatus(ctx, pf.docID, docstore.StatusError); markErr != nil {
			p.logger.Error("mark document error",
				"document_id", pf.docID, "file_name", pf.file.Name, "error", markErr)
			err = errors.Join(err, fmt.Errorf("mark document error: %w", markErr))
		}
		return fmt.Errorf("promote document: %w", err)
	}
	return nil
}

// DeleteByFilename removes a file's vectors and document rows from a
// thread. A vector-store failure does not block the row delete; both stores
// get their chance and every failure is reported. Deleting a filename that
// matches nothing is success with zero counts.
func (p *Pipeline) DeleteByFilename(ctx context.Context, threadID uuid.UUID, fileName string) (*DeleteResult, error) {
	if fileName == "" {
		return nil, stageErr(StageValidation, errors.New("file name is empty"))
	}

	res := &DeleteResult{}

	vecDeleted, vecErr := p.vectors.DeleteByFilter(ctx, map[string]string{
		vectorstore.PayloadThreadID: threadID.String(),
		vectorstore.PayloadFileName: fileName,
	})
	res.VectorsDeleted = vecDeleted
	if vecErr != nil {
		vecErr = fmt.Errorf("delete vectors for %q: %w", fileName, vecErr)
	}

	docDeleted, docErr := p.docs.DeleteByThreadAndName(ctx, threadID, fileName)
	res.DocumentsDeleted = docDeleted
	if docErr != nil {
		docErr = fmt.Errorf("delete document rows for %q: %w", fileName, docErr)
	}

	if vecErr != nil || docErr != nil {
		return res, errors.Join(vecErr, docErr)
	}

	p.logger.Info("deleted by filename",
		"thread_id", threadID, "file_name", fileName,
		"vectors", vecDeleted, "documents", docDeleted)
	return res, nil
}
