package ingest

import "fmt"

// Stage identifies where in the indexing pipeline a call failed. Callers
// use it to decide whether anything needs cleanup: failures at or before
// the vector stage leave no state behind, and the metadata stage rolls its
// vectors back itself.
type Stage string

const (
	StageValidation    Stage = "validation"
	StageExtraction    Stage = "extraction"
	StageEmbedding     Stage = "embedding"
	StageVectorStore   Stage = "vector_store"
	StageMetadataStore Stage = "metadata_store"
)

// StageError wraps an indexing failure with the pipeline stage it occurred
// in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
