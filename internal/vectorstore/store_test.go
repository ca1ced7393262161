package vectorstore

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, 3, slog.Default()); err == nil {
		t.Error("New(nil db) expected error")
	}
	if _, err := New(stubDB{}, 0, slog.Default()); err == nil {
		t.Error("New(dimension 0) expected error")
	}
	if _, err := New(stubDB{}, -1, slog.Default()); err == nil {
		t.Error("New(negative dimension) expected error")
	}
}

func TestUpsertRejectsEmptyBatch(t *testing.T) {
	s := mustNewStore(t, 3)

	err := s.Upsert(context.Background(), nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Upsert(nil) error = %v, want ErrEmptyBatch", err)
	}
}

func TestUpsertRejectsWholeBatchOnBadVector(t *testing.T) {
	s := mustNewStore(t, 3)

	// Second point has the wrong dimension; validation runs before any row
	// is written so no transaction should even begin.
	points := []Point{
		{Vector: []float32{1, 0, 0}, Text: "good"},
		{Vector: []float32{1, 0}, Text: "bad"},
	}
	err := s.Upsert(context.Background(), points)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestUpsertRejectsEmptyContent(t *testing.T) {
	s := mustNewStore(t, 3)

	points := []Point{
		{Vector: []float32{1, 0, 0}, Text: "good"},
		{Vector: []float32{0, 1, 0}},
	}
	err := s.Upsert(context.Background(), points)
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Upsert() error = %v, want ErrEmptyContent", err)
	}
}

func TestSearchSimilarRejectsWrongDimension(t *testing.T) {
	s := mustNewStore(t, 3)

	_, err := s.SearchSimilar(context.Background(), []float32{1, 0})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("SearchSimilar() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestDeleteByFilterRejectsEmptyFilter(t *testing.T) {
	s := mustNewStore(t, 3)

	_, err := s.DeleteByFilter(context.Background(), nil)
	if !errors.Is(err, ErrEmptyFilter) {
		t.Errorf("DeleteByFilter(nil) error = %v, want ErrEmptyFilter", err)
	}
	_, err = s.DeleteByFilter(context.Background(), map[string]string{})
	if !errors.Is(err, ErrEmptyFilter) {
		t.Errorf("DeleteByFilter(empty) error = %v, want ErrEmptyFilter", err)
	}
}

func TestSearchOptions(t *testing.T) {
	cfg := NewSearchConfig(
		WithTopK(10),
		WithThreshold(0.5),
		WithFilter("thread_id", "t-1"),
		WithFilter("file_name", "notes.md"),
		WithTimeout(2*time.Second),
	)

	if cfg.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.TopK)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Threshold = %g, want 0.5", cfg.Threshold)
	}
	if len(cfg.Filter) != 2 || cfg.Filter["thread_id"] != "t-1" || cfg.Filter["file_name"] != "notes.md" {
		t.Errorf("Filter = %v", cfg.Filter)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
}

func TestSearchOptionsIgnoreInvalidValues(t *testing.T) {
	cfg := NewSearchConfig(
		WithTopK(0),
		WithThreshold(1.5),
		WithThreshold(-0.1),
		WithTimeout(-time.Second),
	)

	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want default %d", cfg.TopK, DefaultTopK)
	}
	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %g, want default %g", cfg.Threshold, DefaultThreshold)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.Timeout, DefaultTimeout)
	}
}

func TestMarshalFilter(t *testing.T) {
	got, err := marshalFilter(nil)
	if err != nil {
		t.Fatalf("marshalFilter(nil) error = %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("marshalFilter(nil) = %s, want {}", got)
	}

	got, err = marshalFilter(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("marshalFilter() error = %v", err)
	}
	if string(got) != `{"k":"v"}` {
		t.Errorf("marshalFilter() = %s", got)
	}
}

func mustNewStore(t *testing.T, dim int) *Store {
	t.Helper()
	s, err := New(stubDB{}, dim, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}
