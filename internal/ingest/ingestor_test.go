package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/novatech/supportiq/internal/index"
	"github.com/novatech/supportiq/internal/log"
)

// mockVectorStore implements VectorStore for testing
type mockVectorStore struct {
	upsertErr     error
	deleteErr     error
	deletedRows   int64
	upserted      []index.Point
	deletedIDs    []string
	deleteBefore  bool
	upsertHappens int
}

func (m *mockVectorStore) Upsert(_ context.Context, points []index.Point) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertHappens++
	m.upserted = append(m.upserted, points...)
	return nil
}

func (m *mockVectorStore) DeleteByDocument(_ context.Context, documentID string) (int64, error) {
	m.deletedIDs = append(m.deletedIDs, documentID)
	m.deleteBefore = m.upsertHappens == 0
	return m.deletedRows, m.deleteErr
}

// mockBatchEmbedder implements Embedder for testing
type mockBatchEmbedder struct {
	embedErr error
	dim      int
}

func (m *mockBatchEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, m.dim)
	}
	return vectors, nil
}

func newTestIngestor(store *mockVectorStore, embedder *mockBatchEmbedder) *Ingestor {
	return New(NewChunker(500, 50), embedder, store, log.NewNop())
}

func TestIngest(t *testing.T) {
	store := &mockVectorStore{}
	ing := newTestIngestor(store, &mockBatchEmbedder{dim: 4})

	result, err := ing.Ingest(context.Background(), "doc-1", "Return Policy", []Page{
		{PageNumber: 1, Text: "Items may be returned within 30 days."},
		{PageNumber: 2, Text: "Refunds are processed within five business days."},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if result.PageCount != 2 || result.ChunkCount != 2 {
		t.Errorf("result = %+v", result)
	}
	if len(store.upserted) != 2 {
		t.Fatalf("upserted %d points, want 2", len(store.upserted))
	}
	for i, p := range store.upserted {
		if p.Chunk.DocumentID != "doc-1" || p.Chunk.SourceTitle != "Return Policy" {
			t.Errorf("point %d chunk = %+v", i, p.Chunk)
		}
		if p.ID == uuid.Nil {
			t.Errorf("point %d has nil ID", i)
		}
	}
	if store.upserted[0].Chunk.Index != 0 || store.upserted[1].Chunk.Index != 1 {
		t.Error("chunk indices not sequential")
	}
}

func TestIngestDeletesBeforeUpsert(t *testing.T) {
	// Re-ingesting must clear the old vectors first so stale chunks are
	// never searchable alongside new ones.
	store := &mockVectorStore{deletedRows: 4}
	ing := newTestIngestor(store, &mockBatchEmbedder{dim: 4})

	if _, err := ing.Ingest(context.Background(), "doc-1", "T", []Page{{Text: "some content"}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(store.deletedIDs) != 1 || store.deletedIDs[0] != "doc-1" {
		t.Errorf("deleted = %v", store.deletedIDs)
	}
	if !store.deleteBefore {
		t.Error("delete must happen before upsert")
	}
}

func TestReingestMintsFreshPointIDs(t *testing.T) {
	store := &mockVectorStore{}
	ing := newTestIngestor(store, &mockBatchEmbedder{dim: 4})
	pages := []Page{{Text: "identical content both times"}}

	first, err := ing.Ingest(context.Background(), "doc-1", "T", pages)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := ing.Ingest(context.Background(), "doc-1", "T", pages)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(first.PointIDs))
	for _, id := range first.PointIDs {
		seen[id] = struct{}{}
	}
	for _, id := range second.PointIDs {
		if _, dup := seen[id]; dup {
			t.Errorf("point ID %s reused across ingestions", id)
		}
	}
}

func TestIngestValidation(t *testing.T) {
	ing := newTestIngestor(&mockVectorStore{}, &mockBatchEmbedder{dim: 4})

	if _, err := ing.Ingest(context.Background(), "", "T", []Page{{Text: "x y z"}}); err == nil {
		t.Error("expected error for empty document ID")
	}
	if _, err := ing.Ingest(context.Background(), "doc-1", "T", nil); err == nil {
		t.Error("expected error for no pages")
	}
	if _, err := ing.Ingest(context.Background(), "doc-1", "T", []Page{{Text: "   "}}); err == nil {
		t.Error("expected error for blank pages")
	}
}

func TestIngestEmbedFailureLeavesIndexUntouched(t *testing.T) {
	store := &mockVectorStore{}
	ing := newTestIngestor(store, &mockBatchEmbedder{embedErr: errors.New("ollama down")})

	if _, err := ing.Ingest(context.Background(), "doc-1", "T", []Page{{Text: "content"}}); err == nil {
		t.Fatal("expected embedding error")
	}
	if len(store.deletedIDs) != 0 {
		t.Error("old vectors deleted before embedding succeeded")
	}
	if len(store.upserted) != 0 {
		t.Error("points written despite embedding failure")
	}
}
