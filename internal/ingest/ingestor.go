package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/novatech/supportiq/internal/index"
)

// VectorStore is the slice of the index the ingestor needs.
type VectorStore interface {
	Upsert(ctx context.Context, points []index.Point) error
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}

// Embedder is the batch-embedding operation the ingestor consumes.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Result summarizes one completed ingestion.
type Result struct {
	PageCount  int
	ChunkCount int
	PointIDs   []uuid.UUID
}

// Ingestor runs the ingestion pipeline: chunk, embed, replace the
// document's vectors. Chunks become searchable once Ingest returns;
// querying a partially ingested knowledge base is safe because the
// retriever treats an empty or thin result as a valid state.
type Ingestor struct {
	chunker  *Chunker
	embedder Embedder
	store    VectorStore
	logger   *slog.Logger
}

// New creates an Ingestor.
func New(chunker *Chunker, embedder Embedder, store VectorStore, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Ingest chunks and embeds a document's pages, then replaces the
// document's vectors in the index. Existing vectors are deleted before
// the new ones are written, so re-ingesting a document never leaves
// stale chunks searchable, and each run mints fresh point IDs.
func (ing *Ingestor) Ingest(ctx context.Context, documentID, sourceTitle string, pages []Page) (*Result, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document ID must not be empty")
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("document %s has no pages to ingest", documentID)
	}

	chunks := ing.chunker.SplitPages(pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s produced zero chunks", documentID)
	}
	for i := range chunks {
		chunks[i].DocumentID = documentID
		chunks[i].SourceTitle = sourceTitle
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := ing.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks for document %s: %w", documentID, err)
	}

	deleted, err := ing.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("clearing old vectors for document %s: %w", documentID, err)
	}
	if deleted > 0 {
		ing.logger.Info("replaced existing document vectors", "document_id", documentID, "old_vectors", deleted)
	}

	points := make([]index.Point, len(chunks))
	pointIDs := make([]uuid.UUID, len(chunks))
	for i, chunk := range chunks {
		id := uuid.New()
		pointIDs[i] = id
		points[i] = index.Point{ID: id, Vector: vectors[i], Chunk: chunk}
	}
	if err := ing.store.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("storing vectors for document %s: %w", documentID, err)
	}

	ing.logger.Info("ingestion complete",
		"document_id", documentID,
		"pages", len(pages),
		"chunks", len(chunks))
	return &Result{
		PageCount:  len(pages),
		ChunkCount: len(chunks),
		PointIDs:   pointIDs,
	}, nil
}

// PagesFromText splits raw extracted text into pages on form feeds, the
// page separator text extractors conventionally emit. Text without form
// feeds becomes a single unnumbered page.
func PagesFromText(text string) []Page {
	parts := strings.Split(text, "\f")
	if len(parts) == 1 {
		return []Page{{Text: parts[0]}}
	}
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, Page{PageNumber: i + 1, Text: part})
	}
	return pages
}
