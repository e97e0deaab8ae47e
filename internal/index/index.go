// Package index stores chunk embeddings in PostgreSQL with pgvector
// and serves cosine nearest-neighbor search for the retriever.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/novatech/supportiq/internal/rag"
)

// Querier defines the database operations the index needs. Interfaces
// are defined by the consumer; the pgx-backed implementation lives in
// postgres.go and tests supply mocks.
type Querier interface {
	// VectorDimension returns the declared dimension of the embedding column.
	VectorDimension(ctx context.Context) (int, error)

	// InsertEmbedding upserts one embedding row keyed by point ID.
	InsertEmbedding(ctx context.Context, row EmbeddingRow) error

	// DeleteEmbeddingsByDocument removes every row owned by a document.
	DeleteEmbeddingsByDocument(ctx context.Context, documentID string) (int64, error)

	// SearchEmbeddings returns the topK nearest rows by cosine distance.
	SearchEmbeddings(ctx context.Context, vector pgvector.Vector, topK int) ([]SearchRow, error)
}

// EmbeddingRow is one stored (chunk, vector) pair.
type EmbeddingRow struct {
	PointID     uuid.UUID
	DocumentID  string
	SourceTitle string
	PageNumber  int
	ChunkIndex  int
	ChunkText   string
	Embedding   pgvector.Vector
}

// SearchRow is one nearest-neighbor result with its cosine similarity.
type SearchRow struct {
	PointID     uuid.UUID
	DocumentID  string
	SourceTitle string
	PageNumber  int
	ChunkIndex  int
	ChunkText   string
	Score       float64
}

// Point is one (chunk, vector) pair to store. The ID is an opaque key
// used only for deletion and deduplication.
type Point struct {
	ID     uuid.UUID
	Vector []float32
	Chunk  rag.Chunk
}

// Store is the vector index facade. It implements rag.Index for search
// and is also used by ingestion for upsert and cascade deletion.
type Store struct {
	querier   Querier
	logger    *slog.Logger
	dimension int
}

// New creates a Store over the given querier. dimension is the
// embedding dimensionality agreed with the embedder.
func New(querier Querier, logger *slog.Logger, dimension int) *Store {
	return &Store{
		querier:   querier,
		logger:    logger,
		dimension: dimension,
	}
}

// EnsureDimension verifies that the embeddings table was created with
// the configured vector dimension. A mismatch means the schema and the
// embedder disagree and every stored vector is unusable, so this fails
// at startup rather than letting queries silently return garbage.
func (s *Store) EnsureDimension(ctx context.Context) error {
	declared, err := s.querier.VectorDimension(ctx)
	if err != nil {
		return fmt.Errorf("reading embedding column dimension: %w", err)
	}
	if declared != s.dimension {
		return fmt.Errorf("vector dimension mismatch: schema declares %d, configuration expects %d (re-run migrations or fix rag.vector_dimension)",
			declared, s.dimension)
	}
	return nil
}

// Upsert stores a batch of points. Each point's vector must match the
// configured dimension; a mismatch aborts the whole batch before any
// row is written.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	for i, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %d: vector dimension %d, expected %d", i, len(p.Vector), s.dimension)
		}
	}

	for i, p := range points {
		row := EmbeddingRow{
			PointID:     p.ID,
			DocumentID:  p.Chunk.DocumentID,
			SourceTitle: p.Chunk.SourceTitle,
			PageNumber:  p.Chunk.PageNumber,
			ChunkIndex:  p.Chunk.Index,
			ChunkText:   p.Chunk.Text,
			Embedding:   pgvector.NewVector(p.Vector),
		}
		if err := s.querier.InsertEmbedding(ctx, row); err != nil {
			return fmt.Errorf("storing point %d of %d: %w", i+1, len(points), err)
		}
	}

	s.logger.Debug("upserted embedding points", "count", len(points))
	return nil
}

// DeleteByDocument removes all embeddings owned by a document. Called
// before re-ingestion so stale chunks never stay searchable.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	deleted, err := s.querier.DeleteEmbeddingsByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings for document %s: %w", documentID, err)
	}
	s.logger.Debug("deleted document embeddings", "document_id", documentID, "rows", deleted)
	return deleted, nil
}

// Search implements rag.Index: topK nearest neighbors by cosine
// similarity, ordered by similarity descending.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]rag.RetrievalHit, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension %d, expected %d", len(vector), s.dimension)
	}

	rows, err := s.querier.SearchEmbeddings(ctx, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}

	hits := make([]rag.RetrievalHit, len(rows))
	for i, row := range rows {
		hits[i] = rag.RetrievalHit{
			ChunkID:     row.PointID.String(),
			DocumentID:  row.DocumentID,
			SourceTitle: row.SourceTitle,
			PageNumber:  row.PageNumber,
			ChunkText:   row.ChunkText,
			Score:       row.Score,
		}
	}
	return hits, nil
}
