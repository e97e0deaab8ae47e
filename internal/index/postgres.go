package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresQuerier implements Querier over a pgx connection pool.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier wraps a pool for embedding queries.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

// VectorDimension reads the declared dimension of the embedding column
// from the catalog. For pgvector columns, atttypmod carries the
// dimension directly.
func (q *PostgresQuerier) VectorDimension(ctx context.Context) (int, error) {
	const query = `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'embeddings'::regclass
		  AND attname = 'embedding'`

	var dimension int
	if err := q.pool.QueryRow(ctx, query).Scan(&dimension); err != nil {
		return 0, fmt.Errorf("querying embedding column type: %w", err)
	}
	return dimension, nil
}

// InsertEmbedding upserts one row keyed by point ID.
func (q *PostgresQuerier) InsertEmbedding(ctx context.Context, row EmbeddingRow) error {
	const query = `
		INSERT INTO embeddings (point_id, document_id, source_title, page_number, chunk_index, chunk_text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (point_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			source_title = EXCLUDED.source_title,
			page_number = EXCLUDED.page_number,
			chunk_index = EXCLUDED.chunk_index,
			chunk_text = EXCLUDED.chunk_text,
			embedding = EXCLUDED.embedding`

	_, err := q.pool.Exec(ctx, query,
		row.PointID, row.DocumentID, row.SourceTitle, row.PageNumber, row.ChunkIndex, row.ChunkText, row.Embedding)
	if err != nil {
		return fmt.Errorf("inserting embedding: %w", err)
	}
	return nil
}

// DeleteEmbeddingsByDocument removes every row for a document and
// returns the number of rows deleted.
func (q *PostgresQuerier) DeleteEmbeddingsByDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM embeddings WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SearchEmbeddings runs cosine nearest-neighbor search. The <=> operator
// is cosine distance, so similarity is 1 - distance; ordering by
// distance ascending yields similarity descending.
func (q *PostgresQuerier) SearchEmbeddings(ctx context.Context, vector pgvector.Vector, topK int) ([]SearchRow, error) {
	const query = `
		SELECT point_id, document_id, source_title, page_number, chunk_index, chunk_text,
		       1 - (embedding <=> $1) AS score
		FROM embeddings
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := q.pool.Query(ctx, query, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchRow, error) {
		var r SearchRow
		err := row.Scan(&r.PointID, &r.DocumentID, &r.SourceTitle, &r.PageNumber, &r.ChunkIndex, &r.ChunkText, &r.Score)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning search results: %w", err)
	}
	return results, nil
}
