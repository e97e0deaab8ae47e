package rag

import (
	"context"
	"log/slog"
)

// Index is the nearest-neighbor search the retriever consumes. The
// pgvector-backed implementation lives in internal/index; tests supply
// their own.
type Index interface {
	// Search returns up to topK hits ordered by similarity descending.
	Search(ctx context.Context, vector []float32, topK int) ([]RetrievalHit, error)
}

// Retriever embeds a query and searches the index, keeping only hits
// at or above the similarity floor. Index and embedder failures degrade
// to an empty hit list: an empty context is a valid, handleable state
// downstream, and escalation policy treats it as no evidence.
type Retriever struct {
	embedder  *EmbeddingService
	index     Index
	logger    *slog.Logger
	topK      int
	threshold float64
}

// NewRetriever creates a Retriever with the given search parameters.
func NewRetriever(embedder *EmbeddingService, index Index, logger *slog.Logger, topK int, threshold float64) *Retriever {
	return &Retriever{
		embedder:  embedder,
		index:     index,
		logger:    logger,
		topK:      topK,
		threshold: threshold,
	}
}

// Retrieve returns hits for the query ordered by similarity descending,
// filtered by the similarity floor. The comparison is inclusive: a hit
// scoring exactly the threshold is kept. Backend failures are logged
// and return an empty list, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) []RetrievalHit {
	if r.topK <= 0 {
		return []RetrievalHit{}
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, degrading to empty retrieval",
			"error", err,
			"query_prefix", queryPrefix(query))
		return []RetrievalHit{}
	}

	raw, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		r.logger.Warn("index search failed, degrading to empty retrieval",
			"error", err,
			"query_prefix", queryPrefix(query))
		return []RetrievalHit{}
	}

	filtered := make([]RetrievalHit, 0, len(raw))
	for _, hit := range raw {
		if hit.Score >= r.threshold {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) == 0 {
		r.logger.Info("no hits above similarity threshold",
			"threshold", r.threshold,
			"candidates", len(raw))
		return filtered
	}

	r.logger.Info("retrieved hits",
		"kept", len(filtered),
		"candidates", len(raw),
		"threshold", r.threshold,
		"top_score", filtered[0].Score)
	return filtered
}

// queryPrefix truncates a query for log lines. Full customer text does
// not belong in logs.
func queryPrefix(query string) string {
	const maxLen = 80
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
