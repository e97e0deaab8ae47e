package rag

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// EmbeddingService wraps an ai.Embedder and enforces the vector
// dimension agreed with the index. Queries must be embedded with the
// same model used at ingestion; vectors from different models are not
// comparable, so a dimension mismatch is surfaced as an error rather
// than silently truncated or padded.
//
// The service is stateless after construction and safe for concurrent
// use.
type EmbeddingService struct {
	embedder  ai.Embedder
	dimension int
}

// NewEmbeddingService creates an EmbeddingService that validates every
// returned vector against the given dimension.
func NewEmbeddingService(embedder ai.Embedder, dimension int) *EmbeddingService {
	return &EmbeddingService{
		embedder:  embedder,
		dimension: dimension,
	}
}

// Dimension returns the expected embedding dimensionality.
func (s *EmbeddingService) Dimension() int {
	return s.dimension
}

// EmbedQuery embeds a single query string.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of texts in one request, preserving input
// order.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != s.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(emb.Embedding), s.dimension)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
