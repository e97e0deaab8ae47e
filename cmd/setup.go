package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novatech/supportiq/db"
	"github.com/novatech/supportiq/internal/config"
	"github.com/novatech/supportiq/internal/database"
	"github.com/novatech/supportiq/internal/embed"
	"github.com/novatech/supportiq/internal/index"
	"github.com/novatech/supportiq/internal/rag"
)

// stack holds the shared infrastructure both commands need: config,
// database pool, vector index, and the embedding service.
type stack struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	index    *index.Store
	embedder *rag.EmbeddingService
	cleanup  func()
}

// buildStack loads config, runs migrations, connects the pool, and
// verifies the embeddings table matches the configured vector dimension.
func buildStack(ctx context.Context, logger *slog.Logger) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, closePool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	indexStore := index.New(index.NewPostgresQuerier(pool), logger.With("component", "index"), cfg.RAG.VectorDimension)
	if err := indexStore.EnsureDimension(ctx); err != nil {
		closePool()
		return nil, fmt.Errorf("checking embeddings schema: %w", err)
	}

	ollamaEmbedder := embed.NewOllama(cfg.OllamaHost, cfg.EmbedderModel, logger.With("component", "embedder"))
	embedSvc := rag.NewEmbeddingService(ollamaEmbedder, cfg.RAG.VectorDimension)

	return &stack{
		cfg:      cfg,
		pool:     pool,
		index:    indexStore,
		embedder: embedSvc,
		cleanup:  closePool,
	}, nil
}
