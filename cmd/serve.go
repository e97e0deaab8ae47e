package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/novatech/supportiq/internal/api"
	"github.com/novatech/supportiq/internal/generate"
	"github.com/novatech/supportiq/internal/rag"
	"github.com/novatech/supportiq/internal/responder"
	"github.com/novatech/supportiq/internal/support"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // generation can take a while
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	st, err := buildStack(ctx, logger)
	if err != nil {
		return err
	}
	defer st.cleanup()

	cfg := st.cfg

	retriever := rag.NewRetriever(st.embedder, st.index,
		logger.With("component", "retriever"),
		cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
	scorer := rag.NewScorer(cfg.RAG.AutoEscalateThreshold, cfg.RAG.OfferEscalationThreshold)
	explainer := rag.NewExplainer(cfg.RAG.StrongSourceThreshold, cfg.RAG.WeakSourceThreshold)

	generator := generate.New(cfg.OllamaHost, cfg.GenerationModel, generate.Options{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}, cfg.GenerationTimeout(), logger.With("component", "generator"))

	if !generator.CheckHealth(ctx) {
		logger.Warn("generation model not reachable at startup, answers will degrade until it recovers",
			"host", cfg.OllamaHost,
			"model", cfg.GenerationModel)
	}

	pipeline := rag.NewPipeline(retriever, scorer, explainer, generator,
		logger.With("component", "pipeline"))

	supportStore := support.New(support.NewPostgresQuerier(st.pool),
		logger.With("component", "support"))
	res := responder.New(pipeline, supportStore, logger.With("component", "responder"))

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Store:       supportStore,
		Responder:   res,
		Pool:        st.pool,
		Model:       generator,
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.PostgresSSLMode == "disable",
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
