// Package embed provides an Ollama-backed implementation of the Genkit
// ai.Embedder interface. The embedding model runs locally in Ollama and
// is shared by ingestion and query-time retrieval; both must use the
// same model, since vectors from different models are not comparable.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

const embedRequestTimeout = 60 * time.Second

// Ollama implements ai.Embedder against the Ollama REST API.
// Stateless after construction and safe for concurrent use.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewOllama creates an embedder for the given Ollama host and model.
func NewOllama(baseURL, model string, logger *slog.Logger) *Ollama {
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: embedRequestTimeout},
		logger:  logger,
	}
}

// Name implements ai.Embedder.
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Register implements ai.Embedder. The embedder is constructed and
// injected directly rather than looked up through a Genkit registry, so
// there is nothing to register.
func (o *Ollama) Register(_ api.Registry) {}

// Embed implements ai.Embedder. Each input document becomes one call to
// the Ollama embeddings endpoint; the response preserves input order.
func (o *Ollama) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{
		Embeddings: make([]*ai.Embedding, 0, len(req.Input)),
	}

	for i, doc := range req.Input {
		vector, err := o.embedOne(ctx, documentText(doc))
		if err != nil {
			return nil, fmt.Errorf("embedding input %d: %w", i, err)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vector})
	}
	return resp, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling ollama embeddings: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embeddings returned status %d", httpResp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %q", o.model)
	}
	return parsed.Embedding, nil
}

// documentText concatenates the text parts of a document.
func documentText(doc *ai.Document) string {
	if doc == nil {
		return ""
	}
	var text string
	for _, part := range doc.Content {
		text += part.Text
	}
	return text
}
