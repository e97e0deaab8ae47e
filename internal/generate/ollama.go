// Package generate implements the language-model boundary against the
// Ollama REST API. The client never propagates an error to its caller:
// every failure class maps to a fixed, user-safe fallback string, and
// the result is flagged as degraded so the pipeline can force
// worst-case confidence.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/novatech/supportiq/internal/rag"
)

// Fallback strings shown to the customer when generation fails. These
// are part of the user-visible contract; keep them verbatim.
const (
	fallbackUnavailable = "I'm sorry, the AI service is currently unavailable. " +
		"Please try again later or ask to speak with a human agent."
	fallbackHTTPError = "I encountered an error while generating a response. " +
		"Please try again or escalate to a human agent."
	fallbackGeneric = "Something went wrong while processing your question. " +
		"Please try again shortly."
)

const healthCheckTimeout = 10 * time.Second

// Options are the sampling parameters sent with every generation call.
type Options struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Client calls Ollama's generate endpoint under a bounded timeout.
// Safe for concurrent use; one stuck call cannot stall another.
type Client struct {
	baseURL string
	model   string
	opts    Options
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// New creates a generation client. The timeout bounds every Generate
// call; it is enforced here rather than left to callers because a
// stuck model call must return fallback text, not block the request.
func New(baseURL, model string, opts Options, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		opts:    opts,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements rag.Generator. Failure classes map to distinct
// fallback strings: connection failures to the unavailable message,
// non-200 statuses to the error message, and everything else (timeout,
// malformed response) to the generic message.
func (c *Client) Generate(ctx context.Context, prompt string) rag.GenerationResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.opts.Temperature,
			TopP:        c.opts.TopP,
			NumPredict:  c.opts.MaxTokens,
		},
	})
	if err != nil {
		c.logger.Error("encoding generation request", "error", err)
		return rag.GenerationResult{Text: fallbackGeneric, Degraded: true, FailureClass: "generic"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("building generation request", "error", err)
		return rag.GenerationResult{Text: fallbackGeneric, Degraded: true, FailureClass: "generic"}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			c.logger.Error("cannot connect to ollama", "host", c.baseURL, "error", err)
			return rag.GenerationResult{Text: fallbackUnavailable, Degraded: true, FailureClass: "unavailable"}
		}
		c.logger.Error("generation call failed", "error", err)
		return rag.GenerationResult{Text: fallbackGeneric, Degraded: true, FailureClass: "generic"}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.logger.Error("ollama returned error status",
			"status", resp.StatusCode,
			"body", string(snippet))
		return rag.GenerationResult{Text: fallbackHTTPError, Degraded: true, FailureClass: "http_error"}
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Error("decoding generation response", "error", err)
		return rag.GenerationResult{Text: fallbackGeneric, Degraded: true, FailureClass: "generic"}
	}

	answer := strings.TrimSpace(parsed.Response)
	c.logger.Info("generated response", "chars", len(answer), "model", c.model)
	return rag.GenerationResult{Text: answer}
}

// CheckHealth reports whether Ollama is reachable and the configured
// model is present. Best-effort diagnostic only; it never gates the
// main call path.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}

	for _, m := range parsed.Models {
		if strings.Contains(m.Name, c.model) {
			return true
		}
	}
	c.logger.Warn("ollama is up but model not found",
		"model", c.model,
		"available", len(parsed.Models))
	return false
}

// isConnectionError reports whether err is a dial-level failure, as
// opposed to a timeout or a protocol error on an established
// connection.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
