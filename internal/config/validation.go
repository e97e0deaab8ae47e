package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validSSLModes lists the SSL modes accepted by PostgreSQL.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate performs fail-fast validation of the whole configuration.
// Called once at startup by Load; a failure here aborts the process
// before any request is served (configuration errors are never retried
// at request time).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.RAG.validate(); err != nil {
		return err
	}
	return c.validatePostgres()
}

func (c *Config) validateOllama() error {
	u, err := url.Parse(c.OllamaHost)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q (expected http(s)://host:port)", ErrInvalidOllamaHost, c.OllamaHost)
	}

	if strings.TrimSpace(c.GenerationModel) == "" {
		return fmt.Errorf("%w: generation_model must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (expected 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p %.2f (expected (0,1])", ErrInvalidTemperature, c.TopP)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: %d (expected 1-32768)", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.GenerationTimeoutSecs < 1 || c.GenerationTimeoutSecs > 600 {
		return fmt.Errorf("%w: generation_timeout_seconds %d (expected 1-600)", ErrInvalidTimeout, c.GenerationTimeoutSecs)
	}
	return nil
}

func (r *RAGConfig) validate() error {
	if r.TopK < 0 || r.TopK > 100 {
		return fmt.Errorf("%w: top_k %d (expected 0-100)", ErrInvalidThreshold, r.TopK)
	}

	unit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %.4f (expected 0.0-1.0)", ErrInvalidThreshold, name, v)
		}
		return nil
	}
	if err := unit("similarity_threshold", r.SimilarityThreshold); err != nil {
		return err
	}
	if err := unit("auto_escalate_threshold", r.AutoEscalateThreshold); err != nil {
		return err
	}
	if err := unit("offer_escalation_threshold", r.OfferEscalationThreshold); err != nil {
		return err
	}
	if err := unit("strong_source_threshold", r.StrongSourceThreshold); err != nil {
		return err
	}
	if err := unit("weak_source_threshold", r.WeakSourceThreshold); err != nil {
		return err
	}

	if r.AutoEscalateThreshold > r.OfferEscalationThreshold {
		return fmt.Errorf("%w: auto_escalate_threshold %.2f must not exceed offer_escalation_threshold %.2f",
			ErrInvalidThreshold, r.AutoEscalateThreshold, r.OfferEscalationThreshold)
	}
	if r.WeakSourceThreshold > r.StrongSourceThreshold {
		return fmt.Errorf("%w: weak_source_threshold %.2f must not exceed strong_source_threshold %.2f",
			ErrInvalidThreshold, r.WeakSourceThreshold, r.StrongSourceThreshold)
	}

	if r.VectorDimension < 1 || r.VectorDimension > 8192 {
		return fmt.Errorf("%w: %d (expected 1-8192)", ErrInvalidVectorDimension, r.VectorDimension)
	}

	if r.ChunkSize < 50 || r.ChunkSize > 10000 {
		return fmt.Errorf("%w: chunk_size %d (expected 50-10000)", ErrInvalidChunking, r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be >= 0 and < chunk_size %d",
			ErrInvalidChunking, r.ChunkOverlap, r.ChunkSize)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (expected 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
