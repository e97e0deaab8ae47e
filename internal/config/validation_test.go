package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes validation.
// Tests mutate single fields to probe individual checks.
func validConfig() *Config {
	return &Config{
		OllamaHost:            "http://localhost:11434",
		GenerationModel:       DefaultGenerationModel,
		EmbedderModel:         DefaultEmbedderModel,
		Temperature:           0.3,
		TopP:                  0.9,
		MaxTokens:             512,
		GenerationTimeoutSecs: 120,
		RAG: RAGConfig{
			TopK:                     5,
			SimilarityThreshold:      0.3,
			AutoEscalateThreshold:    0.4,
			OfferEscalationThreshold: 0.7,
			StrongSourceThreshold:    0.6,
			WeakSourceThreshold:      0.35,
			VectorDimension:          DefaultVectorDimension,
			ChunkSize:                500,
			ChunkOverlap:             50,
		},
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "supportiq",
		PostgresPassword: "supportiq_dev_password",
		PostgresDBName:   "supportiq",
		PostgresSSLMode:  "disable",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"nil host", func(c *Config) { c.OllamaHost = "" }, ErrInvalidOllamaHost},
		{"host without scheme", func(c *Config) { c.OllamaHost = "localhost:11434" }, ErrInvalidOllamaHost},
		{"empty generation model", func(c *Config) { c.GenerationModel = "  " }, ErrInvalidModelName},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidModelName},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"zero top_p", func(c *Config) { c.TopP = 0 }, ErrInvalidTemperature},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"timeout too long", func(c *Config) { c.GenerationTimeoutSecs = 3600 }, ErrInvalidTimeout},
		{"negative top_k", func(c *Config) { c.RAG.TopK = -1 }, ErrInvalidThreshold},
		{"threshold above one", func(c *Config) { c.RAG.SimilarityThreshold = 1.2 }, ErrInvalidThreshold},
		{"inverted confidence buckets", func(c *Config) { c.RAG.AutoEscalateThreshold = 0.8 }, ErrInvalidThreshold},
		{"inverted evidence thresholds", func(c *Config) { c.RAG.WeakSourceThreshold = 0.9 }, ErrInvalidThreshold},
		{"zero dimension", func(c *Config) { c.RAG.VectorDimension = 0 }, ErrInvalidVectorDimension},
		{"overlap >= size", func(c *Config) { c.RAG.ChunkOverlap = 500 }, ErrInvalidChunking},
		{"empty postgres host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bogus sslmode", func(c *Config) { c.PostgresSSLMode = "yes-please" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got %v", err)
	}
}

func TestTopKZeroIsAllowed(t *testing.T) {
	// top_k = 0 is a valid (if useless) configuration: retrieval returns
	// an empty hit list and the pipeline degrades to the no-evidence path.
	cfg := validConfig()
	cfg.RAG.TopK = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("top_k=0 should validate: %v", err)
	}
}
