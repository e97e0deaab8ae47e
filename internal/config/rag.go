package config

// RAGConfig holds the retrieval and escalation policy knobs.
//
// The confidence buckets (AutoEscalateThreshold / OfferEscalationThreshold)
// and the per-source evidence thresholds (StrongSourceThreshold /
// WeakSourceThreshold) are two deliberately independent policies over the
// same retrieval signal. The confidence buckets drive the escalation action;
// the per-source thresholds drive the evidence-quality label and disclaimer.
// Keep them independently tunable: unifying them changes escalation behavior.
type RAGConfig struct {
	// TopK is the number of nearest neighbors requested per query.
	TopK int `mapstructure:"top_k" json:"top_k"`

	// SimilarityThreshold is the retrieval floor: hits scoring below it are
	// dropped. The comparison is inclusive (score >= threshold keeps the hit).
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// AutoEscalateThreshold: confidence below it auto-escalates to a human.
	AutoEscalateThreshold float64 `mapstructure:"auto_escalate_threshold" json:"auto_escalate_threshold"`

	// OfferEscalationThreshold: confidence below it (but at or above
	// AutoEscalateThreshold) offers escalation; at or above it, none.
	OfferEscalationThreshold float64 `mapstructure:"offer_escalation_threshold" json:"offer_escalation_threshold"`

	// StrongSourceThreshold: a source at or above it counts toward "strong" evidence.
	StrongSourceThreshold float64 `mapstructure:"strong_source_threshold" json:"strong_source_threshold"`

	// WeakSourceThreshold: a source at or above it counts toward "moderate" evidence.
	WeakSourceThreshold float64 `mapstructure:"weak_source_threshold" json:"weak_source_threshold"`

	// VectorDimension is the fixed embedding dimensionality shared by the
	// embedder and the vector index. A mismatch is a configuration error and
	// fails at startup, never at query time.
	VectorDimension int `mapstructure:"vector_dimension" json:"vector_dimension"`

	// ChunkSize and ChunkOverlap control ingestion-time text splitting (characters).
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
}
