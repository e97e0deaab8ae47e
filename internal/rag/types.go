// Package rag implements the retrieval-augmented response pipeline:
// retrieval scoring, confidence estimation, evidence assessment, prompt
// construction, and the orchestration that ties them together.
//
// Data flows one way through the pipeline. Every intermediate value
// (hit list, confidence result, evidence assessment) is freshly built
// per query and never shared between concurrent invocations, so the
// package needs no internal locking.
package rag

import "math"

// EscalationAction is the policy verdict on whether a response should
// be handed off to a human agent.
type EscalationAction string

const (
	// ActionNone delivers the answer as-is.
	ActionNone EscalationAction = "none"
	// ActionOffer delivers the answer but offers a human handoff.
	ActionOffer EscalationAction = "offer"
	// ActionAuto escalates to a human agent automatically.
	ActionAuto EscalationAction = "auto"
)

// EvidenceQuality classifies how well the retrieved sources support an
// answer. It is judged independently from the confidence score.
type EvidenceQuality string

const (
	EvidenceStrong   EvidenceQuality = "strong"
	EvidenceModerate EvidenceQuality = "moderate"
	EvidenceWeak     EvidenceQuality = "weak"
	EvidenceNone     EvidenceQuality = "none"
)

// Chunk is an immutable unit of indexed knowledge, produced once at
// ingestion time by splitting a document's text into overlapping
// windows. A chunk is identified by its (DocumentID, Index) pair and is
// deleted only when its owning document is deleted.
type Chunk struct {
	Text        string
	Index       int
	PageNumber  int // 0 when the source has no page structure
	DocumentID  string
	SourceTitle string
}

// RetrievalHit is a transient per-query value: one chunk returned by
// the vector index together with its cosine similarity score. Hits are
// never persisted; they exist only for the duration of one pipeline
// invocation.
type RetrievalHit struct {
	ChunkID     string
	DocumentID  string
	SourceTitle string
	PageNumber  int
	ChunkText   string
	Score       float64
}

// SourceReference is the caller-facing view of a retrieval hit,
// annotated with its 1-based rank after sorting by score descending.
type SourceReference struct {
	Title      string  `json:"title"`
	PageNumber int     `json:"page_number"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Rank       int     `json:"rank"`
	IsPrimary  bool    `json:"is_primary"`
}

// ConfidenceResult summarizes retrieval quality for one query and the
// escalation action it implies. Derived deterministically from a hit
// list; pure value, no side effects.
type ConfidenceResult struct {
	ConfidenceScore       float64          `json:"confidence_score"`
	HasSufficientEvidence bool             `json:"has_sufficient_evidence"`
	EscalationAction      EscalationAction `json:"escalation_action"`
}

// EvidenceAssessment is a second, independent judgment over the same
// source list. It re-examines per-source scores that the rank-weighted
// confidence average can obscure, and carries the disclaimer text to
// prepend when evidence is weak or absent.
type EvidenceAssessment struct {
	HasSufficientEvidence bool            `json:"has_sufficient_evidence"`
	EvidenceQuality       EvidenceQuality `json:"evidence_quality"`
	Disclaimer            string          `json:"disclaimer,omitempty"`
}

// HighlightMapping links a source chunk to the phrases of it that
// appear literally in the generated answer.
type HighlightMapping struct {
	ChunkID        string   `json:"chunk_id"`
	DocumentID     string   `json:"document_id"`
	MatchedPhrases []string `json:"matched_phrases"`
	OverlapScore   float64  `json:"overlap_score"`
}

// Envelope is the pipeline's sole output: the answer text plus every
// annotation a caller needs for persistence, display, and escalation.
// Its JSON shape is the wire contract with the chat API and the
// analytics log, so field names must stay stable.
type Envelope struct {
	Response          string             `json:"response"`
	Sources           []SourceReference  `json:"sources"`
	Confidence        ConfidenceResult   `json:"confidence"`
	Evidence          EvidenceAssessment `json:"evidence"`
	Highlights        []HighlightMapping `json:"highlights"`
	TotalSourcesFound int                `json:"total_sources_found"`
	ResponseTimeMs    int64              `json:"response_time_ms"`
}

// round4 rounds to 4 decimal places, matching the precision the
// envelope is logged and persisted with.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
