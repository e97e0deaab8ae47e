package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// vagueInputGuidance is returned for greetings and other inputs too
// short to retrieve on. User-facing string; keep verbatim.
const vagueInputGuidance = "Hello! I'm SupportIQ, the NovaTech Solutions support assistant. " +
	"Please describe your question or issue in a full sentence, for example " +
	"\"How do I return a product?\" or \"My order hasn't arrived yet\", " +
	"and I'll search our knowledge base for an answer."

// GenerationResult is the generator boundary's output. Degraded marks
// fallback text substituted for a failed model call; the text itself is
// always safe to show the customer. FailureClass names the failure for
// logs ("unavailable", "http_error", "generic") and is empty on success.
type GenerationResult struct {
	Text         string
	Degraded     bool
	FailureClass string
}

// Generator produces answer text for a prompt. The Ollama-backed
// implementation lives in internal/generate; it never returns an error,
// mapping every failure class to fixed fallback text instead.
type Generator interface {
	Generate(ctx context.Context, prompt string) GenerationResult
}

// Pipeline orchestrates one query through retrieval, scoring, evidence
// assessment, prompt construction, generation, and annotation. One call
// per customer message; stages never re-enter and no state is carried
// between calls.
type Pipeline struct {
	retriever *Retriever
	scorer    *Scorer
	explainer *Explainer
	generator Generator
	logger    *slog.Logger
}

// NewPipeline assembles a Pipeline from its stages.
func NewPipeline(retriever *Retriever, scorer *Scorer, explainer *Explainer, generator Generator, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		scorer:    scorer,
		explainer: explainer,
		generator: generator,
		logger:    logger,
	}
}

// Process runs the full pipeline for one customer query and returns a
// complete envelope. It never returns a partial result: generation
// failure keeps the retrieved sources but forces worst-case confidence
// so escalation always fires on a degraded answer.
//
// Trivially vague input (greetings, single words, very short strings)
// short-circuits before retrieval with a canned guidance response,
// skipping both the embedding call and the model call.
func (p *Pipeline) Process(ctx context.Context, query string) *Envelope {
	start := time.Now()

	if isVagueInput(query) {
		p.logger.Info("vague input short-circuit", "query_prefix", queryPrefix(query))
		return &Envelope{
			Response: vagueInputGuidance,
			Sources:  []SourceReference{},
			Confidence: ConfidenceResult{
				ConfidenceScore:       0.0,
				HasSufficientEvidence: false,
				EscalationAction:      ActionNone,
			},
			Evidence: EvidenceAssessment{
				HasSufficientEvidence: false,
				EvidenceQuality:       EvidenceNone,
			},
			Highlights:     []HighlightMapping{},
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
	}

	hits := p.retriever.Retrieve(ctx, query)
	confidence := p.scorer.Score(hits)

	sources := p.explainer.Rank(sourcesFromHits(hits))
	evidence := p.explainer.AssessEvidence(sources, confidence.ConfidenceScore)

	prompt := BuildPrompt(query, hits)
	generated := p.generator.Generate(ctx, prompt)

	response := generated.Text
	highlights := Highlight(response, hits)

	if generated.Degraded {
		// A degraded answer must never look trustworthy, whatever
		// retrieval found.
		confidence = ConfidenceResult{
			ConfidenceScore:       0.0,
			HasSufficientEvidence: false,
			EscalationAction:      ActionAuto,
		}
	} else if evidence.Disclaimer != "" {
		response = evidence.Disclaimer + "\n\n" + response
	}

	elapsed := time.Since(start).Milliseconds()
	p.logger.Info("pipeline complete",
		"elapsed_ms", elapsed,
		"confidence", confidence.ConfidenceScore,
		"escalation", confidence.EscalationAction,
		"evidence", evidence.EvidenceQuality,
		"sources", len(sources),
		"degraded", generated.Degraded,
		"failure_class", generated.FailureClass)

	return &Envelope{
		Response:          response,
		Sources:           sources,
		Confidence:        confidence,
		Evidence:          evidence,
		Highlights:        highlights,
		TotalSourcesFound: len(hits),
		ResponseTimeMs:    elapsed,
	}
}

// sourcesFromHits converts hits to unranked source references, rounding
// scores to the precision the envelope is persisted with.
func sourcesFromHits(hits []RetrievalHit) []SourceReference {
	sources := make([]SourceReference, len(hits))
	for i, hit := range hits {
		title := hit.SourceTitle
		if title == "" {
			title = "Document " + hit.DocumentID
		}
		sources[i] = SourceReference{
			Title:      title,
			PageNumber: hit.PageNumber,
			ChunkText:  hit.ChunkText,
			Score:      round4(hit.Score),
			DocumentID: hit.DocumentID,
			ChunkID:    hit.ChunkID,
		}
	}
	return sources
}

// greetings that carry no retrievable content even when multi-word.
var greetingInputs = map[string]struct{}{
	"hi":           {},
	"hello":        {},
	"hey":          {},
	"yo":           {},
	"sup":          {},
	"thanks":       {},
	"thank you":    {},
	"ok":           {},
	"okay":         {},
	"good morning": {},
	"good evening": {},
	"bye":          {},
	"goodbye":      {},
	"help":         {},
	"test":         {},
}

// isVagueInput reports whether the message is too vague to retrieve
// on: a known greeting, a single word, or a very short string.
func isVagueInput(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.TrimRight(normalized, ".!?,")

	if len(normalized) < 3 {
		return true
	}
	if _, ok := greetingInputs[normalized]; ok {
		return true
	}
	return len(strings.Fields(normalized)) == 1
}
