package rag

import (
	"regexp"
	"slices"
	"strings"
)

// Disclaimers prepended to the answer when evidence is absent or weak.
// These are user-facing strings; keep them verbatim across releases so
// downstream analytics can group on them.
const (
	noEvidenceDisclaimer = "I could not find any relevant documents to answer your question. " +
		"The following response is not backed by supporting evidence."
	weakEvidenceDisclaimer = "Note: I could not find strong supporting documents for this answer. " +
		"The following is based on limited context."
)

// Phrase extraction tuning for highlight matching.
const (
	minPhraseWords      = 3
	maxPhrasesPerSource = 20
	phraseWindowWords   = 4
	maxMatchedPhrases   = 5
)

var sentenceSplitter = regexp.MustCompile(`[.!?\n]+`)

// Explainer ranks sources and judges evidence sufficiency. Its
// thresholds are deliberately independent from the Scorer's confidence
// buckets: the two policies examine the same retrieval signal from
// different angles, and either one can trigger a warning on its own.
type Explainer struct {
	strongSourceThreshold float64
	weakSourceThreshold   float64
}

// NewExplainer creates an Explainer with the given per-source evidence
// thresholds.
func NewExplainer(strongSource, weakSource float64) *Explainer {
	return &Explainer{
		strongSourceThreshold: strongSource,
		weakSourceThreshold:   weakSource,
	}
}

// Rank sorts sources by score descending and annotates each with its
// 1-based rank. Rank 1 is the primary source. The sort is stable, so
// equal scores keep their input order, and ranking an already-ranked
// list reproduces the same output. The input slice is not mutated.
func (e *Explainer) Rank(sources []SourceReference) []SourceReference {
	ranked := slices.Clone(sources)
	slices.SortStableFunc(ranked, func(a, b SourceReference) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].IsPrimary = i == 0
	}
	return ranked
}

// AssessEvidence classifies how well the ranked sources support an
// answer, given the overall confidence score. The policy table is
// evaluated in order:
//
//  1. no sources: none, with the no-evidence disclaimer
//  2. confidence at or above the strong bucket and at least one source
//     at or above the strong-source threshold: strong
//  3. confidence at or above the moderate bucket and at least one
//     source at or above the weak-source threshold: moderate
//  4. otherwise: weak, with the weak-evidence disclaimer
//
// This is a second opinion, not a derivation of the confidence result.
// A single very strong source among many weak ones still reads as
// confident here even though the rank-weighted average dilutes it.
func (e *Explainer) AssessEvidence(sources []SourceReference, confidenceScore float64) EvidenceAssessment {
	if len(sources) == 0 {
		return EvidenceAssessment{
			HasSufficientEvidence: false,
			EvidenceQuality:       EvidenceNone,
			Disclaimer:            noEvidenceDisclaimer,
		}
	}

	var strongCount, moderateCount int
	for _, src := range sources {
		if src.Score >= e.strongSourceThreshold {
			strongCount++
		}
		if src.Score >= e.weakSourceThreshold {
			moderateCount++
		}
	}

	switch {
	case confidenceScore >= 0.7 && strongCount >= 1:
		return EvidenceAssessment{
			HasSufficientEvidence: true,
			EvidenceQuality:       EvidenceStrong,
		}
	case confidenceScore >= 0.4 && moderateCount >= 1:
		return EvidenceAssessment{
			HasSufficientEvidence: true,
			EvidenceQuality:       EvidenceModerate,
		}
	default:
		return EvidenceAssessment{
			HasSufficientEvidence: false,
			EvidenceQuality:       EvidenceWeak,
			Disclaimer:            weakEvidenceDisclaimer,
		}
	}
}

// Highlight maps the generated answer back to the source phrases it
// likely drew from. For each hit it extracts key phrases from the chunk
// text and tests case-insensitive literal containment in the response.
// Overlap is the ratio of matched phrases to extracted phrases.
//
// This is a coarse explainability heuristic, not entailment: paraphrased
// content will not match, and that is acceptable.
func Highlight(responseText string, hits []RetrievalHit) []HighlightMapping {
	if responseText == "" || len(hits) == 0 {
		return []HighlightMapping{}
	}

	responseLower := strings.ToLower(responseText)
	mappings := make([]HighlightMapping, 0, len(hits))

	for _, hit := range hits {
		if hit.ChunkText == "" {
			continue
		}

		phrases := extractKeyPhrases(hit.ChunkText)
		var matched []string
		for _, p := range phrases {
			if strings.Contains(responseLower, strings.ToLower(p)) {
				matched = append(matched, p)
			}
		}

		overlap := 0.0
		if len(phrases) > 0 {
			overlap = float64(len(matched)) / float64(len(phrases))
		}
		if len(matched) > maxMatchedPhrases {
			matched = matched[:maxMatchedPhrases]
		}

		mappings = append(mappings, HighlightMapping{
			ChunkID:        hit.ChunkID,
			DocumentID:     hit.DocumentID,
			MatchedPhrases: matched,
			OverlapScore:   round4(overlap),
		})
	}

	slices.SortStableFunc(mappings, func(a, b HighlightMapping) int {
		switch {
		case a.OverlapScore > b.OverlapScore:
			return -1
		case a.OverlapScore < b.OverlapScore:
			return 1
		default:
			return 0
		}
	})
	return mappings
}

// extractKeyPhrases splits text into sentences and pulls multi-word
// spans out of each. Sentences under minPhraseWords are skipped, short
// sentences are used whole, and longer ones are windowed into
// phraseWindowWords-word sliding spans capped at maxPhrasesPerSource.
func extractKeyPhrases(text string) []string {
	sentences := sentenceSplitter.Split(text, -1)
	var phrases []string

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) < minPhraseWords {
			continue
		}
		if len(words) <= 6 {
			phrases = append(phrases, strings.Join(words, " "))
			continue
		}
		for i := 0; i+phraseWindowWords <= len(words); i++ {
			phrases = append(phrases, strings.Join(words[i:i+phraseWindowWords], " "))
			if len(phrases) >= maxPhrasesPerSource {
				return phrases
			}
		}
	}

	if len(phrases) > maxPhrasesPerSource {
		phrases = phrases[:maxPhrasesPerSource]
	}
	return phrases
}
