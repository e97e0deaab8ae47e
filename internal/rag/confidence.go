package rag

// Scorer turns a ranked hit list into a confidence score and an
// escalation action. Thresholds come from configuration so policy can
// be tuned without a rebuild.
type Scorer struct {
	autoEscalateThreshold    float64
	offerEscalationThreshold float64
}

// NewScorer creates a Scorer with the given confidence buckets.
// autoEscalate must not exceed offerEscalation; config validation
// enforces this before the scorer is ever constructed.
func NewScorer(autoEscalate, offerEscalation float64) *Scorer {
	return &Scorer{
		autoEscalateThreshold:    autoEscalate,
		offerEscalationThreshold: offerEscalation,
	}
}

// Score computes a rank-weighted average of the hit similarity scores.
// The hit at rank i (0-indexed) carries weight 1/(i+1): the top hit
// dominates the estimate since it is most likely the answer's primary
// source, while lower hits still nudge it when they corroborate.
//
// An empty hit list is the degenerate no-evidence case and returns
// {0.0, false, auto} without any arithmetic.
//
// Bucket boundaries are half-open on the lower edge: confidence < auto
// threshold escalates automatically, < offer threshold offers, and
// everything at or above the offer threshold delivers as-is. Boundary
// values belong to the upper bucket.
func (s *Scorer) Score(hits []RetrievalHit) ConfidenceResult {
	if len(hits) == 0 {
		return ConfidenceResult{
			ConfidenceScore:       0.0,
			HasSufficientEvidence: false,
			EscalationAction:      ActionAuto,
		}
	}

	var weightedSum, totalWeight float64
	for i, hit := range hits {
		weight := 1.0 / float64(i+1)
		weightedSum += hit.Score * weight
		totalWeight += weight
	}

	confidence := weightedSum / totalWeight
	confidence = max(0.0, min(1.0, confidence))

	var action EscalationAction
	var sufficient bool
	switch {
	case confidence < s.autoEscalateThreshold:
		action = ActionAuto
		sufficient = false
	case confidence < s.offerEscalationThreshold:
		action = ActionOffer
		sufficient = true
	default:
		action = ActionNone
		sufficient = true
	}

	return ConfidenceResult{
		ConfidenceScore:       round4(confidence),
		HasSufficientEvidence: sufficient,
		EscalationAction:      action,
	}
}
