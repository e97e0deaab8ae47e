// Package responder handles one customer message end to end: validate
// it, run the response pipeline, persist both turns, log analytics, and
// trigger escalation. It is the only caller of the pipeline and the
// layer that guarantees a well-formed answer even when the pipeline
// crashes.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/novatech/supportiq/internal/rag"
	"github.com/novatech/supportiq/internal/support"
)

// ErrEmptyMessage indicates the customer message had no content.
var ErrEmptyMessage = errors.New("message cannot be empty")

// pipelineFailureResponse is shown when the pipeline itself crashes,
// as opposed to a clean generation failure. User-facing string; keep
// verbatim.
const pipelineFailureResponse = "I'm sorry, I encountered an error while processing your question. " +
	"Please try again or ask to speak with a human agent."

const autoEscalationReason = "Auto-escalated: low confidence response"

// Pipeline is the slice of the response pipeline the responder
// consumes.
type Pipeline interface {
	Process(ctx context.Context, query string) *rag.Envelope
}

// Store is the persistence surface the responder needs.
type Store interface {
	AppendCustomerMessage(ctx context.Context, conversationID uuid.UUID, content string) (support.Message, error)
	AppendAssistantMessage(ctx context.Context, conversationID uuid.UUID, content string, metadata *support.MessageMetadata) (support.Message, error)
	Escalate(ctx context.Context, conversationID uuid.UUID, reason string, confidenceScore float64) (support.Ticket, error)
	LogQuery(ctx context.Context, entry support.QueryLog) error
}

// Responder ties the pipeline to persistence and escalation.
type Responder struct {
	pipeline Pipeline
	store    Store
	logger   *slog.Logger
}

// New creates a Responder.
func New(pipeline Pipeline, store Store, logger *slog.Logger) *Responder {
	return &Responder{
		pipeline: pipeline,
		store:    store,
		logger:   logger,
	}
}

// Reply is the responder's output: the stored assistant message plus
// the full envelope for the API response.
type Reply struct {
	Message  support.Message
	Envelope *rag.Envelope
}

// Respond processes one customer message in a conversation.
//
// The pipeline runs under panic recovery: a crash anywhere inside it
// yields a complete degraded envelope (apology text, zero confidence,
// auto-escalate) so persistence and escalation never see a partial
// result. Analytics and escalation failures are logged and swallowed;
// delivering the answer outranks the bookkeeping.
func (r *Responder) Respond(ctx context.Context, conversationID uuid.UUID, content string) (*Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	if _, err := r.store.AppendCustomerMessage(ctx, conversationID, content); err != nil {
		return nil, fmt.Errorf("storing customer message: %w", err)
	}

	envelope := r.safeProcess(ctx, conversationID, content)

	metadata := &support.MessageMetadata{
		Sources:    envelope.Sources,
		Confidence: envelope.Confidence,
		Evidence:   envelope.Evidence,
		Highlights: envelope.Highlights,
	}
	msg, err := r.store.AppendAssistantMessage(ctx, conversationID, envelope.Response, metadata)
	if err != nil {
		return nil, fmt.Errorf("storing assistant message: %w", err)
	}

	r.logQuery(ctx, conversationID, content, envelope)

	if envelope.Confidence.EscalationAction == rag.ActionAuto {
		if _, err := r.store.Escalate(ctx, conversationID, autoEscalationReason, envelope.Confidence.ConfidenceScore); err != nil {
			r.logger.Error("auto-escalation failed",
				"conversation_id", conversationID,
				"error", err)
		} else {
			r.logger.Info("auto-escalated conversation",
				"conversation_id", conversationID,
				"confidence", envelope.Confidence.ConfidenceScore)
		}
	}

	return &Reply{Message: msg, Envelope: envelope}, nil
}

// safeProcess runs the pipeline and converts a panic into a complete
// degraded envelope.
func (r *Responder) safeProcess(ctx context.Context, conversationID uuid.UUID, content string) (envelope *rag.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("pipeline crashed",
				"conversation_id", conversationID,
				"panic", rec)
			envelope = degradedEnvelope()
		}
	}()

	envelope = r.pipeline.Process(ctx, content)
	if envelope == nil {
		envelope = degradedEnvelope()
	}
	return envelope
}

func degradedEnvelope() *rag.Envelope {
	return &rag.Envelope{
		Response: pipelineFailureResponse,
		Sources:  []rag.SourceReference{},
		Confidence: rag.ConfidenceResult{
			ConfidenceScore:       0.0,
			HasSufficientEvidence: false,
			EscalationAction:      rag.ActionAuto,
		},
		Evidence: rag.EvidenceAssessment{
			HasSufficientEvidence: false,
			EvidenceQuality:       rag.EvidenceNone,
			Disclaimer:            "An error occurred.",
		},
		Highlights:        []rag.HighlightMapping{},
		TotalSourcesFound: 0,
		ResponseTimeMs:    0,
	}
}

func (r *Responder) logQuery(ctx context.Context, conversationID uuid.UUID, query string, envelope *rag.Envelope) {
	entry := support.QueryLog{
		ConversationID:        conversationID,
		QueryText:             query,
		ResponseText:          envelope.Response,
		ConfidenceScore:       envelope.Confidence.ConfidenceScore,
		HasSufficientEvidence: envelope.Confidence.HasSufficientEvidence,
		SourcesCount:          len(envelope.Sources),
		Escalated:             envelope.Confidence.EscalationAction == rag.ActionAuto,
		ResponseTimeMs:        envelope.ResponseTimeMs,
	}
	if len(envelope.Sources) > 0 {
		entry.PrimarySourceScore = envelope.Sources[0].Score
	}
	if entry.Escalated {
		entry.EscalationReason = "Low confidence (auto-escalate)"
	}

	if err := r.store.LogQuery(ctx, entry); err != nil {
		r.logger.Error("query log write failed",
			"conversation_id", conversationID,
			"error", err)
	}
}
