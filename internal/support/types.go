// Package support persists the conversational surface around the
// response pipeline: conversations, messages, escalation tickets, and
// the per-query analytics log.
package support

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/novatech/supportiq/internal/rag"
)

var (
	// ErrConversationNotFound indicates an unknown conversation ID.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationClosed indicates the conversation no longer accepts messages.
	ErrConversationClosed = errors.New("conversation is closed")
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationEscalated ConversationStatus = "escalated"
	ConversationClosed    ConversationStatus = "closed"
)

// SenderRole identifies who wrote a message.
type SenderRole string

const (
	RoleCustomer  SenderRole = "customer"
	RoleAssistant SenderRole = "ai"
	RoleAgent     SenderRole = "agent" // human agent replies after a handoff
)

// TicketStatus is the lifecycle state of an escalation ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
)

// TicketPriority is derived from the confidence score at escalation
// time: the less confident the answer, the more urgent the handoff.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

// Conversation is one customer support thread.
type Conversation struct {
	ID        uuid.UUID          `json:"id"`
	Title     string             `json:"title"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ConversationSummary is a conversation with its list-view preview.
type ConversationSummary struct {
	Conversation
	LastMessage  string `json:"last_message,omitempty"`
	MessageCount int    `json:"message_count"`
}

// MessageMetadata carries the pipeline annotations stored with an
// assistant message. Customer messages have none.
type MessageMetadata struct {
	Sources    []rag.SourceReference  `json:"sources"`
	Confidence rag.ConfidenceResult   `json:"confidence"`
	Evidence   rag.EvidenceAssessment `json:"evidence"`
	Highlights []rag.HighlightMapping `json:"highlights"`
}

// Message is one turn in a conversation.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	SenderRole     SenderRole       `json:"sender_role"`
	Content        string           `json:"content"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Ticket is an escalation to a human agent, at most one open per
// conversation.
type Ticket struct {
	ID              uuid.UUID      `json:"id"`
	ConversationID  uuid.UUID      `json:"conversation_id"`
	Reason          string         `json:"reason"`
	ConfidenceScore float64        `json:"confidence_score"`
	Priority        TicketPriority `json:"priority"`
	Status          TicketStatus   `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// QueryLog is one analytics row per pipeline invocation. Kept even
// when its conversation is deleted.
type QueryLog struct {
	ID                    uuid.UUID `json:"id"`
	ConversationID        uuid.UUID `json:"conversation_id"`
	QueryText             string    `json:"query_text"`
	ResponseText          string    `json:"response_text"`
	ConfidenceScore       float64   `json:"confidence_score"`
	HasSufficientEvidence bool      `json:"has_sufficient_evidence"`
	SourcesCount          int       `json:"sources_count"`
	PrimarySourceScore    float64   `json:"primary_source_score"`
	Escalated             bool      `json:"escalated"`
	EscalationReason      string    `json:"escalation_reason,omitempty"`
	ResponseTimeMs        int64     `json:"response_time_ms"`
	CreatedAt             time.Time `json:"created_at"`
}
