package support

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// titlePreviewLen caps the auto-generated conversation title taken from
// the first customer message.
const titlePreviewLen = 80

// Querier defines the database operations the store needs. Interfaces
// are defined by the consumer; the pgx-backed implementation lives in
// postgres.go and tests supply mocks.
type Querier interface {
	InsertConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListConversationSummaries(ctx context.Context) ([]ConversationSummary, error)
	UpdateConversationStatus(ctx context.Context, id uuid.UUID, status ConversationStatus, updatedAt time.Time) error
	UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string, updatedAt time.Time) error

	InsertMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)

	// FindOpenTicket returns the open or in-progress ticket for a
	// conversation, or nil when there is none.
	FindOpenTicket(ctx context.Context, conversationID uuid.UUID) (*Ticket, error)
	InsertTicket(ctx context.Context, ticket Ticket) error

	InsertQueryLog(ctx context.Context, entry QueryLog) error
}

// Store implements conversation, ticket, and analytics persistence on
// top of a Querier.
type Store struct {
	querier Querier
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Store.
func New(querier Querier, logger *slog.Logger) *Store {
	return &Store{
		querier: querier,
		logger:  logger,
		now:     time.Now,
	}
}

// StartConversation creates an active conversation. The title may be
// empty; it is then filled from the first customer message.
func (s *Store) StartConversation(ctx context.Context, title string) (Conversation, error) {
	now := s.now()
	conv := Conversation{
		ID:        uuid.New(),
		Title:     title,
		Status:    ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.querier.InsertConversation(ctx, conv); err != nil {
		return Conversation{}, fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Conversation fetches one conversation by ID.
func (s *Store) Conversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	return s.querier.GetConversation(ctx, id)
}

// Conversations lists all conversations with their previews, newest
// first.
func (s *Store) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	return s.querier.ListConversationSummaries(ctx)
}

// AppendCustomerMessage stores a customer turn. The first message of an
// untitled conversation also becomes its title, truncated for display.
// Closed conversations reject new messages.
func (s *Store) AppendCustomerMessage(ctx context.Context, conversationID uuid.UUID, content string) (Message, error) {
	conv, err := s.querier.GetConversation(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	if conv.Status == ConversationClosed {
		return Message{}, ErrConversationClosed
	}

	if conv.Title == "" {
		if err := s.querier.UpdateConversationTitle(ctx, conversationID, titlePreview(content), s.now()); err != nil {
			return Message{}, fmt.Errorf("setting conversation title: %w", err)
		}
	}

	msg := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderRole:     RoleCustomer,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.querier.InsertMessage(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("storing customer message: %w", err)
	}
	return msg, nil
}

// AppendAssistantMessage stores a pipeline answer together with its
// annotations.
func (s *Store) AppendAssistantMessage(ctx context.Context, conversationID uuid.UUID, content string, metadata *MessageMetadata) (Message, error) {
	msg := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderRole:     RoleAssistant,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      s.now(),
	}
	if err := s.querier.InsertMessage(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("storing assistant message: %w", err)
	}
	return msg, nil
}

// Messages lists a conversation's messages oldest first.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	if _, err := s.querier.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.querier.ListMessages(ctx, conversationID)
}

// Escalate creates an escalation ticket for a conversation. Idempotent
// per open conversation: if an open or in-progress ticket already
// exists it is returned unchanged, so repeated auto-escalations never
// pile up duplicates. An active conversation moves to escalated.
func (s *Store) Escalate(ctx context.Context, conversationID uuid.UUID, reason string, confidenceScore float64) (Ticket, error) {
	existing, err := s.querier.FindOpenTicket(ctx, conversationID)
	if err != nil {
		return Ticket{}, fmt.Errorf("checking for existing ticket: %w", err)
	}
	if existing != nil {
		s.logger.Info("ticket already open for conversation",
			"conversation_id", conversationID,
			"ticket_id", existing.ID)
		return *existing, nil
	}

	ticket := Ticket{
		ID:              uuid.New(),
		ConversationID:  conversationID,
		Reason:          reason,
		ConfidenceScore: confidenceScore,
		Priority:        priorityFromConfidence(confidenceScore),
		Status:          TicketOpen,
		CreatedAt:       s.now(),
	}
	if err := s.querier.InsertTicket(ctx, ticket); err != nil {
		return Ticket{}, fmt.Errorf("creating ticket: %w", err)
	}

	conv, err := s.querier.GetConversation(ctx, conversationID)
	if err == nil && conv.Status == ConversationActive {
		if err := s.querier.UpdateConversationStatus(ctx, conversationID, ConversationEscalated, s.now()); err != nil {
			s.logger.Warn("failed to mark conversation escalated",
				"conversation_id", conversationID,
				"error", err)
		}
	}

	s.logger.Info("escalation ticket created",
		"ticket_id", ticket.ID,
		"conversation_id", conversationID,
		"priority", ticket.Priority,
		"confidence", confidenceScore)
	return ticket, nil
}

// LogQuery records one analytics row. Failures here are the caller's
// to swallow; analytics must never block an answer.
func (s *Store) LogQuery(ctx context.Context, entry QueryLog) error {
	entry.ID = uuid.New()
	entry.CreatedAt = s.now()
	if err := s.querier.InsertQueryLog(ctx, entry); err != nil {
		return fmt.Errorf("writing query log: %w", err)
	}
	return nil
}

// priorityFromConfidence maps the answer's confidence to ticket
// urgency.
func priorityFromConfidence(confidenceScore float64) TicketPriority {
	switch {
	case confidenceScore < 0.2:
		return PriorityHigh
	case confidenceScore < 0.4:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// titlePreview truncates message content for use as a conversation
// title.
func titlePreview(content string) string {
	if utf8.RuneCountInString(content) <= titlePreviewLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:titlePreviewLen]) + "…"
}
