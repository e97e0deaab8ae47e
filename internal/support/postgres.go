package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQuerier implements Querier over a pgx connection pool.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier wraps a pool for support queries.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

func (q *PostgresQuerier) InsertConversation(ctx context.Context, conv Conversation) error {
	const query = `
		INSERT INTO conversations (id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := q.pool.Exec(ctx, query, conv.ID, conv.Title, conv.Status, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	const query = `
		SELECT id, title, status, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	var conv Conversation
	err := q.pool.QueryRow(ctx, query, id).Scan(&conv.ID, &conv.Title, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

func (q *PostgresQuerier) ListConversationSummaries(ctx context.Context) ([]ConversationSummary, error) {
	const query = `
		SELECT c.id, c.title, c.status, c.created_at, c.updated_at,
		       COALESCE(last_msg.content, '') AS last_message,
		       COALESCE(counts.n, 0) AS message_count
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT content FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) last_msg ON true
		LEFT JOIN LATERAL (
			SELECT count(*) AS n FROM messages WHERE conversation_id = c.id
		) counts ON true
		ORDER BY c.created_at DESC`

	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConversationSummary, error) {
		var s ConversationSummary
		err := row.Scan(&s.ID, &s.Title, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.LastMessage, &s.MessageCount)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning conversations: %w", err)
	}
	return summaries, nil
}

func (q *PostgresQuerier) UpdateConversationStatus(ctx context.Context, id uuid.UUID, status ConversationStatus, updatedAt time.Time) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("updating conversation status: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string, updatedAt time.Time) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = $3 WHERE id = $1`,
		id, title, updatedAt)
	if err != nil {
		return fmt.Errorf("updating conversation title: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) InsertMessage(ctx context.Context, msg Message) error {
	var metadata []byte
	if msg.Metadata != nil {
		var err error
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("encoding message metadata: %w", err)
		}
	}

	const query = `
		INSERT INTO messages (id, conversation_id, sender_role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := q.pool.Exec(ctx, query, msg.ID, msg.ConversationID, msg.SenderRole, msg.Content, metadata, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	const query = `
		SELECT id, conversation_id, sender_role, content, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := q.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var msg Message
		var metadata []byte
		if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderRole, &msg.Content, &metadata, &msg.CreatedAt); err != nil {
			return Message{}, err
		}
		if len(metadata) > 0 {
			msg.Metadata = &MessageMetadata{}
			if err := json.Unmarshal(metadata, msg.Metadata); err != nil {
				// A malformed metadata blob must not hide the message.
				msg.Metadata = nil
			}
		}
		return msg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}
	return messages, nil
}

func (q *PostgresQuerier) FindOpenTicket(ctx context.Context, conversationID uuid.UUID) (*Ticket, error) {
	const query = `
		SELECT id, conversation_id, reason, confidence_score, priority, status, created_at, resolved_at
		FROM tickets
		WHERE conversation_id = $1 AND status IN ('open', 'in_progress')
		ORDER BY created_at ASC
		LIMIT 1`

	var t Ticket
	err := q.pool.QueryRow(ctx, query, conversationID).Scan(
		&t.ID, &t.ConversationID, &t.Reason, &t.ConfidenceScore, &t.Priority, &t.Status, &t.CreatedAt, &t.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying open ticket: %w", err)
	}
	return &t, nil
}

func (q *PostgresQuerier) InsertTicket(ctx context.Context, ticket Ticket) error {
	const query = `
		INSERT INTO tickets (id, conversation_id, reason, confidence_score, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.pool.Exec(ctx, query,
		ticket.ID, ticket.ConversationID, ticket.Reason, ticket.ConfidenceScore, ticket.Priority, ticket.Status, ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting ticket: %w", err)
	}
	return nil
}

func (q *PostgresQuerier) InsertQueryLog(ctx context.Context, entry QueryLog) error {
	const query = `
		INSERT INTO query_logs (
			id, conversation_id, query_text, response_text,
			confidence_score, has_sufficient_evidence, sources_count, primary_source_score,
			escalated, escalation_reason, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := q.pool.Exec(ctx, query,
		entry.ID, entry.ConversationID, entry.QueryText, entry.ResponseText,
		entry.ConfidenceScore, entry.HasSufficientEvidence, entry.SourcesCount, entry.PrimarySourceScore,
		entry.Escalated, entry.EscalationReason, entry.ResponseTimeMs, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting query log: %w", err)
	}
	return nil
}
