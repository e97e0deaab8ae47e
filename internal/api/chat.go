package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/novatech/supportiq/internal/rag"
	"github.com/novatech/supportiq/internal/responder"
	"github.com/novatech/supportiq/internal/support"
)

// maxRequestBody caps JSON request bodies at 1MB.
const maxRequestBody = 1024 * 1024

// ConversationStore is the slice of the support store the handlers use.
type ConversationStore interface {
	StartConversation(ctx context.Context, title string) (support.Conversation, error)
	Conversation(ctx context.Context, id uuid.UUID) (support.Conversation, error)
	Conversations(ctx context.Context) ([]support.ConversationSummary, error)
	Messages(ctx context.Context, conversationID uuid.UUID) ([]support.Message, error)
}

// Responder answers one customer message.
type Responder interface {
	Respond(ctx context.Context, conversationID uuid.UUID, content string) (*responder.Reply, error)
}

// chatHandler serves the conversation and message endpoints.
type chatHandler struct {
	store     ConversationStore
	responder Responder
	logger    *slog.Logger
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// messageResponse is the answer envelope returned from POST messages.
type messageResponse struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	*rag.Envelope
}

// createConversation handles POST /api/v1/conversations.
func (h *chatHandler) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	conv, err := h.store.StartConversation(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create conversation", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// listConversations handles GET /api/v1/conversations.
func (h *chatHandler) listConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.Conversations(r.Context())
	if err != nil {
		h.logger.Error("listing conversations", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations", h.logger)
		return
	}
	if summaries == nil {
		summaries = []support.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

// getConversation handles GET /api/v1/conversations/{id}.
func (h *chatHandler) getConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.store.Conversation(r.Context(), id)
	if errors.Is(err, support.ErrConversationNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("fetching conversation", "conversation_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to fetch conversation", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// listMessages handles GET /api/v1/conversations/{id}/messages.
func (h *chatHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := h.store.Messages(r.Context(), id)
	if errors.Is(err, support.ErrConversationNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("listing messages", "conversation_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list messages", h.logger)
		return
	}
	if messages == nil {
		messages = []support.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// sendMessage handles POST /api/v1/conversations/{id}/messages.
// The response carries the stored assistant message plus the full
// answer envelope: sources, confidence, evidence, and highlights.
func (h *chatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	var req sendMessageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	reply, err := h.responder.Respond(r.Context(), id, req.Content)
	switch {
	case errors.Is(err, responder.ErrEmptyMessage):
		WriteError(w, http.StatusBadRequest, "empty_message", "message cannot be empty", h.logger)
		return
	case errors.Is(err, support.ErrConversationNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	case errors.Is(err, support.ErrConversationClosed):
		WriteError(w, http.StatusBadRequest, "conversation_closed", "conversation no longer accepts messages", h.logger)
		return
	case err != nil:
		h.logger.Error("answering message", "conversation_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "respond_failed", "failed to process message", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		MessageID:      reply.Message.ID,
		ConversationID: id,
		Envelope:       reply.Envelope,
	})
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid conversation ID", logger)
		return uuid.Nil, false
	}
	return id, true
}
