package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/novatech/supportiq/internal/log"
	"github.com/novatech/supportiq/internal/rag"
	"github.com/novatech/supportiq/internal/responder"
	"github.com/novatech/supportiq/internal/support"
)

// mockConversationStore implements ConversationStore for testing
type mockConversationStore struct {
	conversations map[uuid.UUID]support.Conversation
	summaries     []support.ConversationSummary
	messages      []support.Message

	startErr error
	listErr  error
}

func newMockConversationStore() *mockConversationStore {
	return &mockConversationStore{conversations: make(map[uuid.UUID]support.Conversation)}
}

func (m *mockConversationStore) StartConversation(_ context.Context, title string) (support.Conversation, error) {
	if m.startErr != nil {
		return support.Conversation{}, m.startErr
	}
	conv := support.Conversation{ID: uuid.New(), Title: title, Status: support.ConversationActive}
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *mockConversationStore) Conversation(_ context.Context, id uuid.UUID) (support.Conversation, error) {
	conv, ok := m.conversations[id]
	if !ok {
		return support.Conversation{}, support.ErrConversationNotFound
	}
	return conv, nil
}

func (m *mockConversationStore) Conversations(_ context.Context) ([]support.ConversationSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.summaries, nil
}

func (m *mockConversationStore) Messages(_ context.Context, conversationID uuid.UUID) ([]support.Message, error) {
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, support.ErrConversationNotFound
	}
	return m.messages, nil
}

// mockResponder implements Responder for testing
type mockResponder struct {
	reply *responder.Reply
	err   error
}

func (m *mockResponder) Respond(_ context.Context, conversationID uuid.UUID, content string) (*responder.Reply, error) {
	if m.err != nil {
		return nil, m.err
	}
	if strings.TrimSpace(content) == "" {
		return nil, responder.ErrEmptyMessage
	}
	return m.reply, nil
}

func testReply() *responder.Reply {
	return &responder.Reply{
		Message: support.Message{ID: uuid.New(), SenderRole: support.RoleAssistant, Content: "Answer."},
		Envelope: &rag.Envelope{
			Response: "Answer.",
			Sources:  []rag.SourceReference{{Title: "Guide", Score: 0.8, Rank: 1, IsPrimary: true}},
			Confidence: rag.ConfidenceResult{
				ConfidenceScore:       0.8,
				HasSufficientEvidence: true,
				EscalationAction:      rag.ActionNone,
			},
			Evidence: rag.EvidenceAssessment{
				HasSufficientEvidence: true,
				EvidenceQuality:       rag.EvidenceStrong,
			},
			Highlights:        []rag.HighlightMapping{},
			TotalSourcesFound: 1,
			ResponseTimeMs:    12,
		},
	}
}

func newTestServer(t *testing.T, store ConversationStore, res Responder) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Store:     store,
		Responder: res,
		IsDev:     true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv.Handler()
}

// ============================================================================
// Conversations
// ============================================================================

func TestCreateConversation(t *testing.T) {
	store := newMockConversationStore()
	handler := newTestServer(t, store, &mockResponder{reply: testReply()})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"title":"Billing"}`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var conv support.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if conv.Title != "Billing" || conv.Status != support.ConversationActive {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestCreateConversationBadBody(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{broken`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListConversationsEmpty(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Conversations []support.ConversationSummary `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Conversations == nil {
		t.Error("conversations should encode as [], not null")
	}
}

func TestGetConversationNotFound(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+uuid.NewString(), nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetConversationInvalidID(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/not-a-uuid", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if errResp.Error != "invalid_id" {
		t.Errorf("error code = %q, want invalid_id", errResp.Error)
	}
}

// ============================================================================
// Messages
// ============================================================================

func TestSendMessageReturnsEnvelope(t *testing.T) {
	store := newMockConversationStore()
	conv, _ := store.StartConversation(context.Background(), "t")
	handler := newTestServer(t, store, &mockResponder{reply: testReply()})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost,
		"/api/v1/conversations/"+conv.ID.String()+"/messages",
		strings.NewReader(`{"content":"what is the return policy?"}`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	for _, field := range []string{
		"message_id", "conversation_id", "response", "sources",
		"confidence", "evidence", "highlights", "total_sources_found", "response_time_ms",
	} {
		if _, ok := body[field]; !ok {
			t.Errorf("response missing field %q", field)
		}
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	store := newMockConversationStore()
	conv, _ := store.StartConversation(context.Background(), "t")
	handler := newTestServer(t, store, &mockResponder{reply: testReply()})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost,
		"/api/v1/conversations/"+conv.ID.String()+"/messages",
		strings.NewReader(`{"content":"   "}`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(),
		&mockResponder{err: support.ErrConversationNotFound})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost,
		"/api/v1/conversations/"+uuid.NewString()+"/messages",
		strings.NewReader(`{"content":"hello"}`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSendMessageClosedConversation(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(),
		&mockResponder{err: support.ErrConversationClosed})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost,
		"/api/v1/conversations/"+uuid.NewString()+"/messages",
		strings.NewReader(`{"content":"hello"}`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if errResp.Error != "conversation_closed" {
		t.Errorf("error code = %q, want conversation_closed", errResp.Error)
	}
}

func TestSendMessageResponderFailure(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(),
		&mockResponder{err: errors.New("db down")})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost,
		"/api/v1/conversations/"+uuid.NewString()+"/messages",
		strings.NewReader(`{"content":"hello"}`))
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestListMessagesNotFound(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+uuid.NewString()+"/messages", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
