package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/novatech/supportiq/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubModel struct{ healthy bool }

func (s stubModel) CheckHealth(context.Context) bool { return s.healthy }

func TestNewServerRequiresStore(t *testing.T) {
	_, err := NewServer(ServerConfig{Responder: &mockResponder{}})
	if err == nil {
		t.Fatal("NewServer(nil store) expected error, got nil")
	}
}

func TestNewServerRequiresResponder(t *testing.T) {
	_, err := NewServer(ServerConfig{Store: newMockConversationStore()})
	if err == nil {
		t.Fatal("NewServer(nil responder) expected error, got nil")
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", w.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		cfg        ServerConfig
		wantStatus int
	}{
		{
			name:       "all dependencies healthy",
			cfg:        ServerConfig{Pool: stubPinger{}, Model: stubModel{healthy: true}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "database down",
			cfg:        ServerConfig{Pool: stubPinger{err: errors.New("refused")}, Model: stubModel{healthy: true}},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "model down",
			cfg:        ServerConfig{Pool: stubPinger{}, Model: stubModel{healthy: false}},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "nothing configured",
			cfg:        ServerConfig{},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Logger = log.NewNop()
			cfg.Store = newMockConversationStore()
			cfg.Responder = &mockResponder{}
			cfg.IsDev = true

			srv, err := NewServer(cfg)
			if err != nil {
				t.Fatalf("NewServer: %v", err)
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/ready", nil)
			srv.Handler().ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("GET /ready status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	// Dev mode must not force HSTS onto plain HTTP.
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q, want unset in dev", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	handler.ServeHTTP(w, r)

	id := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID", id)
	}
}

func TestRequestIDReusesValid(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})
	supplied := uuid.NewString()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("X-Request-ID", supplied)
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got != supplied {
		t.Errorf("X-Request-ID = %q, want supplied %q", got, supplied)
	}
}

func TestRequestIDRejectsInvalid(t *testing.T) {
	handler := newTestServer(t, newMockConversationStore(), &mockResponder{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("X-Request-ID", "<script>alert(1)</script>")
	handler.ServeHTTP(w, r)

	got := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, want replacement UUID", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panicking)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestCORSAllowsKnownOrigin(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Store:       newMockConversationStore(),
		Responder:   &mockResponder{},
		CORSOrigins: []string{"http://localhost:4200"},
		IsDev:       true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/conversations", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	srv.Handler().ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Store:       newMockConversationStore(),
		Responder:   &mockResponder{},
		CORSOrigins: []string{"http://localhost:4200"},
		IsDev:       true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("Origin", "http://evil.example")
	srv.Handler().ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset", got)
	}
}
