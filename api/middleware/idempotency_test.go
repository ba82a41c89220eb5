package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("pdgn:idempotency:%s:%s", scope, id)
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func newIdempotencyRouter(store *memoryStore, hits *int) http.Handler {
	r := chi.NewRouter()
	r.Use(Idempotency(store, nil))
	r.Post("/api/v1/payments/intent", func(w http.ResponseWriter, req *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"success":true,"data":{"attempt":%d}}`, *hits)
	})
	r.Post("/api/v1/payments/other", func(w http.ResponseWriter, req *http.Request) {
		*hits++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	body := `{"model_id":"m1","amount":"10.00"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, first)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec1.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, second)

	if hits != 1 {
		t.Fatalf("expected handler to run once, ran %d times", hits)
	}
	if rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("replayed body mismatch: %q vs %q", rec2.Body.String(), rec1.Body.String())
	}
	if ct := rec2.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected replayed content type, got %q", ct)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{"amount":"10.00"}`))
	first.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{"amount":"99.00"}`))
	second.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, second)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d (%s)", rec.Code, rec.Body.String())
	}
	if hits != 1 {
		t.Fatalf("expected handler to run once, ran %d times", hits)
	}
}

func TestIdempotencyRequiresKeyOnGuardedRoutes(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if hits != 0 {
		t.Fatalf("handler should not run without a key")
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	hits := 0
	router := newIdempotencyRouter(newMemoryStore(), &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/other", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if hits != 1 {
		t.Fatalf("expected handler to run, ran %d times", hits)
	}
}
