package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func placeRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"place order", http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{"capacity update", http.MethodPut, "/api/admin/v1/capacity/{date}", defaultIdempotencyTTL, true},
		{"order read", http.MethodGet, "/api/v1/orders/{orderId}", 0, false},
		{"estimate", http.MethodPost, "/api/v1/cart/validate", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, placeRequest("", `{"foo":"bar"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"foo":"bar"}` {
			t.Fatalf("handler saw body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, placeRequest("abc", `{"foo":"bar"}`))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, placeRequest("abc", `{"foo":"bar"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), placeRequest("xyz", `{"foo":"bar"}`))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, placeRequest("xyz", `{"foo":"diff"}`))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyMiddlewareRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a duplicate arriving while the first request is still running
		inner = httptest.NewRecorder()
		mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatalf("duplicate must not reach the handler")
		})).ServeHTTP(inner, placeRequest("dup", `{"foo":"bar"}`))
		w.WriteHeader(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, placeRequest("dup", `{"foo":"bar"}`))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate 409 got %d", inner.Code)
	}
	if code := errorCode(t, inner); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, placeRequest("retry", `{"foo":"bar"}`))
	if first.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	mw(handler).ServeHTTP(second, placeRequest("retry", `{"foo":"bar"}`))
	if second.Code != http.StatusCreated {
		t.Fatalf("expected retried request to run again, got %d", second.Code)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls got %d", calls)
	}
}

func TestIdempotencyMiddlewareIgnoresOtherRoutes(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/cart/validate", "/api/v1/cart/validate", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if !called || resp.Code != http.StatusOK {
		t.Fatalf("expected passthrough, got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareReplaysLocationHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/v1/orders/42")
		w.Header().Set("X-Debug", "not stored")
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), placeRequest("loc", `{}`))
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, placeRequest("loc", `{}`))

	if got := rec.Header().Get("Location"); got != "/api/v1/orders/42" {
		t.Fatalf("expected Location replayed, got %q", got)
	}
	if rec.Header().Get("X-Debug") != "" {
		t.Fatalf("only allowlisted headers are replayed")
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	})
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, placeRequest(strings.Repeat("k", maxIdempotencyKey+1), `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	func() {
		defer func() { _ = recover() }()
		mw(handler).ServeHTTP(httptest.NewRecorder(), placeRequest("panic", `{}`))
	}()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.data) != 0 {
		t.Fatalf("expected key released after panic, got %v", store.data)
	}
}
