package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hrpay/internal/platform/metrics"
)

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Fatal("expected request id in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Fatalf("expected client id to be kept, got %q", got)
	}
}

func TestLoggerRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	collector := metrics.New()
	handler := RequestID(Logger(slog.New(slog.NewTextHandler(&buf, nil)), collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/payroll/slips", nil))

	if !strings.Contains(buf.String(), "status=418") || !strings.Contains(buf.String(), "path=/api/v1/payroll/slips") {
		t.Fatalf("unexpected log line %q", buf.String())
	}
	snap := collector.Snapshot()
	if snap["requestsTotal"] != uint64(1) || snap["clientErrorsTotal"] != uint64(1) {
		t.Fatalf("unexpected metrics %v", snap)
	}
}

func TestBodyLimit(t *testing.T) {
	reached := false
	handler := BodyLimit(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		buf := make([]byte, 16)
		_, err := r.Body.Read(buf)
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			t.Fatalf("expected MaxBytesError, got %v", err)
		}
	}))

	declared := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, declared)
	if rec.Code != http.StatusRequestEntityTooLarge || reached {
		t.Fatalf("expected early 413, got %d (handler reached=%v)", rec.Code, reached)
	}

	streamed := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	streamed.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), streamed)
	if !reached {
		t.Fatal("expected streamed body to reach the handler")
	}
}

func TestSecureHeaders(t *testing.T) {
	handler := SecureHeaders(true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payroll/slips", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS in production")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected payroll responses to be uncacheable")
	}

	rec = httptest.NewRecorder()
	SecureHeaders(false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("Cache-Control") != "" || rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected headers outside the api %v", rec.Header())
	}
}

func TestRequestHashDeterministic(t *testing.T) {
	if RequestHash([]byte("payload")) != RequestHash([]byte("payload")) {
		t.Fatal("expected deterministic hash")
	}
	if RequestHash([]byte("payload")) == RequestHash([]byte("other")) {
		t.Fatal("expected different hash for different payload")
	}
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()
	hash := RequestHash([]byte(`{"period":"2024-03"}`))

	if _, found, err := store.Check(ctx, "payroll.run", "k1", hash); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if _, err := store.Save(ctx, "payroll.run", "k1", hash, StoredResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	stored, found, err := store.Check(ctx, "payroll.run", "k1", hash)
	if err != nil || !found || stored.StatusCode != 200 || string(stored.Body) != `{"ok":true}` {
		t.Fatalf("unexpected replay %+v found=%v err=%v", stored, found, err)
	}
	if _, _, err := store.Check(ctx, "payroll.run", "k1", RequestHash([]byte("other"))); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, found, _ := store.Check(ctx, "payroll.slip", "k1", hash); found {
		t.Fatalf("keys must be scoped by endpoint")
	}
}

func TestMemoryIdempotencyStoreKeepsFirstResponse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()
	hash := RequestHash([]byte(`{"period":"2024-03","employeeIds":[1,2,3]}`))

	first, err := store.Save(ctx, "payroll.run", "k1", hash, StoredResponse{StatusCode: 200, Body: []byte(`{"succeeded":3}`)})
	if err != nil || string(first.Body) != `{"succeeded":3}` {
		t.Fatalf("first Save: %+v err=%v", first, err)
	}
	kept, err := store.Save(ctx, "payroll.run", "k1", hash, StoredResponse{StatusCode: 200, Body: []byte(`{"succeeded":0,"failed":3}`)})
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if string(kept.Body) != `{"succeeded":3}` {
		t.Fatalf("expected the first response to be kept, got %s", kept.Body)
	}
	stored, found, err := store.Check(ctx, "payroll.run", "k1", hash)
	if err != nil || !found || string(stored.Body) != `{"succeeded":3}` {
		t.Fatalf("replay changed: %s found=%v err=%v", stored.Body, found, err)
	}
	if _, err := store.Save(ctx, "payroll.run", "k1", RequestHash([]byte("other")), StoredResponse{StatusCode: 200}); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
