package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFailWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FailWithDetails(rec, http.StatusConflict, "duplicate_slip", "exists", map[string]string{"slipId": "s1"}, "req-1")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var env struct {
		Success   bool   `json:"success"`
		RequestID string `json:"requestId"`
		Error     struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error.Code != "duplicate_slip" || env.Error.Details["slipId"] != "s1" || env.RequestID != "req-1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestPageIncludesMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	Page(rec, []string{"a"}, Meta{Total: 7, Limit: 1, Offset: 2}, "")

	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Meta == nil || env.Meta.Total != 7 || env.Meta.Offset != 2 {
		t.Fatalf("unexpected meta %+v", env.Meta)
	}
}
