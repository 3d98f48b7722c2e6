package apiresp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
	w := httptest.NewRecorder()

	WriteOK(w, req, http.StatusOK, map[string]bool{"healthy": true})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var res Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !res.OK || res.Error != nil {
		t.Fatalf("unexpected envelope: %+v", res)
	}
	if res.Meta.RequestID != "req-1" {
		t.Fatalf("expected request id in meta, got %q", res.Meta.RequestID)
	}
}

func TestWriteErrorCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusBadRequest, "invalid_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusNotFound, "not_found"},
		{http.StatusTooManyRequests, "rate_limited"},
		{http.StatusBadGateway, "gateway_error"},
		{http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		WriteError(w, req, tc.status, "")

		var res Envelope
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if res.OK || res.Error == nil {
			t.Fatalf("expected error envelope for %d, got %+v", tc.status, res)
		}
		if res.Error.Code != tc.wantCode {
			t.Fatalf("status %d: expected code %q, got %q", tc.status, tc.wantCode, res.Error.Code)
		}
		if res.Error.Message != http.StatusText(tc.status) {
			t.Fatalf("empty message must default to status text, got %q", res.Error.Message)
		}
	}
}
