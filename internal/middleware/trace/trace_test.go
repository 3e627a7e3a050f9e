package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	klog "kakeibo/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(klog.NewText(&buf, slog.LevelInfo, klog.ComponentHTTP), func(*http.Request) string { return "10.0.0.1" })

	var seen string
	var ctxLogger *klog.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = klog.FromContext(r.Context())
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/records", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("request id not echoed: %q", rec.Header().Get(HeaderRequestID))
	}
	if ctxLogger.Component() != klog.ComponentTrace {
		t.Errorf("expected request logger in context, got component %q", ctxLogger.Component())
	}
	out := buf.String()
	if !strings.Contains(out, "status_code=422") || !strings.Contains(out, "level=WARN") {
		t.Errorf("completion log missing status or level: %s", out)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("expected 1 request counted")
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(klog.NewText(&bytes.Buffer{}, slog.LevelInfo, klog.ComponentHTTP), nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "abc123" {
		t.Errorf("expected incoming id to be kept, got %q", seen)
	}
}
