package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewareThreadsContext(t *testing.T) {
	var seen string
	handler := RequestLoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/boost", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Error("handler saw no request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("X-Request-ID header = %q, context ID = %q", got, seen)
	}
}

func TestLoggerFromContext(t *testing.T) {
	// Without a request ID the default logger comes back unchanged
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Error("bare context should yield the default logger")
	}

	ctx := context.WithValue(context.Background(), requestIDKey, "abc123")
	if LoggerFromContext(ctx) == slog.Default() {
		t.Error("request-scoped logger should carry the request ID")
	}
}
