package net_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	pnet "eventsink/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	base := context.Background()
	if got := pnet.RequestID(pnet.WithRequest(base, "req-123")); got != "req-123" {
		t.Fatalf("RequestID = %q", got)
	}
	if ctx := pnet.WithRequest(base, ""); ctx != base || pnet.RequestID(ctx) != "" {
		t.Fatalf("empty id changed ctx")
	}
}

func TestRequestID_FromChiMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	h := chimw.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = pnet.RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/batch", nil)
	req.Header.Set(chimw.RequestIDHeader, "client-7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "client-7" {
		t.Fatalf("id = %q", seen)
	}
}
