// Package net carries per-request values shared by the HTTP layers
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// WithRequest stores id under chi's request id key, so RequestID and
// chimw.GetReqID agree. An empty id leaves ctx untouched
func WithRequest(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }
