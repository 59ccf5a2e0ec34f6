// Package net carries per-request values through a context
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type actorKey struct{}

// WithRequest stores the request id where chi's GetReqID finds it, plus the acting operator
func WithRequest(ctx context.Context, reqID, actor string) context.Context {
	if reqID != "" {
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if actor != "" {
		ctx = context.WithValue(ctx, actorKey{}, actor)
	}
	return ctx
}

// RequestID is the request id on ctx, or ""
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// Actor is the operator label on ctx, or ""
func Actor(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}
