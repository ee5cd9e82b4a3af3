// Package trace provides request IDs that tie one handled line of user input
// to every audit entry and log line it produces.
package trace

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
)

type traceKey struct{}

// GenerateID returns a new trace ID ("t_" + 32 hex chars).
func GenerateID() string {
	id := uuid.New()
	return "t_" + hex.EncodeToString(id[:])
}

// WithTraceID returns a child context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// FromContext extracts the trace ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
