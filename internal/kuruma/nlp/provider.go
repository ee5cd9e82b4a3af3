// Package nlp is the client side of the external completion service used
// for free text the rule-based classifier cannot resolve.
//
// Security invariants:
//   - The model only proposes tool calls; it never executes them.
//   - The model sees the tool catalogue, the caller's role and the raw user
//     text. It never sees credentials, tokens or national IDs.
//   - Tool names returned by the model are untrusted and are resolved
//     against the closed Tool set before anything else happens.
package nlp

import (
	"context"
	"errors"
)

// ErrRateLimit is returned when the upstream API reports HTTP 429.
var ErrRateLimit = errors.New("nlp: upstream rate limit exceeded")

// ErrMalformedOutput is returned when the upstream response cannot be
// interpreted as text or a single tool call.
var ErrMalformedOutput = errors.New("nlp: malformed response from LLM")

// CompletionRequest is the input to one completion call.
type CompletionRequest struct {
	// Role is "user" or "admin"; Authenticated is always true in practice
	// because unauthenticated text never reaches the provider.
	Role          string
	Authenticated bool

	// Message is the raw text typed by the user.
	Message string

	// Tools is the catalogue offered to the model.
	Tools Catalogue
}

// ToolCall is a structured function invocation proposed by the model.
// Name is untrusted until ParseTool accepts it.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// Completion is either a plain-text answer or exactly one tool call.
type Completion struct {
	Text     string
	ToolCall *ToolCall
	Usage    *TokenUsage
}

// TokenUsage carries token counts reported by the upstream API.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
	LatencyMS        int64
}

// Provider sends a completion request to a model. Implementations must be
// safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
