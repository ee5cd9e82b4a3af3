package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultNLPBase  = "https://api.openai.com/v1"
	defaultNLPModel = "gpt-4o-mini"
	defaultTimeout  = 15 * time.Second
)

// Config configures the OpenAI-compatible provider.
type Config struct {
	APIKey string

	// BaseURL overrides the API endpoint (Ollama, Azure OpenAI, ...).
	// Defaults to https://api.openai.com/v1.
	BaseURL string

	// Model defaults to gpt-4o-mini.
	Model string

	// Timeout bounds the whole HTTP exchange. Defaults to 15 s.
	Timeout time.Duration
}

type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// New returns a Provider backed by the OpenAI (or compatible) chat API.
func New(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role      string        `json:"role"`
	Content   *string       `json:"content"`
	ToolCalls []oaiToolCall `json:"tool_calls,omitempty"`
}

type oaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaiTool struct {
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type oaiRequest struct {
	Model      string       `json:"model"`
	Messages   []oaiMessage `json:"messages"`
	Tools      []oaiTool    `json:"tools,omitempty"`
	ToolChoice string       `json:"tool_choice,omitempty"`
	MaxTokens  int          `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Model   string      `json:"model"`
	Choices []oaiChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// systemPromptTmpl is filled with the tool catalogue and the caller state.
const systemPromptTmpl = `You are the assistant of a car rental service.

You help customers find cars, manage their bookings and understand the rental
terms. You can answer briefly in plain text or call exactly one of these tools:
%s
Caller: authenticated=%t role=%s

RULES (strict):
1. Call at most one tool per reply.
2. Only use the tool names listed above. Never invent tools.
3. Never ask for or repeat passwords, session tokens or national IDs.
4. Logging in and registering are done by the user directly, never by you.
5. Dates are YYYY-MM-DD.
`

// SystemPrompt renders the system instruction for req.
func SystemPrompt(req CompletionRequest) string {
	role := req.Role
	if role == "" {
		role = "none"
	}
	return fmt.Sprintf(systemPromptTmpl, req.Tools.String(), req.Authenticated, role)
}

func (p *openAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	system := SystemPrompt(req)
	user := req.Message

	tools := make([]oaiTool, 0, len(req.Tools))
	for _, spec := range req.Tools {
		tools = append(tools, oaiTool{
			Type: "function",
			Function: oaiFunction{
				Name:        string(spec.Name),
				Description: spec.Description,
				Parameters:  spec.MarshalParameters(),
			},
		})
	}

	body := oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: &system},
			{Role: "user", Content: &user},
		},
		Tools:     tools,
		MaxTokens: 512,
	}
	if len(tools) > 0 {
		body.ToolChoice = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("nlp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nlp: http request: %w", err)
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimit
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("nlp: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("%w: decode API response: %v", ErrMalformedOutput, err)
	}
	if oaiResp.Error != nil {
		return nil, fmt.Errorf("nlp: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nlp: unexpected HTTP status %d", resp.StatusCode)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedOutput)
	}

	out := &Completion{}
	if oaiResp.Usage != nil {
		out.Usage = &TokenUsage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
			Model:            oaiResp.Model,
			LatencyMS:        latency.Milliseconds(),
		}
	}

	msg := oaiResp.Choices[0].Message
	switch {
	case len(msg.ToolCalls) > 1:
		return nil, fmt.Errorf("%w: %d tool calls returned, expected at most one", ErrMalformedOutput, len(msg.ToolCalls))
	case len(msg.ToolCalls) == 1:
		call := msg.ToolCalls[0]
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: tool arguments: %v (raw: %.200s)", ErrMalformedOutput, err, raw)
			}
		}
		out.ToolCall = &ToolCall{Name: call.Function.Name, Arguments: args}
	case msg.Content != nil && strings.TrimSpace(*msg.Content) != "":
		out.Text = strings.TrimSpace(*msg.Content)
	default:
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}
	return out, nil
}
