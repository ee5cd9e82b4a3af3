package commands

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/bdobrica/Kuruma/common/trace"
	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/nlp"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
)

// DefaultFallbackTimeout bounds one completion call.
const DefaultFallbackTimeout = 15 * time.Second

// Fallback replies.
const (
	MsgAssistantUnavailable = "Sorry, I couldn't process that request right now. Type 'help' for available commands."
	MsgNotPermitted         = "Sorry, that action is not permitted."
	MsgInvalidToolRequest   = "Sorry, I couldn't understand the details of that request. Please try again."
	MsgAssistantBusy        = "You're sending requests too quickly. Please wait a moment and try again."
)

// toolCommands maps every tool in the catalogue to the command it runs.
var toolCommands = map[nlp.Tool]Command{
	nlp.ToolAvailableCars: CmdShowCars,
	nlp.ToolUserBookings:  CmdViewBookings,
	nlp.ToolCreateBooking: CmdBook,
	nlp.ToolCancelBooking: CmdCancelBooking,
	nlp.ToolViewTerms:     CmdTerms,
	nlp.ToolAllUsers:      CmdAdminUsers,
	nlp.ToolAllBookings:   CmdAdminBookings,
	nlp.ToolCarStatus:     CmdAdminCarStatus,
	nlp.ToolRevenueStats:  CmdAdminRevenue,
	nlp.ToolAssetSummary:  CmdAdminAssets,
}

// CommandForTool returns the command a tool call runs.
func CommandForTool(t nlp.Tool) (Command, bool) {
	cmd, ok := toolCommands[t]
	return cmd, ok
}

// FallbackConfig wires a Fallback.
type FallbackConfig struct {
	Providers *ProviderResolver
	Executor  *Executor
	Limiter   *nlp.RateLimiter
	Notifier  audit.Notifier
	Timeout   time.Duration
	Now       func() time.Time
}

// Fallback forwards unrecognised text from logged-in callers to the
// assistant and runs at most one tool call it proposes.
type Fallback struct {
	providers *ProviderResolver
	executor  *Executor
	limiter   *nlp.RateLimiter
	notifier  audit.Notifier
	timeout   time.Duration
	now       func() time.Time
}

// NewFallback creates a Fallback.
func NewFallback(cfg FallbackConfig) *Fallback {
	f := &Fallback{
		providers: cfg.Providers,
		executor:  cfg.Executor,
		limiter:   cfg.Limiter,
		notifier:  cfg.Notifier,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
	}
	if f.limiter == nil {
		f.limiter = nlp.NewRateLimiter(nlp.DefaultRateLimit, time.Minute)
	}
	if f.notifier == nil {
		f.notifier = audit.Noop{}
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFallbackTimeout
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Dispatch answers text for sess. A plain-text completion is returned as
// is; a tool call is checked against the allow-list and the access policy
// before it runs. Failures of the completion service yield a static reply.
func (f *Fallback) Dispatch(ctx context.Context, text string, sess *session.Session) string {
	return f.Answer(ctx, text, sess).Message
}

// Answer is Dispatch with the outcome: Success is false when the request
// was refused, the completion service failed or the tool call failed.
func (f *Fallback) Answer(ctx context.Context, text string, sess *session.Session) Result {
	if !live(sess, f.now()) {
		return failure(MsgLoginRequired)
	}
	provider := f.providers.Resolve(ctx)
	if provider == nil {
		return failure(MsgNotRecognized)
	}
	if !f.limiter.Allow(strconv.FormatInt(sess.UserID, 10)) {
		slog.Warn("fallback: rate limit exceeded", "user_id", sess.UserID, "trace_id", trace.FromContext(ctx))
		return failure(MsgAssistantBusy)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	comp, err := provider.Complete(callCtx, nlp.CompletionRequest{
		Role:          string(sess.Role),
		Authenticated: true,
		Message:       text,
		Tools:         f.catalogueFor(sess),
	})
	if err != nil {
		slog.Warn("fallback: completion failed", "user_id", sess.UserID, "trace_id", trace.FromContext(ctx), "err", err)
		f.notifier.Notify(ctx, audit.Event{
			Kind:   audit.KindExternalFailure,
			UserID: sess.UserID,
			Failed: true,
			Error:  err.Error(),
		})
		if errors.Is(err, nlp.ErrRateLimit) {
			return failure(MsgAssistantBusy)
		}
		return failure(MsgAssistantUnavailable)
	}
	if comp.Usage != nil {
		slog.Debug("fallback: completion",
			"model", comp.Usage.Model,
			"total_tokens", comp.Usage.TotalTokens,
			"latency_ms", comp.Usage.LatencyMS)
	}

	if comp.ToolCall == nil {
		if comp.Text == "" {
			return failure(MsgAssistantUnavailable)
		}
		return Result{Success: true, Message: comp.Text}
	}
	return f.runTool(ctx, comp.ToolCall, sess)
}

func (f *Fallback) runTool(ctx context.Context, call *nlp.ToolCall, sess *session.Session) Result {
	reject := func(reason string) {
		f.notifier.Notify(ctx, audit.Event{
			Kind:    audit.KindToolCallRejected,
			UserID:  sess.UserID,
			Target:  call.Name,
			Details: map[string]any{"reason": reason},
			Failed:  true,
		})
	}

	tool, ok := nlp.ParseTool(call.Name)
	if !ok {
		reject("unknown tool")
		return failure(MsgNotPermitted)
	}
	cmd, ok := toolCommands[tool]
	if !ok {
		reject("unmapped tool")
		return failure(MsgNotPermitted)
	}
	if !IsAllowed(cmd, sess, f.now()) {
		reject("access denied")
		return failure(MsgNotPermitted)
	}
	if err := nlp.ValidateArguments(tool, call.Arguments); err != nil {
		slog.Info("fallback: tool arguments rejected", "tool", tool, "trace_id", trace.FromContext(ctx), "err", err)
		reject("invalid arguments")
		return failure(MsgInvalidToolRequest)
	}

	args := toolArgs(call.Arguments)
	res := f.executor.Execute(withoutPrompter(ctx), cmd, sess, args)

	details := make(map[string]any, len(call.Arguments)+1)
	for k, v := range call.Arguments {
		details[k] = v
	}
	details["command"] = string(cmd)
	f.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindToolCallExecuted,
		UserID:  sess.UserID,
		Target:  string(tool),
		Details: details,
		Failed:  !res.Success,
	})
	return res
}

// catalogueFor offers only the tools the caller may run.
func (f *Fallback) catalogueFor(sess *session.Session) nlp.Catalogue {
	now := f.now()
	var out nlp.Catalogue
	for _, spec := range nlp.DefaultCatalogue() {
		if cmd, ok := toolCommands[spec.Name]; ok && IsAllowed(cmd, sess, now) {
			out = append(out, spec)
		}
	}
	return out
}

// toolArgs renders JSON-decoded tool arguments as command Args.
func toolArgs(in map[string]any) Args {
	out := make(Args, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(x)
		case int64:
			out[k] = strconv.FormatInt(x, 10)
		case bool:
			out[k] = strconv.FormatBool(x)
		}
	}
	return out
}
