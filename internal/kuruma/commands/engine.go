package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bdobrica/Kuruma/common/trace"
	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
)

// MsgEmptyInput answers blank input.
const MsgEmptyInput = "Please enter a command. Type 'help' for available commands."

// SessionValidator resolves a session token; *auth.Service satisfies it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*session.Session, error)
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Sessions   SessionValidator
	Classifier *Classifier
	Executor   *Executor
	Fallback   *Fallback
	Notifier   audit.Notifier
	Now        func() time.Time
}

// Engine handles one line of user input end to end.
type Engine struct {
	sessions   SessionValidator
	classifier *Classifier
	executor   *Executor
	fallback   *Fallback
	notifier   audit.Notifier
	now        func() time.Time
}

// NewEngine creates an Engine. Fallback may be nil, in which case
// unrecognised input is never forwarded.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		sessions:   cfg.Sessions,
		classifier: cfg.Classifier,
		executor:   cfg.Executor,
		fallback:   cfg.Fallback,
		notifier:   cfg.Notifier,
		now:        cfg.Now,
	}
	if e.classifier == nil {
		e.classifier = NewClassifier()
	}
	if e.notifier == nil {
		e.notifier = audit.Noop{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Handle classifies text for the session identified by token and runs
// the result. args pre-fills command parameters; missing ones are prompted
// for when ctx carries a Prompter.
func (e *Engine) Handle(ctx context.Context, token, text string, args Args) Result {
	if trace.FromContext(ctx) == "" {
		ctx = trace.WithTraceID(ctx, trace.GenerateID())
	}

	sess, err := e.sessions.ValidateSession(ctx, token)
	if err != nil {
		slog.Error("session validation failed", "trace_id", trace.FromContext(ctx), "err", err)
		return failure(MsgOperationFailed)
	}
	res := e.handle(ctx, sess, text, args)
	if token != "" && sess == nil {
		// The caller's token is no longer valid; let it forget the token.
		res.ClearSession = true
	}
	return res
}

func (e *Engine) handle(ctx context.Context, sess *session.Session, text string, args Args) Result {
	cmd, err := e.classifier.Classify(text, sess.IsAdmin())
	if errors.Is(err, ErrEmptyInput) {
		return failure(MsgEmptyInput)
	}
	if err != nil {
		slog.Error("classification failed", "trace_id", trace.FromContext(ctx), "err", err)
		return failure(MsgOperationFailed)
	}
	slog.Debug("command classified", "command", cmd, "trace_id", trace.FromContext(ctx))

	now := e.now()
	if cmd == CmdUnknown {
		if !live(sess, now) || e.fallback == nil {
			return failure(MsgNotRecognized)
		}
		return e.fallback.Answer(ctx, text, sess)
	}

	if !IsAllowed(cmd, sess, now) {
		var userID int64
		if sess != nil {
			userID = sess.UserID
		}
		e.notifier.Notify(ctx, audit.Event{
			Kind:    audit.KindAccessDenied,
			UserID:  userID,
			Target:  string(cmd),
			Details: map[string]any{"tier": TierOf(cmd).String()},
			Failed:  true,
		})
		return failure(DenialMessage(cmd, sess, now))
	}

	res := e.executor.Execute(ctx, cmd, sess, args)

	userID := int64(0)
	if sess != nil {
		userID = sess.UserID
	} else if res.Session != nil {
		userID = res.Session.UserID
	}
	e.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindCommand,
		UserID:  userID,
		Target:  string(cmd),
		Details: map[string]any{"side_effect": res.SideEffect},
		Failed:  !res.Success,
	})
	return res
}
