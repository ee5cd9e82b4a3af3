// Package audit records security-relevant events: logins, registrations,
// bookings, cancellations and admin actions.
//
// Every event carries the trace ID of the request that produced it so a
// line in the audit file can be matched with the audit_log table row.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bdobrica/Kuruma/common/redact"
	"github.com/bdobrica/Kuruma/common/trace"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

// Kind is a machine-readable event category.
type Kind string

const (
	KindUserRegistered   Kind = "USER_REGISTERED"
	KindLoginSuccess     Kind = "LOGIN_SUCCESS"
	KindLoginFailed      Kind = "LOGIN_FAILED"
	KindLogout           Kind = "LOGOUT"
	KindCommand          Kind = "COMMAND"
	KindBookingCreated   Kind = "BOOKING_CREATED"
	KindBookingCancelled Kind = "BOOKING_CANCELLED"
	KindTermsAccepted    Kind = "TERMS_ACCEPTED"
	KindCarMaintenance   Kind = "CAR_MAINTENANCE"
	KindAccessDenied     Kind = "ACCESS_DENIED"
	KindToolCallRejected Kind = "TOOL_CALL_REJECTED"
	KindToolCallExecuted Kind = "TOOL_CALL_EXECUTED"
	KindExternalFailure  Kind = "EXTERNAL_SERVICE_ERROR"
)

// Event is one auditable occurrence.
type Event struct {
	Kind Kind
	// UserID is zero when no user is authenticated.
	UserID int64
	// Target is the primary resource affected (booking id, car id, email).
	Target string
	// Details are key/value context; sensitive keys are redacted on write.
	Details map[string]any
	// Failed marks an unsuccessful outcome.
	Failed bool
	// Error is the internal error text, never shown to the end user.
	Error string
	// TraceID defaults to the trace ID carried by the context.
	TraceID string
	// Timestamp defaults to time.Now().
	Timestamp time.Time
}

// Notifier records audit events. Implementations must not fail the
// caller; write errors are logged.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

func (e *Event) fill(ctx context.Context) {
	if e.TraceID == "" {
		e.TraceID = trace.FromContext(ctx)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}

// FileNotifier appends one line per event to an audit file:
//
//	[2024-06-01T10:00:00Z] user=7 event=LOGIN_SUCCESS details=email=a@b.com trace=t_...
type FileNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// OpenFile opens (or creates) path in append mode.
func OpenFile(path string) (*FileNotifier, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileNotifier{w: f, closer: f}, nil
}

// NewFileNotifier writes events to w.
func NewFileNotifier(w io.Writer) *FileNotifier {
	return &FileNotifier{w: w}
}

// Notify writes evt as a single line.
func (n *FileNotifier) Notify(ctx context.Context, evt Event) {
	evt.fill(ctx)
	line := FormatLine(evt)

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := io.WriteString(n.w, line+"\n"); err != nil {
		slog.Warn("audit: failed to write audit line", "kind", evt.Kind, "err", err)
	}
}

// Close closes the underlying file, if any.
func (n *FileNotifier) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer.Close()
}

// FormatLine renders evt in the audit file format.
func FormatLine(evt Event) string {
	user := "-"
	if evt.UserID != 0 {
		user = fmt.Sprintf("%d", evt.UserID)
	}

	details := redact.Map(evt.Details)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+3)
	if evt.Target != "" {
		parts = append(parts, "target="+evt.Target)
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	if evt.Failed {
		parts = append(parts, "result=error")
	}

	line := fmt.Sprintf("[%s] user=%s event=%s details=%s",
		evt.Timestamp.UTC().Format(time.RFC3339), user, evt.Kind, strings.Join(parts, ","))
	if evt.TraceID != "" {
		line += " trace=" + evt.TraceID
	}
	return line
}

// AuditWriter is the subset of *store.Store used by StoreNotifier.
type AuditWriter interface {
	WriteAudit(ctx context.Context, rec store.AuditRecord) error
}

// StoreNotifier persists events into the audit_log table.
type StoreNotifier struct {
	w AuditWriter
}

// NewStoreNotifier creates a StoreNotifier writing through w.
func NewStoreNotifier(w AuditWriter) *StoreNotifier {
	return &StoreNotifier{w: w}
}

// Notify inserts evt into audit_log; failures are logged.
func (n *StoreNotifier) Notify(ctx context.Context, evt Event) {
	evt.fill(ctx)
	result := "success"
	if evt.Failed {
		result = "error"
	}
	var payload store.AuditPayload
	if len(evt.Details) > 0 {
		payload = store.AuditPayload(redact.Map(evt.Details))
	}
	err := n.w.WriteAudit(ctx, store.AuditRecord{
		TraceID: evt.TraceID,
		UserID:  evt.UserID,
		Action:  string(evt.Kind),
		Target:  evt.Target,
		Result:  result,
		Payload: payload,
		Error:   evt.Error,
	})
	if err != nil {
		slog.Warn("audit: failed to persist audit event", "kind", evt.Kind, "trace_id", evt.TraceID, "err", err)
	}
}

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

// Notify forwards evt to every notifier.
func (m Multi) Notify(ctx context.Context, evt Event) {
	evt.fill(ctx)
	for _, n := range m {
		n.Notify(ctx, evt)
	}
}

// Noop is a no-op Notifier.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(_ context.Context, _ Event) {}
