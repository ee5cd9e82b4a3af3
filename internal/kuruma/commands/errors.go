package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/bdobrica/Kuruma/common/trace"
	"github.com/bdobrica/Kuruma/internal/kuruma/auth"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

// MsgOperationFailed is shown for storage and other unexpected failures.
const MsgOperationFailed = "Operation failed, please try again."

// ValidationError reports malformed user input. Nothing was mutated.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(param, format string, args ...any) *ValidationError {
	return &ValidationError{Param: param, Message: fmt.Sprintf(format, args...)}
}

func missing(param string) *ValidationError {
	return invalid(param, "missing parameter %s", param)
}

// userMessage converts err into text that is safe to show the caller.
// Unexpected errors are logged with their detail and reported generically.
func userMessage(ctx context.Context, cmd Command, err error) string {
	var (
		verr *ValidationError
		nf   *store.NotFoundError
		cf   *store.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return sentence(verr.Message)
	case errors.As(err, &nf):
		return sentence(nf.Entity + " not found")
	case errors.As(err, &cf):
		return sentence(cf.Reason)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, auth.ErrAccountLocked):
		return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %d minutes.",
			int(auth.LockoutDuration.Minutes()))
	case errors.Is(err, auth.ErrAccountDisabled):
		return "Account is disabled. Please contact support."
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrMissingNationalID):
		return sentence(err.Error())
	}

	slog.Error("command failed", "command", cmd, "trace_id", trace.FromContext(ctx), "err", err)
	return MsgOperationFailed
}

// sentence capitalises the first letter and ends s with a period.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	s = string(r)
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
