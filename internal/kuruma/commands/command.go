// Package commands turns user text into one of a closed set of commands,
// decides whether the caller may run it, and runs it against the auth and
// rental collaborators.
//
// The request path is:
//
//	text -> Classifier -> IsAllowed -> Executor
//	                   \-> UNKNOWN  -> Fallback -> IsAllowed -> Executor
//
// Engine wires the pieces together for one request.
package commands

import (
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
)

// Command is one member of the closed set of recognised user intents.
type Command string

const (
	CmdLogin            Command = "LOGIN"
	CmdLogout           Command = "LOGOUT"
	CmdRegister         Command = "REGISTER"
	CmdShowCars         Command = "SHOW_CARS"
	CmdBook             Command = "BOOK"
	CmdViewBookings     Command = "VIEW_BOOKINGS"
	CmdCancelBooking    Command = "CANCEL_BOOKING"
	CmdTerms            Command = "TERMS"
	CmdAcceptTerms      Command = "ACCEPT_TERMS"
	CmdHelp             Command = "HELP"
	CmdAdminUsers       Command = "ADMIN_USERS"
	CmdAdminBookings    Command = "ADMIN_BOOKINGS"
	CmdAdminCarStatus   Command = "ADMIN_CAR_STATUS"
	CmdAdminAssets      Command = "ADMIN_ASSETS"
	CmdAdminRevenue     Command = "ADMIN_REVENUE"
	CmdAdminSearch      Command = "ADMIN_SEARCH"
	CmdAdminMaintenance Command = "ADMIN_MAINTENANCE"
	CmdAdminAudit       Command = "ADMIN_AUDIT"
	CmdUnknown          Command = "UNKNOWN"
)

var allCommands = []Command{
	CmdLogin, CmdLogout, CmdRegister, CmdShowCars, CmdBook, CmdViewBookings,
	CmdCancelBooking, CmdTerms, CmdAcceptTerms, CmdHelp,
	CmdAdminUsers, CmdAdminBookings, CmdAdminCarStatus, CmdAdminAssets,
	CmdAdminRevenue, CmdAdminSearch, CmdAdminMaintenance, CmdAdminAudit,
	CmdUnknown,
}

// All returns every command in declaration order.
func All() []Command {
	out := make([]Command, len(allCommands))
	copy(out, allCommands)
	return out
}

// ParseCommand resolves a command name such as "SHOW_CARS".
func ParseCommand(name string) (Command, bool) {
	for _, c := range allCommands {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Args carries named command parameters, e.g. {"car_id": "3"}.
type Args map[string]string

// Result is the outcome of running one command.
type Result struct {
	Success bool
	Message string
	// SideEffect is true when the command changed persisted state.
	SideEffect bool

	// Session is set by a successful LOGIN; the caller keeps its token.
	Session *session.Session
	// ClearSession tells the caller to forget its token (logout, expiry).
	ClearSession bool
}

func failure(msg string) Result {
	return Result{Message: msg}
}
