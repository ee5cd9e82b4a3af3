package commands

import (
	"time"

	"github.com/bdobrica/Kuruma/internal/kuruma/session"
)

// Tier is the minimum privilege a command requires.
type Tier int

const (
	TierPublic Tier = iota
	TierAuthenticated
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierAuthenticated:
		return "authenticated"
	case TierAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// AccessRule maps a command to its required tier.
type AccessRule struct {
	Command Command
	Tier    Tier
}

var accessRules = map[Command]Tier{
	CmdLogin:            TierPublic,
	CmdRegister:         TierPublic,
	CmdHelp:             TierPublic,
	CmdShowCars:         TierPublic,
	CmdLogout:           TierAuthenticated,
	CmdBook:             TierAuthenticated,
	CmdViewBookings:     TierAuthenticated,
	CmdCancelBooking:    TierAuthenticated,
	CmdTerms:            TierAuthenticated,
	CmdAcceptTerms:      TierAuthenticated,
	CmdUnknown:          TierAuthenticated,
	CmdAdminUsers:       TierAdmin,
	CmdAdminBookings:    TierAdmin,
	CmdAdminCarStatus:   TierAdmin,
	CmdAdminAssets:      TierAdmin,
	CmdAdminRevenue:     TierAdmin,
	CmdAdminSearch:      TierAdmin,
	CmdAdminMaintenance: TierAdmin,
	CmdAdminAudit:       TierAdmin,
}

// Denial messages.
const (
	MsgLoginRequired   = "Please login first."
	MsgForbidden       = "You don't have permission to execute this command."
	MsgNoActiveSession = "No active session."
)

// AccessRules returns one rule per command, in declaration order.
func AccessRules() []AccessRule {
	rules := make([]AccessRule, 0, len(allCommands))
	for _, c := range allCommands {
		rules = append(rules, AccessRule{Command: c, Tier: TierOf(c)})
	}
	return rules
}

// TierOf returns the tier required by cmd. Values outside the enumeration
// require admin.
func TierOf(cmd Command) Tier {
	if t, ok := accessRules[cmd]; ok {
		return t
	}
	return TierAdmin
}

// IsAllowed reports whether sess may run cmd at now. A nil or expired
// session is treated as anonymous. It has no side effects.
func IsAllowed(cmd Command, sess *session.Session, now time.Time) bool {
	switch TierOf(cmd) {
	case TierPublic:
		return true
	case TierAuthenticated:
		return live(sess, now)
	default:
		return live(sess, now) && sess.IsAdmin()
	}
}

// DenialMessage is the user-facing text for a command IsAllowed refused.
func DenialMessage(cmd Command, sess *session.Session, now time.Time) string {
	if !live(sess, now) {
		if cmd == CmdLogout {
			return MsgNoActiveSession
		}
		return MsgLoginRequired
	}
	return MsgForbidden
}

func live(sess *session.Session, now time.Time) bool {
	return sess != nil && !sess.Expired(now)
}
