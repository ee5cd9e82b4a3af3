package commands_test

import (
	"testing"
	"time"

	"github.com/bdobrica/Kuruma/internal/kuruma/commands"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
)

var policyNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func liveSession(role session.Role) *session.Session {
	return &session.Session{
		Token:     "tok",
		UserID:    7,
		Email:     "x@y.com",
		Role:      role,
		IssuedAt:  policyNow.Add(-time.Hour),
		ExpiresAt: policyNow.Add(time.Hour),
	}
}

func TestAccessRules_CoverEveryCommand(t *testing.T) {
	rules := commands.AccessRules()
	if len(rules) != len(commands.All()) {
		t.Fatalf("got %d rules, want %d", len(rules), len(commands.All()))
	}
	seen := map[commands.Command]bool{}
	for _, r := range rules {
		if seen[r.Command] {
			t.Errorf("duplicate rule for %s", r.Command)
		}
		seen[r.Command] = true
	}
	if got := commands.TierOf(commands.CmdUnknown); got < commands.TierAuthenticated {
		t.Errorf("UNKNOWN tier = %s, want at least authenticated", got)
	}
}

func TestIsAllowed_AnonymousOnlyPublicCommands(t *testing.T) {
	public := map[commands.Command]bool{
		commands.CmdLogin:    true,
		commands.CmdRegister: true,
		commands.CmdHelp:     true,
		commands.CmdShowCars: true,
	}
	for _, cmd := range commands.All() {
		if got := commands.IsAllowed(cmd, nil, policyNow); got != public[cmd] {
			t.Errorf("IsAllowed(%s, nil) = %v, want %v", cmd, got, public[cmd])
		}
	}
}

func TestIsAllowed_Roles(t *testing.T) {
	user := liveSession(session.RoleUser)
	admin := liveSession(session.RoleAdmin)

	for _, cmd := range commands.All() {
		tier := commands.TierOf(cmd)
		if got, want := commands.IsAllowed(cmd, user, policyNow), tier != commands.TierAdmin; got != want {
			t.Errorf("user IsAllowed(%s) = %v, want %v", cmd, got, want)
		}
		if !commands.IsAllowed(cmd, admin, policyNow) {
			t.Errorf("admin IsAllowed(%s) = false, want true", cmd)
		}
	}
}

func TestIsAllowed_ExpiredSessionIsAnonymous(t *testing.T) {
	sess := liveSession(session.RoleAdmin)
	sess.ExpiresAt = policyNow

	if commands.IsAllowed(commands.CmdBook, sess, policyNow) {
		t.Error("expired session may BOOK")
	}
	if commands.IsAllowed(commands.CmdAdminUsers, sess, policyNow) {
		t.Error("expired admin session may run ADMIN_USERS")
	}
	if !commands.IsAllowed(commands.CmdShowCars, sess, policyNow) {
		t.Error("expired session may not SHOW_CARS")
	}
}

func TestTierOf_OutsideEnumerationRequiresAdmin(t *testing.T) {
	if got := commands.TierOf(commands.Command("DROP_TABLES")); got != commands.TierAdmin {
		t.Errorf("got %s, want admin", got)
	}
	if commands.IsAllowed(commands.Command("DROP_TABLES"), liveSession(session.RoleUser), policyNow) {
		t.Error("user allowed to run unknown command value")
	}
}

func TestDenialMessage(t *testing.T) {
	tests := []struct {
		name string
		cmd  commands.Command
		sess *session.Session
		want string
	}{
		{"anonymous book", commands.CmdBook, nil, commands.MsgLoginRequired},
		{"anonymous logout", commands.CmdLogout, nil, commands.MsgNoActiveSession},
		{"anonymous admin", commands.CmdAdminUsers, nil, commands.MsgLoginRequired},
		{"user admin", commands.CmdAdminUsers, liveSession(session.RoleUser), commands.MsgForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commands.DenialMessage(tt.cmd, tt.sess, policyNow); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
