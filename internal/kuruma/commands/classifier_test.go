package commands_test

import (
	"errors"
	"testing"

	"github.com/bdobrica/Kuruma/internal/kuruma/commands"
)

func TestClassify(t *testing.T) {
	c := commands.NewClassifier()

	tests := []struct {
		input string
		admin bool
		want  commands.Command
	}{
		{"show cars", false, commands.CmdShowCars},
		{"  SHOW CARS  ", false, commands.CmdShowCars},
		{"what cars are available today", false, commands.CmdShowCars},
		{"my bookings", false, commands.CmdViewBookings},
		{"view my bookings", false, commands.CmdViewBookings},
		{"login now please", false, commands.CmdLogin},
		{"sign out", false, commands.CmdLogout},
		{"register", false, commands.CmdRegister},
		{"help me", false, commands.CmdHelp},
		{"book", false, commands.CmdBook},
		{"book car id 5", false, commands.CmdBook},
		{"book car id 5 bookings", false, commands.CmdBook},
		{"rent a car", false, commands.CmdBook},
		{"make a booking", false, commands.CmdBook},
		{"booking", false, commands.CmdUnknown},
		{"cancel booking 3", false, commands.CmdCancelBooking},
		{"cancel my booking", false, commands.CmdCancelBooking},
		{"accept terms", false, commands.CmdAcceptTerms},
		{"terms", false, commands.CmdTerms},
		{"show t&c", false, commands.CmdTerms},
		{"show bookings", false, commands.CmdViewBookings},
		{"show bookings", true, commands.CmdAdminBookings},
		{"all users", false, commands.CmdUnknown},
		{"all users", true, commands.CmdAdminUsers},
		{"revenue", true, commands.CmdAdminRevenue},
		{"audit log", true, commands.CmdAdminAudit},
		{"maintenance", true, commands.CmdAdminMaintenance},
		{"view assets", true, commands.CmdAdminAssets},
		{"I want to rent a car", false, commands.CmdUnknown},
		{"what is the weather like", false, commands.CmdUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := c.Classify(tt.input, tt.admin)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q, admin=%v) = %s, want %s", tt.input, tt.admin, got, tt.want)
			}
		})
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	c := commands.NewClassifier()
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := c.Classify(in, false); !errors.Is(err, commands.ErrEmptyInput) {
			t.Errorf("Classify(%q) err = %v, want ErrEmptyInput", in, err)
		}
	}
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "exact: [unterminated"},
		{"unknown command", "exact:\n  - {phrase: fly, command: FLY}"},
		{"unknown target", "patterns:\n  - command: UNKNOWN\n    match: [x]"},
		{"empty phrase", "whole:\n  - {phrase: '  ', command: HELP}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := commands.LoadRules([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRules_InvalidRegexMatchesLiterally(t *testing.T) {
	c, err := commands.LoadRules([]byte("patterns:\n  - command: HELP\n    match: ['a[b']\n"))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	got, _ := c.Classify("xa[by", false)
	if got != commands.CmdHelp {
		t.Errorf("got %s, want HELP", got)
	}
	got, _ = c.Classify("ab", false)
	if got != commands.CmdUnknown {
		t.Errorf("got %s, want UNKNOWN", got)
	}
}

func TestLoadRules_ExclusionOnlyAppliesToLiterals(t *testing.T) {
	c, err := commands.LoadRules([]byte(`
patterns:
  - command: BOOK
    match: [reserve, '^hire\s']
    exclude: [reservation]
`))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	tests := []struct {
		input string
		want  commands.Command
	}{
		{"reserve a car", commands.CmdBook},
		{"reserve my reservation", commands.CmdUnknown},
		{"hire a reservation", commands.CmdBook},
	}
	for _, tt := range tests {
		if got, _ := c.Classify(tt.input, false); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestLoadRules_RegexKeepsEscapeCase(t *testing.T) {
	c, err := commands.LoadRules([]byte(`
patterns:
  - command: HELP
    match: ['^x\S+$']
  - command: SHOW_CARS
    match: ['^fleet \D+$', Show Fleet]
`))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	tests := []struct {
		input string
		want  commands.Command
	}{
		{"xyz", commands.CmdHelp},
		{"x yz", commands.CmdUnknown},
		{"fleet today", commands.CmdShowCars},
		{"fleet 42", commands.CmdUnknown},
		{"please SHOW fleet", commands.CmdShowCars},
	}
	for _, tt := range tests {
		if got, _ := c.Classify(tt.input, false); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}
