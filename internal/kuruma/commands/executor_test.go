package commands_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Kuruma/internal/kuruma/commands"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

func TestEndToEnd_RegisterLoginShowCars(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res := fx.exec.Execute(ctx, commands.CmdRegister, nil, commands.Args{
		"email": userEmail, "password": userPassword, "national_id": "N1",
	})
	if !res.Success {
		t.Fatalf("register: %s", res.Message)
	}
	if res.Message != commands.MsgRegistered {
		t.Errorf("got %q, want %q", res.Message, commands.MsgRegistered)
	}

	res = fx.exec.Execute(ctx, commands.CmdLogin, nil, commands.Args{"email": userEmail, "password": userPassword})
	if !res.Success || res.Session == nil {
		t.Fatalf("login: %s", res.Message)
	}
	sess := res.Session
	if sess.Role != session.RoleUser {
		t.Errorf("role = %q, want user", sess.Role)
	}

	cmd, err := commands.NewClassifier().Classify("show cars", sess.IsAdmin())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cmd != commands.CmdShowCars {
		t.Fatalf("got %s, want SHOW_CARS", cmd)
	}

	res = fx.exec.Execute(ctx, cmd, sess, nil)
	if !res.Success {
		t.Fatalf("show cars: %s", res.Message)
	}
	cars, err := fx.store.ListAvailableCars(ctx)
	if err != nil {
		t.Fatalf("ListAvailableCars: %v", err)
	}
	if len(cars) != 20 {
		t.Fatalf("got %d available cars, want 20", len(cars))
	}
	for _, c := range cars {
		if !strings.Contains(res.Message, c.LicensePlate) {
			t.Errorf("listing is missing %s", c.LicensePlate)
		}
	}
}

func TestExecute_DeniedCommandIsNotRun(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)

	res := fx.exec.Execute(context.Background(), commands.CmdAdminUsers, sess, nil)
	if res.Success {
		t.Fatal("expected denial")
	}
	if res.Message != commands.MsgForbidden {
		t.Errorf("got %q, want %q", res.Message, commands.MsgForbidden)
	}
	if fx.admin.count() != 0 {
		t.Errorf("admin collaborator called %d times", fx.admin.count())
	}
}

func TestExecute_LoginTwice(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)

	res := fx.exec.Execute(context.Background(), commands.CmdLogin, sess, nil)
	if res.Success || res.Message != commands.MsgAlreadyLoggedIn {
		t.Errorf("got %+v, want %q", res, commands.MsgAlreadyLoggedIn)
	}
}

func TestExecute_LoginFailures(t *testing.T) {
	fx := newFixture(t)
	fx.customer(t, userEmail)
	ctx := context.Background()

	res := fx.exec.Execute(ctx, commands.CmdLogin, nil, commands.Args{"email": userEmail, "password": "wrong-Pass1!"})
	if res.Success || res.Message != "Invalid email or password." {
		t.Errorf("got %q", res.Message)
	}
	res = fx.exec.Execute(ctx, commands.CmdLogin, nil, commands.Args{"email": "nobody@b.com", "password": userPassword})
	if res.Message != "Invalid email or password." {
		t.Errorf("unknown email: got %q", res.Message)
	}
}

func TestExecute_MissingParameter(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)

	tests := []struct {
		cmd  commands.Command
		args commands.Args
		want string
	}{
		{commands.CmdBook, commands.Args{"start_date": "2024-06-10", "duration": "3"}, "Missing parameter car_id."},
		{commands.CmdBook, commands.Args{"car_id": "1", "duration": "3"}, "Missing parameter start_date."},
		{commands.CmdCancelBooking, nil, "Missing parameter booking_id."},
	}
	for _, tt := range tests {
		res := fx.exec.Execute(context.Background(), tt.cmd, sess, tt.args)
		if res.Success || res.Message != tt.want {
			t.Errorf("%s %v: got %q, want %q", tt.cmd, tt.args, res.Message, tt.want)
		}
	}

	res := fx.exec.Execute(context.Background(), commands.CmdRegister, nil, commands.Args{"email": "c@d.com"})
	if res.Message != "Missing parameter password." {
		t.Errorf("register: got %q", res.Message)
	}
}

func TestExecute_BookValidation(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)

	tests := []struct {
		name string
		args commands.Args
		want string
	}{
		{"bad date", commands.Args{"car_id": "1", "start_date": "10/06/2024", "duration": "3"}, "Invalid start date"},
		{"past date", commands.Args{"car_id": "1", "start_date": "2024-05-01", "duration": "3"}, "Start date cannot be in the past."},
		{"zero days", commands.Args{"car_id": "1", "start_date": "2024-06-10", "duration": "0"}, "Duration must be between 1 and 90 days."},
		{"non numeric car", commands.Args{"car_id": "abc", "start_date": "2024-06-10", "duration": "3"}, "Invalid parameter"},
		{"unknown car", commands.Args{"car_id": "999", "start_date": "2024-06-10", "duration": "3"}, commands.MsgCarUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := fx.exec.Execute(context.Background(), commands.CmdBook, sess, tt.args)
			if res.Success {
				t.Fatal("expected failure")
			}
			if !strings.HasPrefix(res.Message, tt.want) {
				t.Errorf("got %q, want prefix %q", res.Message, tt.want)
			}
		})
	}
}

func TestExecute_BookAndConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.customer(t, userEmail)
	bob := fx.customer(t, "bob@b.com")

	res := fx.exec.Execute(ctx, commands.CmdBook, alice, commands.Args{
		"car_id": "8", "start_date": "2024-06-10", "duration": "3",
	})
	if !res.Success {
		t.Fatalf("book: %s", res.Message)
	}
	if !res.SideEffect {
		t.Error("booking should report a side effect")
	}
	if !strings.Contains(res.Message, "Total cost: $240.00") {
		t.Errorf("message %q lacks total", res.Message)
	}
	if !strings.Contains(res.Message, "2024-06-10 to 2024-06-13") {
		t.Errorf("message %q lacks dates", res.Message)
	}

	res = fx.exec.Execute(ctx, commands.CmdBook, bob, commands.Args{
		"car_id": "8", "start_date": "2024-06-12", "duration": "2",
	})
	if res.Success {
		t.Fatal("overlapping booking succeeded")
	}
	if res.Message != "Car is already booked for these dates." {
		t.Errorf("got %q", res.Message)
	}

	bookings, err := fx.store.ListUserBookings(ctx, bob.UserID)
	if err != nil {
		t.Fatalf("ListUserBookings: %v", err)
	}
	if len(bookings) != 0 {
		t.Errorf("bob has %d bookings, want 0", len(bookings))
	}
}

func TestExecute_BookUnavailableCar(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)
	if err := fx.store.SetCarAvailability(context.Background(), 3, false); err != nil {
		t.Fatalf("SetCarAvailability: %v", err)
	}

	res := fx.exec.Execute(context.Background(), commands.CmdBook, sess, commands.Args{
		"car_id": "3", "start_date": "2024-06-10", "duration": "1",
	})
	if res.Success || res.Message != commands.MsgCarUnavailable {
		t.Errorf("got %q, want %q", res.Message, commands.MsgCarUnavailable)
	}
}

func TestExecute_BookWithPrompter(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)

	p := &scriptedPrompter{answers: []string{"5", "2024-06-20", "2"}}
	ctx := commands.WithPrompter(context.Background(), p)
	res := fx.exec.Execute(ctx, commands.CmdBook, sess, nil)
	if !res.Success {
		t.Fatalf("book: %s", res.Message)
	}
	if len(p.labels) != 3 {
		t.Fatalf("got %d prompts, want 3", len(p.labels))
	}
	if !strings.HasPrefix(p.labels[0], "Available cars:") {
		t.Errorf("first prompt %q does not list cars", p.labels[0])
	}
}

func bookFor(t *testing.T, fx *fixture, sess *session.Session, carID, start string) int64 {
	t.Helper()
	res := fx.exec.Execute(context.Background(), commands.CmdBook, sess, commands.Args{
		"car_id": carID, "start_date": start, "duration": "2",
	})
	if !res.Success {
		t.Fatalf("book: %s", res.Message)
	}
	bookings, err := fx.store.ListUserBookings(context.Background(), sess.UserID)
	if err != nil || len(bookings) == 0 {
		t.Fatalf("ListUserBookings: %v (%d)", err, len(bookings))
	}
	for _, b := range bookings {
		if b.StartDate == start {
			return b.ID
		}
	}
	t.Fatalf("booking starting %s not found", start)
	return 0
}

func TestExecute_CancelGraceWindow(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		success bool
		want    string
	}{
		{"25 hours ahead", time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC), true, commands.MsgBookingCancelled},
		{"exactly 24 hours", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), false, commands.MsgWithinGraceSpan},
		{"23 hours ahead", time.Date(2024, 6, 10, 1, 0, 0, 0, time.UTC), false, commands.MsgWithinGraceSpan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			sess := fx.customer(t, userEmail)
			id := bookFor(t, fx, sess, "4", "2024-06-11")

			fx.setNow(tt.now)
			sess.ExpiresAt = tt.now.Add(time.Hour)
			res := fx.exec.Execute(context.Background(), commands.CmdCancelBooking, sess, commands.Args{
				"booking_id": strconv64(id),
			})
			if res.Success != tt.success || res.Message != tt.want {
				t.Errorf("got (%v, %q), want (%v, %q)", res.Success, res.Message, tt.success, tt.want)
			}

			b, err := fx.store.GetBooking(context.Background(), id)
			if err != nil {
				t.Fatalf("GetBooking: %v", err)
			}
			wantStatus := store.BookingConfirmed
			if tt.success {
				wantStatus = store.BookingCancelled
			}
			if b.Status != wantStatus {
				t.Errorf("status = %q, want %q", b.Status, wantStatus)
			}
		})
	}
}

func TestExecute_CancelOwnership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.customer(t, userEmail)
	bob := fx.customer(t, "bob@b.com")
	id := bookFor(t, fx, alice, "2", "2024-06-20")

	res := fx.exec.Execute(ctx, commands.CmdCancelBooking, bob, commands.Args{"booking_id": strconv64(id)})
	if res.Success || res.Message != commands.MsgBookingNotFound {
		t.Errorf("other user: got %q, want %q", res.Message, commands.MsgBookingNotFound)
	}
	res = fx.exec.Execute(ctx, commands.CmdCancelBooking, bob, commands.Args{"booking_id": "9999"})
	if res.Message != commands.MsgBookingNotFound {
		t.Errorf("missing booking: got %q", res.Message)
	}

	// An admin may cancel any booking, even inside the grace window.
	fx.setNow(time.Date(2024, 6, 19, 12, 0, 0, 0, time.UTC))
	admin := fx.login(t, adminEmail, adminPassword)
	res = fx.exec.Execute(ctx, commands.CmdCancelBooking, admin, commands.Args{"booking_id": strconv64(id)})
	if !res.Success {
		t.Fatalf("admin cancel: %s", res.Message)
	}
	res = fx.exec.Execute(ctx, commands.CmdCancelBooking, admin, commands.Args{"booking_id": strconv64(id)})
	if res.Success || res.Message != "Booking is already cancelled." {
		t.Errorf("second cancel: got %q", res.Message)
	}
}

func TestExecute_ViewBookingsAndTerms(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.customer(t, userEmail)

	res := fx.exec.Execute(ctx, commands.CmdViewBookings, sess, nil)
	if res.Message != commands.MsgNoBookings {
		t.Errorf("got %q, want %q", res.Message, commands.MsgNoBookings)
	}

	res = fx.exec.Execute(ctx, commands.CmdBook, sess, commands.Args{"car_id": "1", "start_date": "2024-06-10", "duration": "1"})
	if !strings.Contains(res.Message, "type 'terms'") {
		t.Errorf("booking without accepted terms should point at them: %q", res.Message)
	}

	res = fx.exec.Execute(ctx, commands.CmdTerms, sess, nil)
	if !res.Success || res.Message != commands.TermsText {
		t.Error("TERMS did not return the terms text")
	}
	res = fx.exec.Execute(ctx, commands.CmdAcceptTerms, sess, nil)
	if !res.Success || res.Message != commands.MsgTermsAccepted {
		t.Errorf("accept terms: got %q", res.Message)
	}
	u, err := fx.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.TermsAcceptedAt.IsZero() {
		t.Error("terms acceptance not recorded")
	}

	res = fx.exec.Execute(ctx, commands.CmdBook, sess, commands.Args{"car_id": "2", "start_date": "2024-06-10", "duration": "1"})
	if strings.Contains(res.Message, "type 'terms'") {
		t.Errorf("terms reminder shown after acceptance: %q", res.Message)
	}

	res = fx.exec.Execute(ctx, commands.CmdViewBookings, sess, nil)
	if !strings.Contains(res.Message, "MB001") || !strings.Contains(res.Message, "MB002") {
		t.Errorf("bookings listing %q", res.Message)
	}
}

func TestExecute_Logout(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.customer(t, userEmail)

	res := fx.exec.Execute(ctx, commands.CmdLogout, sess, nil)
	if !res.Success || !res.ClearSession || res.Message != commands.MsgLoggedOut {
		t.Fatalf("logout: %+v", res)
	}
	got, err := fx.auth.ValidateSession(ctx, sess.Token)
	if err != nil || got != nil {
		t.Errorf("session still valid after logout: %v, %v", got, err)
	}

	res = fx.exec.Execute(ctx, commands.CmdLogout, nil, nil)
	if res.Success || res.Message != commands.MsgNoActiveSession {
		t.Errorf("anonymous logout: got %q", res.Message)
	}
}

func TestExecute_Help(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res := fx.exec.Execute(ctx, commands.CmdHelp, nil, nil)
	if strings.Contains(res.Message, "all users") {
		t.Error("anonymous help lists admin verbs")
	}
	admin := fx.login(t, adminEmail, adminPassword)
	res = fx.exec.Execute(ctx, commands.CmdHelp, admin, nil)
	if !strings.Contains(res.Message, "all users") {
		t.Error("admin help lacks admin verbs")
	}
}

func TestExecute_AdminCommands(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.customer(t, userEmail)
	bookFor(t, fx, alice, "1", "2024-06-10")
	admin := fx.login(t, adminEmail, adminPassword)

	tests := []struct {
		cmd      commands.Command
		args     commands.Args
		contains string
	}{
		{commands.CmdAdminUsers, nil, userEmail},
		{commands.CmdAdminBookings, nil, userEmail},
		{commands.CmdAdminSearch, commands.Args{"email": "A@B"}, "MB001"},
		{commands.CmdAdminCarStatus, nil, "20 available, 0 unavailable"},
		{commands.CmdAdminRevenue, commands.Args{"start_date": "2024-06-01", "end_date": "2024-06-30"}, "Total revenue: $400.00"},
		{commands.CmdAdminAssets, nil, "Fleet size: 20 cars"},
		{commands.CmdAdminMaintenance, commands.Args{"car_id": "2", "available": "no"}, "Car 2 marked unavailable"},
		{commands.CmdAdminAudit, commands.Args{"limit": "5"}, "BOOKING_CREATED"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			res := fx.exec.Execute(ctx, tt.cmd, admin, tt.args)
			if !res.Success {
				t.Fatalf("failed: %s", res.Message)
			}
			if !strings.Contains(res.Message, tt.contains) {
				t.Errorf("message %q lacks %q", res.Message, tt.contains)
			}
		})
	}

	car, err := fx.store.GetCar(ctx, 2)
	if err != nil {
		t.Fatalf("GetCar: %v", err)
	}
	if car.IsAvailable {
		t.Error("maintenance did not clear availability")
	}

	res := fx.exec.Execute(ctx, commands.CmdAdminRevenue, admin, commands.Args{"start_date": "2024-06-30", "end_date": "2024-06-01"})
	if res.Success {
		t.Error("reversed revenue range accepted")
	}
	res = fx.exec.Execute(ctx, commands.CmdAdminMaintenance, admin, commands.Args{"car_id": "999", "available": "yes"})
	if res.Message != "Car not found." {
		t.Errorf("missing car: got %q", res.Message)
	}
}

func TestExecute_AuditTrail(t *testing.T) {
	fx := newFixture(t)
	sess := fx.customer(t, userEmail)
	bookFor(t, fx, sess, "1", "2024-06-10")

	out := fx.log.String()
	for _, want := range []string{"event=USER_REGISTERED", "event=LOGIN_SUCCESS", "event=BOOKING_CREATED"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log lacks %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, userPassword) || strings.Contains(out, "N1,") {
		t.Error("audit log leaks credentials")
	}
}
