package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

const (
	// DefaultGraceWindow is the minimum lead time before a booking's start
	// for a customer to cancel it.
	DefaultGraceWindow = 24 * time.Hour
	// MaxRentalDays bounds the duration of one booking.
	MaxRentalDays = 90
	// defaultAuditLimit is the number of entries ADMIN_AUDIT shows.
	defaultAuditLimit = 20
)

// Command result texts that tests and callers match on.
const (
	MsgNotRecognized    = "Command not recognized. Type 'help' for available commands."
	MsgAlreadyLoggedIn  = "Already logged in."
	MsgCarUnavailable   = "Car not found or not available."
	MsgBookingNotFound  = "Booking not found or unauthorized."
	MsgWithinGraceSpan  = "Cancellation is not allowed within 24 hours of start date."
	MsgLoggedOut        = "Logged out successfully."
	MsgNoBookings       = "No bookings found."
	MsgNoCarsAvailable  = "No cars available."
	MsgRegistered       = "Registration successful! Please login."
	MsgBookingCancelled = "Booking cancelled successfully."
	MsgTermsAccepted    = "Terms and conditions accepted."
)

// Authenticator is the auth collaborator.
type Authenticator interface {
	Register(ctx context.Context, email, password, nationalID string) error
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Logout(ctx context.Context, token string) (bool, error)
}

// Rentals is the customer-facing storage collaborator.
type Rentals interface {
	ListAvailableCars(ctx context.Context) ([]*store.Car, error)
	ListUserBookings(ctx context.Context, userID int64) ([]*store.Booking, error)
	GetBooking(ctx context.Context, id int64) (*store.Booking, error)
	CreateBooking(ctx context.Context, b *store.Booking) error
	CancelBooking(ctx context.Context, id int64) error
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	AcceptTerms(ctx context.Context, userID int64, at time.Time) error
}

// Admin is the admin storage collaborator.
type Admin interface {
	ListUsers(ctx context.Context) ([]*store.User, error)
	ListAllBookings(ctx context.Context) ([]*store.Booking, error)
	SearchBookingsByEmail(ctx context.Context, term string) ([]*store.Booking, error)
	GetCarStatus(ctx context.Context) (*store.CarStatus, error)
	GetRevenueStats(ctx context.Context, from, to string) (*store.RevenueStats, error)
	GetAssetSummary(ctx context.Context, now time.Time) (*store.AssetSummary, error)
	SetCarAvailability(ctx context.Context, id int64, available bool) error
	GetAuditLog(ctx context.Context, limit int) ([]*store.AuditEntry, error)
}

// ExecutorConfig wires an Executor. *store.Store satisfies both Rentals
// and Admin.
type ExecutorConfig struct {
	Auth     Authenticator
	Rentals  Rentals
	Admin    Admin
	Notifier audit.Notifier
	// GraceWindow defaults to DefaultGraceWindow.
	GraceWindow time.Duration
	Now         func() time.Time
}

// Executor runs a resolved command against its collaborator.
type Executor struct {
	auth     Authenticator
	rentals  Rentals
	admin    Admin
	notifier audit.Notifier
	grace    time.Duration
	now      func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		auth:     cfg.Auth,
		rentals:  cfg.Rentals,
		admin:    cfg.Admin,
		notifier: cfg.Notifier,
		grace:    cfg.GraceWindow,
		now:      cfg.Now,
	}
	if e.notifier == nil {
		e.notifier = audit.Noop{}
	}
	if e.grace <= 0 {
		e.grace = DefaultGraceWindow
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

type handlerFunc func(e *Executor, ctx context.Context, sess *session.Session, args Args) (Result, error)

var handlers = map[Command]handlerFunc{
	CmdLogin:            (*Executor).login,
	CmdLogout:           (*Executor).logout,
	CmdRegister:         (*Executor).register,
	CmdShowCars:         (*Executor).showCars,
	CmdBook:             (*Executor).book,
	CmdViewBookings:     (*Executor).viewBookings,
	CmdCancelBooking:    (*Executor).cancelBooking,
	CmdTerms:            (*Executor).terms,
	CmdAcceptTerms:      (*Executor).acceptTerms,
	CmdHelp:             (*Executor).help,
	CmdAdminUsers:       (*Executor).adminUsers,
	CmdAdminBookings:    (*Executor).adminBookings,
	CmdAdminCarStatus:   (*Executor).adminCarStatus,
	CmdAdminAssets:      (*Executor).adminAssets,
	CmdAdminRevenue:     (*Executor).adminRevenue,
	CmdAdminSearch:      (*Executor).adminSearch,
	CmdAdminMaintenance: (*Executor).adminMaintenance,
	CmdAdminAudit:       (*Executor).adminAudit,
}

// Execute runs cmd for sess. Missing arguments are prompted for when ctx
// carries a Prompter (see WithPrompter) and reported as "missing parameter
// <name>" otherwise. Every failure is returned as a Result; Execute never
// panics on collaborator errors and never returns raw error text for
// storage failures.
func (e *Executor) Execute(ctx context.Context, cmd Command, sess *session.Session, args Args) (res Result) {
	now := e.now()
	if !IsAllowed(cmd, sess, now) {
		return failure(DenialMessage(cmd, sess, now))
	}
	h, ok := handlers[cmd]
	if !ok {
		return failure(MsgNotRecognized)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("command panicked", "command", cmd, "panic", r)
			res = failure(MsgOperationFailed)
		}
	}()

	res, err := h(e, ctx, sess, args)
	if err != nil {
		return failure(userMessage(ctx, cmd, err))
	}
	return res
}

func (e *Executor) login(ctx context.Context, sess *session.Session, args Args) (Result, error) {
	if sess != nil && !sess.Expired(e.now()) {
		return failure(MsgAlreadyLoggedIn), nil
	}
	args, err := gather(ctx, args,
		param{name: "email", label: "Email"},
		param{name: "password", label: "Password", secret: true},
	)
	if err != nil {
		return Result{}, err
	}
	var p loginParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}

	newSess, err := e.auth.Login(ctx, p.Email, p.Password)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Login successful! Welcome, %s.", newSess.Email)
	if newSess.IsAdmin() {
		msg += " You are logged in as administrator."
	}
	return Result{Success: true, Message: msg, SideEffect: true, Session: newSess}, nil
}

func (e *Executor) logout(ctx context.Context, sess *session.Session, _ Args) (Result, error) {
	ended, err := e.auth.Logout(ctx, sess.Token)
	if err != nil {
		return Result{}, err
	}
	if !ended {
		return Result{Message: MsgNoActiveSession, ClearSession: true}, nil
	}
	return Result{Success: true, Message: MsgLoggedOut, SideEffect: true, ClearSession: true}, nil
}

func (e *Executor) register(ctx context.Context, _ *session.Session, args Args) (Result, error) {
	args, err := gather(ctx, args,
		param{name: "email", label: "Email"},
		param{name: "password", label: "Password", secret: true},
		param{name: "national_id", label: "National ID", secret: true},
	)
	if err != nil {
		return Result{}, err
	}
	var p registerParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}
	if err := e.auth.Register(ctx, p.Email, p.Password, p.NationalID); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: MsgRegistered, SideEffect: true}, nil
}

func (e *Executor) showCars(ctx context.Context, _ *session.Session, _ Args) (Result, error) {
	cars, err := e.rentals.ListAvailableCars(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(cars) == 0 {
		return Result{Success: true, Message: MsgNoCarsAvailable}, nil
	}
	return Result{Success: true, Message: "Available cars:\n" + formatCars(cars)}, nil
}

func (e *Executor) book(ctx context.Context, sess *session.Session, args Args) (Result, error) {
	carLabel := "Enter Car ID to book"
	if prompterFrom(ctx) != nil && args["car_id"] == "" {
		cars, err := e.rentals.ListAvailableCars(ctx)
		if err != nil {
			return Result{}, err
		}
		if len(cars) == 0 {
			return failure(MsgNoCarsAvailable), nil
		}
		carLabel = "Available cars:\n" + formatCars(cars) + "\n" + carLabel
	}

	args, err := gather(ctx, args,
		param{name: "car_id", label: carLabel},
		param{name: "start_date", label: "Enter start date (YYYY-MM-DD)"},
		param{name: "duration", label: "Enter number of days"},
	)
	if err != nil {
		return Result{}, err
	}
	var p bookParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}

	start, err := time.ParseInLocation(store.DateLayout, p.StartDate, time.UTC)
	if err != nil {
		return Result{}, invalid("start_date", "invalid start date %q, expected YYYY-MM-DD", p.StartDate)
	}
	today := e.now().UTC().Truncate(24 * time.Hour)
	if start.Before(today) {
		return Result{}, invalid("start_date", "start date cannot be in the past")
	}
	if p.Duration < 1 || p.Duration > MaxRentalDays {
		return Result{}, invalid("duration", "duration must be between 1 and %d days", MaxRentalDays)
	}
	if p.CarID <= 0 {
		return Result{}, invalid("car_id", "invalid car ID")
	}

	cars, err := e.rentals.ListAvailableCars(ctx)
	if err != nil {
		return Result{}, err
	}
	var car *store.Car
	for _, c := range cars {
		if c.ID == p.CarID {
			car = c
			break
		}
	}
	if car == nil {
		return failure(MsgCarUnavailable), nil
	}

	total := car.DailyRate * float64(p.Duration)
	user, err := e.rentals.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return Result{}, err
	}
	b := &store.Booking{
		UserID:        sess.UserID,
		CarID:         car.ID,
		StartDate:     start.Format(store.DateLayout),
		EndDate:       start.AddDate(0, 0, p.Duration).Format(store.DateLayout),
		TermsAccepted: !user.TermsAcceptedAt.IsZero(),
		TotalAmount:   total,
	}
	if err := e.rentals.CreateBooking(ctx, b); err != nil {
		return Result{}, err
	}

	e.notifier.Notify(ctx, audit.Event{
		Kind:   audit.KindBookingCreated,
		UserID: sess.UserID,
		Target: strconv.FormatInt(b.ID, 10),
		Details: map[string]any{
			"car_id": car.ID, "start_date": b.StartDate, "end_date": b.EndDate, "total": total,
		},
	})

	msg := fmt.Sprintf("Booking created successfully. Booking ID: %d\nCar: %s (%s)\nDates: %s to %s\nTotal cost: $%.2f",
		b.ID, car.Name(), car.LicensePlate, b.StartDate, b.EndDate, total)
	if !b.TermsAccepted {
		msg += "\nPlease review the rental terms: type 'terms'."
	}
	return Result{Success: true, Message: msg, SideEffect: true}, nil
}

func (e *Executor) viewBookings(ctx context.Context, sess *session.Session, _ Args) (Result, error) {
	bookings, err := e.rentals.ListUserBookings(ctx, sess.UserID)
	if err != nil {
		return Result{}, err
	}
	if len(bookings) == 0 {
		return Result{Success: true, Message: MsgNoBookings}, nil
	}
	return Result{Success: true, Message: "Your bookings:\n" + formatBookings(bookings, false)}, nil
}

func (e *Executor) cancelBooking(ctx context.Context, sess *session.Session, args Args) (Result, error) {
	idLabel := "Enter Booking ID to cancel"
	if prompterFrom(ctx) != nil && args["booking_id"] == "" {
		bookings, err := e.rentals.ListUserBookings(ctx, sess.UserID)
		if err != nil {
			return Result{}, err
		}
		if len(bookings) == 0 && !sess.IsAdmin() {
			return failure(MsgNoBookings), nil
		}
		if len(bookings) > 0 {
			idLabel = "Your bookings:\n" + formatBookings(bookings, false) + "\n" + idLabel
		}
	}

	args, err := gather(ctx, args, param{name: "booking_id", label: idLabel})
	if err != nil {
		return Result{}, err
	}
	var p cancelParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}

	b, err := e.rentals.GetBooking(ctx, p.BookingID)
	if errors.Is(err, store.ErrNotFound) {
		return failure(MsgBookingNotFound), nil
	}
	if err != nil {
		return Result{}, err
	}
	if b.UserID != sess.UserID && !sess.IsAdmin() {
		return failure(MsgBookingNotFound), nil
	}
	if b.Status == store.BookingCancelled {
		return failure("Booking is already cancelled."), nil
	}

	if !sess.IsAdmin() {
		start, err := b.Start()
		if err != nil {
			return Result{}, fmt.Errorf("booking %d has malformed start date: %w", b.ID, err)
		}
		if start.Sub(e.now()) <= e.grace {
			return failure(MsgWithinGraceSpan), nil
		}
	}

	if err := e.rentals.CancelBooking(ctx, b.ID); err != nil {
		return Result{}, err
	}
	e.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindBookingCancelled,
		UserID:  sess.UserID,
		Target:  strconv.FormatInt(b.ID, 10),
		Details: map[string]any{"owner_id": b.UserID, "start_date": b.StartDate},
	})
	return Result{Success: true, Message: MsgBookingCancelled, SideEffect: true}, nil
}

func (e *Executor) terms(_ context.Context, _ *session.Session, _ Args) (Result, error) {
	return Result{Success: true, Message: TermsText}, nil
}

func (e *Executor) acceptTerms(ctx context.Context, sess *session.Session, _ Args) (Result, error) {
	if err := e.rentals.AcceptTerms(ctx, sess.UserID, e.now()); err != nil {
		return Result{}, err
	}
	e.notifier.Notify(ctx, audit.Event{Kind: audit.KindTermsAccepted, UserID: sess.UserID})
	return Result{Success: true, Message: MsgTermsAccepted, SideEffect: true}, nil
}

func (e *Executor) help(_ context.Context, sess *session.Session, _ Args) (Result, error) {
	admin := sess != nil && !sess.Expired(e.now()) && sess.IsAdmin()
	return Result{Success: true, Message: HelpText(admin)}, nil
}

func formatCars(cars []*store.Car) string {
	var sb strings.Builder
	for _, c := range cars {
		fmt.Fprintf(&sb, "Car ID: %d - %s (%s) - $%.2f/day [%s]\n",
			c.ID, c.Name(), c.LicensePlate, c.DailyRate, c.Category)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatBookings(bookings []*store.Booking, withUser bool) string {
	var sb strings.Builder
	for _, b := range bookings {
		fmt.Fprintf(&sb, "Booking ID: %d - %s (%s) - %s to %s - $%.2f - %s",
			b.ID, b.CarName, b.Plate, b.StartDate, b.EndDate, b.TotalAmount, b.Status)
		if withUser {
			fmt.Fprintf(&sb, " - %s", b.UserEmail)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
