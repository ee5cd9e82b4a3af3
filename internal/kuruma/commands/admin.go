package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

func (e *Executor) adminUsers(ctx context.Context, _ *session.Session, _ Args) (Result, error) {
	users, err := e.admin.ListUsers(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(users) == 0 {
		return Result{Success: true, Message: "No users registered."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Registered users:\n")
	for _, u := range users {
		lastLogin := "never"
		if !u.LastLogin.IsZero() {
			lastLogin = u.LastLogin.UTC().Format(time.RFC3339)
		}
		state := "active"
		if !u.IsActive {
			state = "disabled"
		}
		fmt.Fprintf(&sb, "User ID: %d - %s - %s - %s - last login %s\n", u.ID, u.Email, u.Role, state, lastLogin)
	}
	return Result{Success: true, Message: strings.TrimRight(sb.String(), "\n")}, nil
}

func (e *Executor) adminBookings(ctx context.Context, _ *session.Session, _ Args) (Result, error) {
	bookings, err := e.admin.ListAllBookings(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(bookings) == 0 {
		return Result{Success: true, Message: MsgNoBookings}, nil
	}
	return Result{Success: true, Message: "All bookings:\n" + formatBookings(bookings, true)}, nil
}

func (e *Executor) adminSearch(ctx context.Context, _ *session.Session, args Args) (Result, error) {
	args, err := gather(ctx, args, param{name: "email", label: "Enter email (or part of it) to search"})
	if err != nil {
		return Result{}, err
	}
	var p searchParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}

	bookings, err := e.admin.SearchBookingsByEmail(ctx, strings.ToLower(p.Email))
	if err != nil {
		return Result{}, err
	}
	if len(bookings) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("No bookings found for %q.", p.Email)}, nil
	}
	return Result{Success: true, Message: "Matching bookings:\n" + formatBookings(bookings, true)}, nil
}

func (e *Executor) adminCarStatus(ctx context.Context, _ *session.Session, _ Args) (Result, error) {
	status, err := e.admin.GetCarStatus(ctx)
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Fleet status: %d available, %d unavailable\n", status.Available, status.Unavailable)
	for _, c := range status.Cars {
		state := "available"
		if !c.IsAvailable {
			state = "unavailable"
		}
		fmt.Fprintf(&sb, "Car ID: %d - %s (%s) - %s - %d km\n", c.ID, c.Name(), c.LicensePlate, state, c.Mileage)
	}
	return Result{Success: true, Message: strings.TrimRight(sb.String(), "\n")}, nil
}

func (e *Executor) adminAssets(ctx context.Context, _ *session.Session, _ Args) (Result, error) {
	sum, err := e.admin.GetAssetSummary(ctx, e.now())
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Fleet size: %d cars\n", sum.TotalCars)
	fmt.Fprintf(&sb, "Fleet value: $%.2f\n", sum.FleetValue)
	fmt.Fprintf(&sb, "Maintenance spend: $%.2f\n", sum.MaintenanceSpend)
	fmt.Fprintf(&sb, "Total mileage: %d km\n", sum.TotalMileage)
	if len(sum.Due) == 0 {
		sb.WriteString("Nothing due in the next 30 days.")
		return Result{Success: true, Message: sb.String()}, nil
	}
	sb.WriteString("Due in the next 30 days:\n")
	for _, d := range sum.Due {
		fmt.Fprintf(&sb, "  %s - Car ID: %d - %s (%s) - %s\n", d.Due, d.CarID, d.CarName, d.Plate, d.Kind)
	}
	return Result{Success: true, Message: strings.TrimRight(sb.String(), "\n")}, nil
}

func (e *Executor) adminRevenue(ctx context.Context, _ *session.Session, args Args) (Result, error) {
	args, err := gather(ctx, args,
		param{name: "start_date", label: "Enter start date (YYYY-MM-DD)"},
		param{name: "end_date", label: "Enter end date (YYYY-MM-DD)"},
	)
	if err != nil {
		return Result{}, err
	}
	var p revenueParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}

	from, err := time.Parse(store.DateLayout, p.StartDate)
	if err != nil {
		return Result{}, invalid("start_date", "invalid start date %q, expected YYYY-MM-DD", p.StartDate)
	}
	to, err := time.Parse(store.DateLayout, p.EndDate)
	if err != nil {
		return Result{}, invalid("end_date", "invalid end date %q, expected YYYY-MM-DD", p.EndDate)
	}
	if to.Before(from) {
		return Result{}, invalid("end_date", "end date must not be before start date")
	}

	stats, err := e.admin.GetRevenueStats(ctx, p.StartDate, p.EndDate)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Revenue %s to %s:\nBookings: %d\nTotal revenue: $%.2f\nAverage booking: $%.2f\nRental days: %d\nCancelled: %d",
		stats.From, stats.To, stats.Bookings, stats.Revenue, stats.Average, stats.RentalDays, stats.Cancelled)
	return Result{Success: true, Message: msg}, nil
}

func (e *Executor) adminMaintenance(ctx context.Context, sess *session.Session, args Args) (Result, error) {
	args, err := gather(ctx, args,
		param{name: "car_id", label: "Enter Car ID"},
		param{name: "available", label: "Available for rent? (yes/no)"},
	)
	if err != nil {
		return Result{}, err
	}
	if v, ok := yesNo(args["available"]); ok {
		args["available"] = strconv.FormatBool(v)
	}
	var p maintenanceParams
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}

	if err := e.admin.SetCarAvailability(ctx, p.CarID, p.Available); err != nil {
		return Result{}, err
	}
	e.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindCarMaintenance,
		UserID:  sess.UserID,
		Target:  strconv.FormatInt(p.CarID, 10),
		Details: map[string]any{"available": p.Available},
	})

	state := "available"
	if !p.Available {
		state = "unavailable (maintenance)"
	}
	return Result{Success: true, Message: fmt.Sprintf("Car %d marked %s.", p.CarID, state), SideEffect: true}, nil
}

func (e *Executor) adminAudit(ctx context.Context, _ *session.Session, args Args) (Result, error) {
	args, err := gather(ctx, args, param{name: "limit", label: "Number of entries (default 20)", optional: true})
	if err != nil {
		return Result{}, err
	}
	p := auditParams{Limit: defaultAuditLimit}
	if err := decode(args, &p); err != nil {
		return Result{}, err
	}
	if p.Limit <= 0 {
		return Result{}, invalid("limit", "limit must be positive")
	}

	entries, err := e.admin.GetAuditLog(ctx, p.Limit)
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{Success: true, Message: "Audit log is empty."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Recent audit entries:\n")
	for _, a := range entries {
		user := "-"
		if a.UserID.Valid {
			user = strconv.FormatInt(a.UserID.Int64, 10)
		}
		fmt.Fprintf(&sb, "[%s] user=%s action=%s target=%s result=%s trace=%s\n",
			a.Timestamp.UTC().Format(time.RFC3339), user, a.Action, a.Target.String, a.Result, a.TraceID)
	}
	return Result{Success: true, Message: strings.TrimRight(sb.String(), "\n")}, nil
}

func yesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "on", "available":
		return true, true
	case "n", "no", "off", "unavailable":
		return false, true
	}
	return false, false
}
