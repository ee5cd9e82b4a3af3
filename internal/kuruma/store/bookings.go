package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// Booking is a reservation of one car over an inclusive date range.
type Booking struct {
	ID            int64
	UserID        int64
	CarID         int64
	StartDate     string
	EndDate       string
	BookingDate   time.Time
	TermsAccepted bool
	Status        string
	TotalAmount   float64

	// Populated by list queries.
	UserEmail string
	CarName   string
	Plate     string
}

// Start returns the start date as midnight UTC.
func (b *Booking) Start() (time.Time, error) {
	return parseDate(b.StartDate)
}

// Days returns the number of rental days covered by the booking.
func (b *Booking) Days() int {
	start, err1 := parseDate(b.StartDate)
	end, err2 := parseDate(b.EndDate)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

const bookingSelect = `
	SELECT b.id, b.user_id, b.car_id, b.start_date, b.end_date, b.booking_date, b.terms_accepted,
		b.status, b.total_amount, u.email, c.year || ' ' || c.make || ' ' || c.model, c.license_plate
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	JOIN cars c ON c.id = b.car_id`

// CreateBooking checks that the car exists and is available, checks that no
// non-cancelled booking of the same car overlaps [StartDate, EndDate]
// (inclusive on both ends), and inserts the booking. All three steps run in
// one transaction.
func (s *Store) CreateBooking(ctx context.Context, b *Booking) error {
	start, err := parseDate(b.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", b.StartDate, err)
	}
	end, err := parseDate(b.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", b.EndDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", b.EndDate, b.StartDate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin booking: %w", err)
	}
	defer tx.Rollback()

	var available int
	err = tx.QueryRowContext(ctx, `SELECT is_available FROM cars WHERE id = ?`, b.CarID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: "car", Key: b.CarID}
	}
	if err != nil {
		return fmt.Errorf("failed to check car: %w", err)
	}
	if available == 0 {
		return &ConflictError{Reason: "car is not available for booking"}
	}

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE car_id = ? AND status != ? AND start_date <= ? AND end_date >= ?
	`, b.CarID, BookingCancelled, b.EndDate, b.StartDate).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	if overlapping > 0 {
		return &ConflictError{Reason: "car is already booked for these dates"}
	}

	if b.Status == "" {
		b.Status = BookingConfirmed
	}
	b.BookingDate = s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (user_id, car_id, start_date, end_date, booking_date, terms_accepted, status, total_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.UserID, b.CarID, b.StartDate, b.EndDate, formatTime(b.BookingDate), boolToInt(b.TermsAccepted), b.Status, b.TotalAmount)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read booking id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// GetBooking returns one booking by id.
func (s *Store) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "booking", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListUserBookings returns a user's bookings, most recent start first.
func (s *Store) ListUserBookings(ctx context.Context, userID int64) ([]*Booking, error) {
	return s.queryBookings(ctx, bookingSelect+` WHERE b.user_id = ? ORDER BY b.start_date DESC, b.id DESC`, userID)
}

// ListAllBookings returns every booking, most recent start first.
func (s *Store) ListAllBookings(ctx context.Context) ([]*Booking, error) {
	return s.queryBookings(ctx, bookingSelect+` ORDER BY b.start_date DESC, b.id DESC`)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchBookingsByEmail returns bookings whose user email contains term.
// The term is matched literally.
func (s *Store) SearchBookingsByEmail(ctx context.Context, term string) ([]*Booking, error) {
	return s.queryBookings(ctx, bookingSelect+` WHERE u.email LIKE '%' || ? || '%' ESCAPE '\' ORDER BY b.start_date DESC, b.id DESC`, likeEscaper.Replace(term))
}

// CancelBooking marks a booking cancelled. Cancelling twice is a conflict.
func (s *Store) CancelBooking(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cancellation: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: "booking", Key: id}
	}
	if err != nil {
		return fmt.Errorf("failed to get booking status: %w", err)
	}
	if status == BookingCancelled {
		return &ConflictError{Reason: "booking is already cancelled"}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, BookingCancelled, id); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return nil
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]*Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(r rowScanner) (*Booking, error) {
	var (
		b       Booking
		booked  sql.NullString
		termsOK int
	)
	err := r.Scan(&b.ID, &b.UserID, &b.CarID, &b.StartDate, &b.EndDate, &booked, &termsOK,
		&b.Status, &b.TotalAmount, &b.UserEmail, &b.CarName, &b.Plate)
	if err != nil {
		return nil, err
	}
	b.BookingDate = parseTime(booked)
	b.TermsAccepted = termsOK != 0
	return &b, nil
}
