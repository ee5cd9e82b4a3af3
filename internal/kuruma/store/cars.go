package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Car is one vehicle of the rental fleet.
type Car struct {
	ID           int64
	Make         string
	Model        string
	Year         int
	LicensePlate string
	// IsAvailable is the fleet flag an admin clears while a car is in
	// maintenance. Bookings do not touch it.
	IsAvailable          bool
	DailyRate            float64
	Category             string
	PurchaseDate         string
	PurchasePrice        float64
	RoadTaxExpiry        string
	InsuranceExpiry      string
	NextMaintenanceDate  string
	TotalMaintenanceCost float64
	Mileage              int
}

// Name returns "Year Make Model".
func (c *Car) Name() string {
	return fmt.Sprintf("%d %s %s", c.Year, c.Make, c.Model)
}

const carColumns = `id, make, model, year, license_plate, is_available, daily_rate, category,
	purchase_date, purchase_price, road_tax_expiry, insurance_expiry, next_maintenance_date,
	total_maintenance_cost, mileage`

// CreateCar inserts a car. A duplicate licence plate yields a ConflictError.
func (s *Store) CreateCar(ctx context.Context, c *Car) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cars (make, model, year, license_plate, is_available, daily_rate, category,
			purchase_date, purchase_price, road_tax_expiry, insurance_expiry, next_maintenance_date,
			total_maintenance_cost, mileage)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM cars WHERE license_plate = ?)
	`, c.Make, c.Model, c.Year, c.LicensePlate, boolToInt(c.IsAvailable), c.DailyRate, c.Category,
		nullString(c.PurchaseDate), c.PurchasePrice, nullString(c.RoadTaxExpiry), nullString(c.InsuranceExpiry),
		nullString(c.NextMaintenanceDate), c.TotalMaintenanceCost, c.Mileage, c.LicensePlate)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ConflictError{Reason: fmt.Sprintf("license plate %s already registered", c.LicensePlate)}
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read car id: %w", err)
	}
	return nil
}

// GetCar returns a car by id regardless of availability.
func (s *Store) GetCar(ctx context.Context, id int64) (*Car, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ?`, id)
	c, err := scanCar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "car", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get car: %w", err)
	}
	return c, nil
}

// ListAvailableCars returns every car with is_available = 1.
func (s *Store) ListAvailableCars(ctx context.Context) ([]*Car, error) {
	return s.queryCars(ctx, `SELECT `+carColumns+` FROM cars WHERE is_available = 1 ORDER BY id`)
}

// ListCars returns the whole fleet.
func (s *Store) ListCars(ctx context.Context) ([]*Car, error) {
	return s.queryCars(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
}

// CountCars returns the fleet size.
func (s *Store) CountCars(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cars`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cars: %w", err)
	}
	return n, nil
}

// SetCarAvailability flips the maintenance flag of a car.
func (s *Store) SetCarAvailability(ctx context.Context, id int64, available bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cars SET is_available = ? WHERE id = ?`, boolToInt(available), id)
	if err != nil {
		return fmt.Errorf("failed to update car availability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "car", Key: id}
	}
	return nil
}

func (s *Store) queryCars(ctx context.Context, query string, args ...any) ([]*Car, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	var cars []*Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cars: %w", err)
	}
	return cars, nil
}

func scanCar(r rowScanner) (*Car, error) {
	var (
		c                                        Car
		available                                int
		purchase, roadTax, insurance, maintainAt sql.NullString
	)
	err := r.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.LicensePlate, &available, &c.DailyRate, &c.Category,
		&purchase, &c.PurchasePrice, &roadTax, &insurance, &maintainAt, &c.TotalMaintenanceCost, &c.Mileage)
	if err != nil {
		return nil, err
	}
	c.IsAvailable = available != 0
	c.PurchaseDate = purchase.String
	c.RoadTaxExpiry = roadTax.String
	c.InsuranceExpiry = insurance.String
	c.NextMaintenanceDate = maintainAt.String
	return &c, nil
}

// fleetSeed is the sample fleet: luxury, mid-range, economy and SUV.
var fleetSeed = []Car{
	{Make: "Mercedes-Benz", Model: "S-Class", Year: 2025, LicensePlate: "MB001", DailyRate: 200, Category: "luxury"},
	{Make: "Mercedes-Benz", Model: "E-Class", Year: 2024, LicensePlate: "MB002", DailyRate: 150, Category: "luxury"},
	{Make: "BMW", Model: "7 Series", Year: 2025, LicensePlate: "BMW001", DailyRate: 190, Category: "luxury"},
	{Make: "BMW", Model: "5 Series", Year: 2024, LicensePlate: "BMW002", DailyRate: 140, Category: "luxury"},
	{Make: "Audi", Model: "A8", Year: 2025, LicensePlate: "AUD001", DailyRate: 180, Category: "luxury"},

	{Make: "Volkswagen", Model: "Passat", Year: 2024, LicensePlate: "VW001", DailyRate: 90, Category: "mid-range"},
	{Make: "Honda", Model: "Accord", Year: 2024, LicensePlate: "HON001", DailyRate: 85, Category: "mid-range"},
	{Make: "Toyota", Model: "Camry", Year: 2024, LicensePlate: "TOY001", DailyRate: 80, Category: "mid-range"},
	{Make: "Hyundai", Model: "Sonata", Year: 2024, LicensePlate: "HYU001", DailyRate: 75, Category: "mid-range"},
	{Make: "Mazda", Model: "6", Year: 2024, LicensePlate: "MAZ001", DailyRate: 78, Category: "mid-range"},

	{Make: "Toyota", Model: "Corolla", Year: 2024, LicensePlate: "TOY002", DailyRate: 65, Category: "economy"},
	{Make: "Honda", Model: "Civic", Year: 2024, LicensePlate: "HON002", DailyRate: 65, Category: "economy"},
	{Make: "Volkswagen", Model: "Golf", Year: 2024, LicensePlate: "VW002", DailyRate: 68, Category: "economy"},
	{Make: "Hyundai", Model: "Elantra", Year: 2024, LicensePlate: "HYU002", DailyRate: 60, Category: "economy"},
	{Make: "Kia", Model: "Forte", Year: 2024, LicensePlate: "KIA001", DailyRate: 58, Category: "economy"},

	{Make: "Toyota", Model: "RAV4", Year: 2024, LicensePlate: "TOY003", DailyRate: 95, Category: "suv"},
	{Make: "Honda", Model: "CR-V", Year: 2024, LicensePlate: "HON003", DailyRate: 95, Category: "suv"},
	{Make: "Mazda", Model: "CX-5", Year: 2024, LicensePlate: "MAZ002", DailyRate: 92, Category: "suv"},
	{Make: "Hyundai", Model: "Tucson", Year: 2024, LicensePlate: "HYU003", DailyRate: 88, Category: "suv"},
	{Make: "Kia", Model: "Sportage", Year: 2024, LicensePlate: "KIA002", DailyRate: 85, Category: "suv"},
}

// SeedFleet inserts the sample fleet when the cars table is empty. Asset
// dates are derived from today so the 30-day reminders have something to
// report. Returns the number of cars inserted.
func (s *Store) SeedFleet(ctx context.Context) (int, error) {
	n, err := s.CountCars(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	today := s.now().UTC()
	inserted := 0
	for i, seed := range fleetSeed {
		c := seed
		c.IsAvailable = true
		c.PurchaseDate = today.AddDate(0, -6-i%12, 0).Format(DateLayout)
		c.PurchasePrice = c.DailyRate * 365
		c.RoadTaxExpiry = today.AddDate(0, 0, 20+i*9).Format(DateLayout)
		c.InsuranceExpiry = today.AddDate(0, 0, 45+i*11).Format(DateLayout)
		c.NextMaintenanceDate = today.AddDate(0, 0, 10+i*5).Format(DateLayout)
		c.Mileage = 5000 + i*1500
		if err := s.CreateCar(ctx, &c); err != nil {
			return inserted, fmt.Errorf("failed to seed car %s: %w", c.LicensePlate, err)
		}
		inserted++
	}
	return inserted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// parseDate parses a YYYY-MM-DD value as midnight UTC.
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
