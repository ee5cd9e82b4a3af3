package store

import (
	"context"
	"fmt"
	"time"
)

// ReminderWindow is how far ahead AssetSummary looks for due items.
const ReminderWindow = 30 * 24 * time.Hour

// CarStatus summarises fleet availability.
type CarStatus struct {
	Available   int
	Unavailable int
	Cars        []*Car
}

// RevenueStats aggregates non-cancelled bookings starting within a range.
type RevenueStats struct {
	From       string
	To         string
	Bookings   int
	Revenue    float64
	Average    float64
	RentalDays int
	Cancelled  int
}

// DueItem is an asset date falling inside the reminder window.
type DueItem struct {
	CarID   int64
	CarName string
	Plate   string
	Kind    string
	Due     string
}

// AssetSummary reports fleet value and upcoming asset obligations.
type AssetSummary struct {
	TotalCars        int
	FleetValue       float64
	MaintenanceSpend float64
	TotalMileage     int
	Due              []DueItem
}

// GetCarStatus returns availability counts and the whole fleet.
func (s *Store) GetCarStatus(ctx context.Context) (*CarStatus, error) {
	cars, err := s.ListCars(ctx)
	if err != nil {
		return nil, err
	}
	status := &CarStatus{Cars: cars}
	for _, c := range cars {
		if c.IsAvailable {
			status.Available++
		} else {
			status.Unavailable++
		}
	}
	return status, nil
}

// GetRevenueStats aggregates bookings whose start date lies in [from, to].
// Both bounds are YYYY-MM-DD.
func (s *Store) GetRevenueStats(ctx context.Context, from, to string) (*RevenueStats, error) {
	if _, err := parseDate(from); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	if _, err := parseDate(to); err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", to, err)
	}

	stats := &RevenueStats{From: from, To: to}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_amount), 0),
			COALESCE(AVG(total_amount), 0),
			COALESCE(SUM(CAST(julianday(end_date) - julianday(start_date) AS INTEGER)), 0)
		FROM bookings
		WHERE status != ? AND start_date >= ? AND start_date <= ?
	`, BookingCancelled, from, to).Scan(&stats.Bookings, &stats.Revenue, &stats.Average, &stats.RentalDays)
	if err != nil {
		return nil, fmt.Errorf("failed to compute revenue: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE status = ? AND start_date >= ? AND start_date <= ?
	`, BookingCancelled, from, to).Scan(&stats.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to count cancellations: %w", err)
	}
	return stats, nil
}

// GetAssetSummary returns fleet totals plus road tax, insurance and
// maintenance dates falling within ReminderWindow of now.
func (s *Store) GetAssetSummary(ctx context.Context, now time.Time) (*AssetSummary, error) {
	cars, err := s.ListCars(ctx)
	if err != nil {
		return nil, err
	}

	today := now.UTC().Format(DateLayout)
	horizon := now.UTC().Add(ReminderWindow).Format(DateLayout)
	within := func(d string) bool {
		return d != "" && d >= today && d <= horizon
	}

	summary := &AssetSummary{TotalCars: len(cars)}
	for _, c := range cars {
		summary.FleetValue += c.PurchasePrice
		summary.MaintenanceSpend += c.TotalMaintenanceCost
		summary.TotalMileage += c.Mileage

		for _, item := range []struct{ kind, date string }{
			{"road tax", c.RoadTaxExpiry},
			{"insurance", c.InsuranceExpiry},
			{"maintenance", c.NextMaintenanceDate},
		} {
			if within(item.date) {
				summary.Due = append(summary.Due, DueItem{
					CarID:   c.ID,
					CarName: c.Name(),
					Plate:   c.LicensePlate,
					Kind:    item.kind,
					Due:     item.date,
				})
			}
		}
	}
	return summary, nil
}
