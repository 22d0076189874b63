package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"billiard-admin-backend/internal/model"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Conflicts returns the active bookings in existing that intersect
// [start, end), ignoring the booking with id exceptID.
func Conflicts(existing []model.Booking, start, end time.Time, exceptID int64) []model.Booking {
	var out []model.Booking
	for _, b := range existing {
		if b.ID == exceptID || !IsActive(b.Status) {
			continue
		}
		if Overlaps(b.StartTime, b.EndTime, start, end) {
			out = append(out, b)
		}
	}
	return out
}

// ValidateWindow checks that a window is well formed.
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || !end.After(start) {
		return ErrInvalidWindow
	}
	return nil
}

// CheckAvailability decides whether table can take a new booking for
// [start, end) given the table's existing bookings. The stored status is
// checked as well as the bookings themselves.
func CheckAvailability(table model.Table, existing []model.Booking, start, end time.Time) error {
	if err := ValidateWindow(start, end); err != nil {
		return err
	}
	if table.Status != model.TableAvailable {
		return &UnavailableError{Status: table.Status}
	}
	if c := Conflicts(existing, start, end, 0); len(c) > 0 {
		return &OverlapError{Conflicts: c}
	}
	return nil
}

// HoursToDuration converts a possibly fractional number of hours, rounded to
// the second.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour)).Round(time.Second)
}

// Price is rate × hours.
func Price(rate decimal.Decimal, hours float64) decimal.Decimal {
	return rate.Mul(decimal.NewFromFloat(hours))
}

// Extend lengthens an active booking by hours, keeping end time, duration and
// total price consistent.
func Extend(b *model.Booking, hours float64) error {
	if hours <= 0 {
		return ErrInvalidHours
	}
	if !IsActive(b.Status) {
		return ErrTerminal
	}
	b.EndTime = b.EndTime.Add(HoursToDuration(hours))
	b.DurationHours += hours
	b.TotalPrice = b.TotalPrice.Add(Price(b.HourlyRate, hours))
	return nil
}
