package store

import (
	"errors"
	"time"

	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/model"
)

// ErrNotFound is returned when a table or booking id does not exist.
var ErrNotFound = errors.New("not found")

// BookingFilter narrows ListBookings. Zero values mean "no constraint".
type BookingFilter struct {
	TableID  int64
	Statuses []model.BookingStatus

	// StartFrom and StartUntil bound StartTime as [StartFrom, StartUntil).
	StartFrom  time.Time
	StartUntil time.Time
	// EndsBefore keeps bookings with EndTime <= EndsBefore.
	EndsBefore time.Time
	// EndsAfter keeps bookings with EndTime > EndsAfter.
	EndsAfter  time.Time

	WithTable   bool
	NewestFirst bool
	Limit       int
}

// BuildFunc receives the locked table and its active bookings and returns the
// booking to insert, or an error to abort the transaction.
type BuildFunc func(table model.Table, active []model.Booking) (*model.Booking, error)

// MutateFunc receives the locked booking and the other active bookings on its
// table and modifies the booking in place.
type MutateFunc func(b *model.Booking, siblings []model.Booking) error

// Result is what a single-booking write committed.
type Result struct {
	Booking model.Booking
	Table   lifecycle.TableChange
}

// Snapshot is the working set a sweep plans against.
type Snapshot struct {
	Tables   []model.Table
	Bookings []model.Booking
}
