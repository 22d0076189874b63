// Package booking implements the staff-facing booking operations: create,
// extend, end session and cancel. Each one runs the lifecycle rules inside a
// single store transaction and then fans the outcome out to notifications and
// events.
package booking

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"billiard-admin-backend/internal/clock"
	"billiard-admin-backend/internal/events"
	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/model"
	"billiard-admin-backend/internal/store"
)

// Error taxonomy exposed to callers. Anything else is an internal failure.
var (
	ErrNotFound   = store.ErrNotFound
	ErrConflict   = lifecycle.ErrConflict
	ErrValidation = lifecycle.ErrValidation
)

// Notifier is told about tables that just became available.
type Notifier interface {
	Dispatch(tableID int64)
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(int64) {}

// CreateInput is a validated request to book a table.
type CreateInput struct {
	CustomerName  string
	TableID       int64
	StartTime     time.Time
	DurationHours float64
	Notes         string
}

// Service runs booking operations against the store.
type Service struct {
	store    store.Store
	clock    clock.Clock
	events   events.Publisher
	notifier Notifier
	maxHours float64
}

// NewService wires a booking service. A nil publisher or notifier disables
// that side effect.
func NewService(s store.Store, c clock.Clock, pub events.Publisher, n Notifier, maxHours float64) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if n == nil {
		n = noopNotifier{}
	}
	return &Service{store: s, clock: c, events: pub, notifier: n, maxHours: maxHours}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (s *Service) validateHours(hours float64) error {
	if hours <= 0 {
		return lifecycle.ErrInvalidHours
	}
	if s.maxHours > 0 && hours > s.maxHours {
		return validationf("at most %g hours can be booked at once", s.maxHours)
	}
	return nil
}

// Create books a table. The availability check and the insert share one
// transaction with the table row locked.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Booking, error) {
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return nil, validationf("customer name is required")
	}
	if in.TableID <= 0 {
		return nil, validationf("table id is required")
	}
	if in.StartTime.IsZero() {
		return nil, validationf("start time is required")
	}
	if err := s.validateHours(in.DurationHours); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start := in.StartTime.UTC()
	end := start.Add(lifecycle.HoursToDuration(in.DurationHours))
	if !now.Before(end) {
		return nil, lifecycle.ErrElapsed
	}

	res, err := s.store.CreateBooking(ctx, in.TableID, func(table model.Table, active []model.Booking) (*model.Booking, error) {
		if err := lifecycle.CheckAvailability(table, active, start, end); err != nil {
			return nil, err
		}
		return &model.Booking{
			Reference:     uuid.New(),
			CustomerName:  name,
			Notes:         strings.TrimSpace(in.Notes),
			StartTime:     start,
			EndTime:       end,
			DurationHours: in.DurationHours,
			HourlyRate:    table.HourlyRate,
			TotalPrice:    lifecycle.Price(table.HourlyRate, in.DurationHours),
			Status:        lifecycle.InitialStatus(start, end, now),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("booking: created %d on table %d [%s, %s) as %s",
		res.Booking.ID, res.Booking.TableID, start.Format(time.RFC3339), end.Format(time.RFC3339), res.Booking.Status)
	s.publish(ctx, events.BookingCreated, res, now)
	return &res.Booking, nil
}

// Extend adds hours to an active booking. The longer window is checked
// against the other active bookings of the same table.
func (s *Service) Extend(ctx context.Context, bookingID int64, hours float64) (*model.Booking, error) {
	if bookingID <= 0 {
		return nil, validationf("booking id is required")
	}
	if hours <= 0 {
		return nil, lifecycle.ErrInvalidHours
	}

	res, err := s.store.MutateBooking(ctx, bookingID, func(b *model.Booking, siblings []model.Booking) error {
		if err := lifecycle.Extend(b, hours); err != nil {
			return err
		}
		if c := lifecycle.Conflicts(siblings, b.StartTime, b.EndTime, b.ID); len(c) > 0 {
			return &lifecycle.OverlapError{Conflicts: c}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("booking: extended %d by %gh, now ends %s", bookingID, hours, res.Booking.EndTime.Format(time.RFC3339))
	s.publish(ctx, events.BookingExtended, res, s.clock.Now())
	return &res.Booking, nil
}

// End force-completes a booking whose window has opened, regardless of its
// end time. A reservation that has not started yet is refused.
func (s *Service) End(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return s.finish(ctx, bookingID, "ended", lifecycle.EndSession, events.BookingCompleted)
}

// Cancel cancels a booking that has not finished yet.
func (s *Service) Cancel(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return s.finish(ctx, bookingID, "cancelled", func(b *model.Booking, now time.Time) error {
		return lifecycle.Apply(b, lifecycle.EventCancel, now)
	}, events.BookingCancelled)
}

func (s *Service) finish(ctx context.Context, bookingID int64, verb string, apply func(*model.Booking, time.Time) error, typ events.Type) (*model.Booking, error) {
	if bookingID <= 0 {
		return nil, validationf("booking id is required")
	}

	now := s.clock.Now()
	res, err := s.store.MutateBooking(ctx, bookingID, func(b *model.Booking, _ []model.Booking) error {
		return apply(b, now.UTC())
	})
	if err != nil {
		return nil, err
	}

	log.Printf("booking: %s %d, table %d is %s", verb, bookingID, res.Table.TableID, res.Table.To)
	if res.Table.Freed() {
		s.notifier.Dispatch(res.Table.TableID)
	}
	s.publish(ctx, typ, res, now)
	return &res.Booking, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, res *store.Result, at time.Time) {
	ev := events.NewBookingEvent(typ, res.Booking, res.Table.To, at)
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("booking: publish %s for booking %d failed: %v", typ, res.Booking.ID, err)
	}
}
