package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"billiard-admin-backend/internal/model"
)

// Error classes. Every engine error wraps exactly one of them so callers can
// map it with errors.Is.
var (
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

var (
	ErrOverlap          = fmt.Errorf("%w: time slot already booked", ErrConflict)
	ErrTableUnavailable = fmt.Errorf("%w: table not available", ErrConflict)
	ErrTerminal         = fmt.Errorf("%w: booking already finished", ErrConflict)
	ErrNotStarted       = fmt.Errorf("%w: booking has not started", ErrConflict)
	ErrTransition       = fmt.Errorf("%w: transition not allowed", ErrConflict)

	ErrInvalidWindow = fmt.Errorf("%w: end time must be after start time", ErrValidation)
	ErrElapsed       = fmt.Errorf("%w: booking window has already elapsed", ErrValidation)
	ErrInvalidHours  = fmt.Errorf("%w: hours must be positive", ErrValidation)
)

// OverlapError lists the active bookings that collide with a requested window.
type OverlapError struct {
	Conflicts []model.Booking
}

func (e *OverlapError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, b := range e.Conflicts {
		ids[i] = fmt.Sprintf("%d", b.ID)
	}
	return fmt.Sprintf("%v (bookings %s)", ErrOverlap, strings.Join(ids, ", "))
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// UnavailableError reports the stored status that made a table unbookable.
type UnavailableError struct {
	Status model.TableStatus
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v (status %s)", ErrTableUnavailable, e.Status)
}

func (e *UnavailableError) Unwrap() error { return ErrTableUnavailable }
