// Package lifecycle holds the booking state machine and the table
// availability rules. It performs no I/O: callers pass in the current time
// and the records involved and persist whatever the functions decide.
package lifecycle

import (
	"time"

	"billiard-admin-backend/internal/model"
)

// Event is what drives a booking from one status to another.
type Event string

const (
	// EventStart fires when now enters [start, end).
	EventStart Event = "start"
	// EventExpire fires when now reaches end.
	EventExpire Event = "expire"
	// EventEndSession is the manual "end session" override.
	EventEndSession Event = "end_session"
	// EventCancel is only ever triggered by staff.
	EventCancel Event = "cancel"
)

// Transition is a single allowed edge in the booking state machine.
type Transition struct {
	From  model.BookingStatus
	To    model.BookingStatus
	Event Event
}

var transitionsTable = []Transition{
	{From: model.BookingReserved, To: model.BookingInProgress, Event: EventStart},

	{From: model.BookingReserved, To: model.BookingCompleted, Event: EventExpire},
	{From: model.BookingInProgress, To: model.BookingCompleted, Event: EventExpire},

	{From: model.BookingInProgress, To: model.BookingCompleted, Event: EventEndSession},

	{From: model.BookingReserved, To: model.BookingCancelled, Event: EventCancel},
	{From: model.BookingInProgress, To: model.BookingCancelled, Event: EventCancel},
}

// TransitionFor returns the allowed transition for a given status and event.
func TransitionFor(from model.BookingStatus, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// IsActive reports whether a booking in status s still holds its table.
func IsActive(s model.BookingStatus) bool {
	return s == model.BookingReserved || s == model.BookingInProgress
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s model.BookingStatus) bool {
	return s == model.BookingCompleted || s == model.BookingCancelled
}

// Decide returns the time-driven transition a booking needs at now, if any.
// Expiry wins over start so a window that elapsed unseen still completes.
func Decide(b model.Booking, now time.Time) (Transition, bool) {
	if !IsActive(b.Status) {
		return Transition{}, false
	}
	if !now.Before(b.EndTime) {
		return TransitionFor(b.Status, EventExpire)
	}
	if b.Status == model.BookingReserved && !now.Before(b.StartTime) {
		return TransitionFor(b.Status, EventStart)
	}
	return Transition{}, false
}

// Apply moves b along ev. Terminal transitions stamp EndedAt with now.
func Apply(b *model.Booking, ev Event, now time.Time) error {
	if IsTerminal(b.Status) {
		return ErrTerminal
	}
	tr, ok := TransitionFor(b.Status, ev)
	if !ok {
		if ev == EventEndSession && b.Status == model.BookingReserved {
			return ErrNotStarted
		}
		return ErrTransition
	}
	b.Status = tr.To
	if IsTerminal(tr.To) {
		ended := now
		b.EndedAt = &ended
	}
	return nil
}

// EndSession ends a booking by hand. The stored status is first brought up
// to date with now, so a session the sweep has not reached yet can still be
// ended, and one whose window already elapsed just completes.
func EndSession(b *model.Booking, now time.Time) error {
	if tr, ok := Decide(*b, now); ok {
		if err := Apply(b, tr.Event, now); err != nil {
			return err
		}
		if IsTerminal(b.Status) {
			return nil
		}
	}
	return Apply(b, EventEndSession, now)
}

// InitialStatus is the status a new booking starts in. A walk-in whose
// window already contains now skips straight to InProgress.
func InitialStatus(start, end, now time.Time) model.BookingStatus {
	if !now.Before(start) && now.Before(end) {
		return model.BookingInProgress
	}
	return model.BookingReserved
}

// DeriveTableStatus computes a table's status from whether it has an active
// booking. Maintenance is set by staff and is never replaced here.
func DeriveTableStatus(current model.TableStatus, hasActive bool) model.TableStatus {
	if current == model.TableMaintenance {
		return model.TableMaintenance
	}
	if hasActive {
		return model.TableOccupied
	}
	return model.TableAvailable
}
