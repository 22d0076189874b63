package lifecycle

import (
	"sort"
	"time"

	"billiard-admin-backend/internal/model"
)

// TableChange records a table status update.
type TableChange struct {
	TableID int64             `json:"table_id"`
	From    model.TableStatus `json:"from"`
	To      model.TableStatus `json:"to"`
}

// Changed reports whether the status actually moved.
func (c TableChange) Changed() bool { return c.From != c.To }

// Freed reports whether the table just became bookable again.
func (c TableChange) Freed() bool {
	return c.To == model.TableAvailable && c.From != model.TableAvailable
}

// Plan is the set of transitions one sweep must commit, computed from a
// single snapshot and a single now. Phases are applied in field order.
type Plan struct {
	Now time.Time
	// Activate holds Reserved bookings whose window contains Now.
	Activate []model.Booking
	// Derive holds tables whose stored status disagrees with their bookings
	// once activation is done.
	Derive []TableChange
	// Complete holds active bookings whose end time has passed, including
	// ones that were never seen InProgress.
	Complete []model.Booking
	// InProgress is diagnostic only: bookings running inside their window.
	InProgress []model.Booking
}

// Empty reports whether the plan has nothing to write.
func (p Plan) Empty() bool {
	return len(p.Activate) == 0 && len(p.Derive) == 0 && len(p.Complete) == 0
}

// PlanSweep decides what a reconciliation sweep has to do at now, given all
// tables and their active bookings. Bookings in terminal states may be
// included and are ignored.
func PlanSweep(now time.Time, tables []model.Table, bookings []model.Booking) Plan {
	plan := Plan{Now: now}

	status := make(map[int64]model.BookingStatus, len(bookings))
	for _, b := range bookings {
		status[b.ID] = b.Status
		if b.Status == model.BookingReserved && !now.Before(b.StartTime) && now.Before(b.EndTime) {
			plan.Activate = append(plan.Activate, b)
			status[b.ID] = model.BookingInProgress
		}
	}

	active := make(map[int64]bool)
	for _, b := range bookings {
		if IsActive(status[b.ID]) {
			active[b.TableID] = true
		}
	}
	for _, t := range tables {
		want := DeriveTableStatus(t.Status, active[t.ID])
		if want != t.Status {
			plan.Derive = append(plan.Derive, TableChange{TableID: t.ID, From: t.Status, To: want})
		}
	}

	for _, b := range bookings {
		s := status[b.ID]
		if !IsActive(s) {
			continue
		}
		if !now.Before(b.EndTime) {
			plan.Complete = append(plan.Complete, b)
			continue
		}
		if s == model.BookingInProgress && !now.Before(b.StartTime) {
			plan.InProgress = append(plan.InProgress, b)
		}
	}

	sort.Slice(plan.Derive, func(i, j int) bool { return plan.Derive[i].TableID < plan.Derive[j].TableID })
	return plan
}
