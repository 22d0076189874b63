// Package sweep runs the periodic reconciliation that moves bookings along
// with the clock and keeps table statuses in line with their bookings.
package sweep

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"billiard-admin-backend/config"
	"billiard-admin-backend/internal/clock"
	"billiard-admin-backend/internal/events"
	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/lock"
	"billiard-admin-backend/internal/model"
	"billiard-admin-backend/internal/store"
)

// Notifier is told about tables that just became available.
type Notifier interface {
	Dispatch(tableID int64)
}

// Report summarizes one sweep.
type Report struct {
	RunID         uuid.UUID               `json:"run_id"`
	Now           time.Time               `json:"now"`
	Skipped       bool                    `json:"skipped"`
	Activated     []int64                 `json:"activated"`
	Completed     []int64                 `json:"completed"`
	TablesUpdated []lifecycle.TableChange `json:"tables_updated"`
	InProgress    int                     `json:"in_progress"`
	Failed        int                     `json:"failed"`
}

// Service orchestrates the sweep.
type Service struct {
	cfg      config.SweepConfig
	store    store.Store
	clock    clock.Clock
	locker   lock.Locker
	notifier Notifier
	events   events.Publisher

	running atomic.Bool
}

// NewService creates a sweep service. locker, notifier and pub may be nil.
func NewService(cfg config.SweepConfig, st store.Store, clk clock.Clock, locker lock.Locker, n Notifier, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		clock:    clk,
		locker:   locker,
		notifier: n,
		events:   pub,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Sweep is disabled. Not starting.")
		return
	}
	log.Printf("Starting sweep service, interval %s...", s.cfg.Interval)

	s.tick(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweep service shutting down.")
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil {
		log.Printf("Sweep failed: %v", err)
	}
}

// SweepOnce runs a single sweep. It returns a skipped report if another
// sweep holds the lock. Failures on individual bookings or tables are logged
// and counted and do not stop the rest of the sweep.
func (s *Service) SweepOnce(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New()}

	if !s.running.CompareAndSwap(false, true) {
		log.Printf("sweep %s: previous sweep still running, skipping", report.RunID)
		report.Skipped = true
		return report, nil
	}
	defer s.running.Store(false)

	if s.locker != nil {
		lease, ok, err := s.locker.TryAcquire(ctx, s.lockTTL())
		switch {
		case err != nil:
			// Every write below is conditional on the stored status, so a
			// concurrent sweep elsewhere cannot double-apply anything.
			log.Printf("sweep %s: lock unavailable, sweeping anyway: %v", report.RunID, err)
		case !ok:
			log.Printf("sweep %s: another instance holds the lock, skipping", report.RunID)
			report.Skipped = true
			return report, nil
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, lock.ErrNotHeld) {
					log.Printf("sweep %s: release lock: %v", report.RunID, err)
				}
			}()
		}
	}

	now := s.clock.Now()
	report.Now = now

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	plan := lifecycle.PlanSweep(now, snap.Tables, snap.Bookings)
	report.InProgress = len(plan.InProgress)

	tableStatus := make(map[int64]model.TableStatus, len(snap.Tables))
	for _, t := range snap.Tables {
		tableStatus[t.ID] = t.Status
	}

	// Phase 1: reservations whose window has opened.
	for _, b := range plan.Activate {
		ok, err := s.store.ActivateBooking(ctx, b.ID, now)
		if err != nil {
			log.Printf("sweep %s: activate booking %d: %v", report.RunID, b.ID, err)
			report.Failed++
			continue
		}
		if !ok {
			continue
		}
		report.Activated = append(report.Activated, b.ID)
		if tableStatus[b.TableID] != model.TableMaintenance {
			tableStatus[b.TableID] = model.TableOccupied
		}
		b.Status = model.BookingInProgress
		s.publish(ctx, events.NewBookingEvent(events.BookingStarted, b, tableStatus[b.TableID], now))
	}

	// Phase 2: tables whose stored status disagrees with their bookings.
	for _, c := range plan.Derive {
		change, err := s.store.SyncTableStatus(ctx, c.TableID)
		if err != nil {
			log.Printf("sweep %s: sync table %d: %v", report.RunID, c.TableID, err)
			report.Failed++
			continue
		}
		s.recordTable(report, change)
	}

	// Phase 3: bookings whose end time has passed.
	for _, b := range plan.Complete {
		res, err := s.store.CompleteBooking(ctx, b.ID, now)
		if err != nil {
			log.Printf("sweep %s: complete booking %d: %v", report.RunID, b.ID, err)
			report.Failed++
			continue
		}
		if res.Booking.ID == 0 {
			continue
		}
		report.Completed = append(report.Completed, b.ID)
		s.recordTable(report, res.Table)
		s.publish(ctx, events.NewBookingEvent(events.BookingCompleted, res.Booking, res.Table.To, now))
	}

	if plan.Empty() && report.InProgress == 0 {
		log.Printf("sweep %s: nothing to do", report.RunID)
	} else {
		log.Printf("sweep %s: activated %d, completed %d, tables updated %d, in progress %d, failed %d",
			report.RunID, len(report.Activated), len(report.Completed), len(report.TablesUpdated), report.InProgress, report.Failed)
	}
	return report, nil
}

func (s *Service) recordTable(report *Report, change lifecycle.TableChange) {
	if !change.Changed() {
		return
	}
	report.TablesUpdated = append(report.TablesUpdated, change)
	if change.Freed() && s.notifier != nil {
		s.notifier.Dispatch(change.TableID)
	}
}

func (s *Service) publish(ctx context.Context, ev events.BookingEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("sweep: publish %s for booking %d failed: %v", ev.Type, ev.BookingID, err)
	}
}

// lockTTL outlives a normal sweep but expires before the next tick would
// need the lock, so a crashed holder only costs one interval.
func (s *Service) lockTTL() time.Duration {
	if s.cfg.Interval > 0 {
		return s.cfg.Interval
	}
	return time.Minute
}
