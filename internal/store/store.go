package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/model"
)

// Store defines the interface for all database operations. Times are stored
// and compared in UTC.
type Store interface {
	DB() *gorm.DB

	CreateTable(ctx context.Context, t *model.Table) error
	GetTable(ctx context.Context, id int64) (*model.Table, error)
	ListTables(ctx context.Context, withBookings bool) ([]model.Table, error)
	SetMaintenance(ctx context.Context, id int64, on bool) (*model.Table, error)

	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	CreateBooking(ctx context.Context, tableID int64, build BuildFunc) (*Result, error)
	MutateBooking(ctx context.Context, id int64, mutate MutateFunc) (*Result, error)

	Snapshot(ctx context.Context) (*Snapshot, error)
	ActivateBooking(ctx context.Context, id int64, now time.Time) (bool, error)
	CompleteBooking(ctx context.Context, id int64, now time.Time) (*Result, error)
	SyncTableStatus(ctx context.Context, tableID int64) (lifecycle.TableChange, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
	// lockRows enables SELECT ... FOR UPDATE and serializable transactions,
	// which only postgres understands.
	lockRows bool
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, lockRows: db.Dialector.Name() == "postgres"}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// transaction runs fn in a transaction. Writes that must observe a consistent
// view of a table's bookings run serializable where the database supports it.
func (s *gormStore) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.lockRows {
		return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *gormStore) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.lockRows {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}

// CreateTable inserts a new table. New tables start Available unless the
// caller says otherwise.
func (s *gormStore) CreateTable(ctx context.Context, t *model.Table) error {
	if t.Status == "" {
		t.Status = model.TableAvailable
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create table %q: %w", t.Name, err)
	}
	return nil
}

func (s *gormStore) GetTable(ctx context.Context, id int64) (*model.Table, error) {
	var t model.Table
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, "table", id)
	}
	return &t, nil
}

// ListTables returns all tables ordered by id, optionally with their full
// booking history preloaded.
func (s *gormStore) ListTables(ctx context.Context, withBookings bool) ([]model.Table, error) {
	q := s.db.WithContext(ctx).Order("id")
	if withBookings {
		q = q.Preload("Bookings", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_time DESC")
		})
	}
	var tables []model.Table
	if err := q.Find(&tables).Error; err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// SetMaintenance puts a table into Maintenance or takes it out again. Taking
// it out re-derives the status from the table's bookings.
func (s *gormStore) SetMaintenance(ctx context.Context, id int64, on bool) (*model.Table, error) {
	var table model.Table
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := s.forUpdate(tx).First(&table, id).Error; err != nil {
			return notFound(err, "table", id)
		}
		want := model.TableMaintenance
		if !on {
			active, err := countActive(tx, id)
			if err != nil {
				return err
			}
			want = lifecycle.DeriveTableStatus(model.TableAvailable, active > 0)
		}
		if want == table.Status {
			return nil
		}
		if err := tx.Model(&model.Table{}).Where("id = ?", id).Update("status", want).Error; err != nil {
			return fmt.Errorf("failed to update table %d: %w", id, err)
		}
		table.Status = want
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *gormStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).Preload("Table").First(&b, id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (s *gormStore) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	q := s.db.WithContext(ctx).Model(&model.Booking{})
	if f.TableID != 0 {
		q = q.Where("table_id = ?", f.TableID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.StartFrom.IsZero() {
		q = q.Where("start_time >= ?", f.StartFrom.UTC())
	}
	if !f.StartUntil.IsZero() {
		q = q.Where("start_time < ?", f.StartUntil.UTC())
	}
	if !f.EndsBefore.IsZero() {
		q = q.Where("end_time <= ?", f.EndsBefore.UTC())
	}
	if !f.EndsAfter.IsZero() {
		q = q.Where("end_time > ?", f.EndsAfter.UTC())
	}
	if f.WithTable {
		q = q.Preload("Table")
	}
	if f.NewestFirst {
		q = q.Order("created_at DESC").Order("id DESC")
	} else {
		q = q.Order("start_time").Order("id")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []model.Booking
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return out, nil
}

// CreateBooking locks the table row, hands the table and its active bookings
// to build, inserts whatever build returns and re-derives the table status,
// all in one transaction. The check and the insert cannot interleave with
// another creation on the same table.
func (s *gormStore) CreateBooking(ctx context.Context, tableID int64, build BuildFunc) (*Result, error) {
	var res Result
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var table model.Table
		if err := s.forUpdate(tx).First(&table, tableID).Error; err != nil {
			return notFound(err, "table", tableID)
		}

		active, err := activeBookings(tx, tableID, 0)
		if err != nil {
			return err
		}

		b, err := build(table, active)
		if err != nil {
			return err
		}
		b.TableID = tableID
		if err := tx.Omit("Table").Create(b).Error; err != nil {
			return fmt.Errorf("failed to create booking for table %d: %w", tableID, err)
		}

		change, err := rederiveTable(tx, table)
		if err != nil {
			return err
		}
		b.Table = &table
		b.Table.Status = change.To
		res = Result{Booking: *b, Table: change}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// MutateBooking locks a booking, lets mutate change it with the other active
// bookings of the same table in view, saves it and re-derives the table.
func (s *gormStore) MutateBooking(ctx context.Context, id int64, mutate MutateFunc) (*Result, error) {
	var res Result
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var b model.Booking
		if err := s.forUpdate(tx).First(&b, id).Error; err != nil {
			return notFound(err, "booking", id)
		}

		var table model.Table
		if err := s.forUpdate(tx).First(&table, b.TableID).Error; err != nil {
			return notFound(err, "table", b.TableID)
		}

		siblings, err := activeBookings(tx, b.TableID, b.ID)
		if err != nil {
			return err
		}

		if err := mutate(&b, siblings); err != nil {
			return err
		}
		if err := tx.Omit("Table").Save(&b).Error; err != nil {
			return fmt.Errorf("failed to save booking %d: %w", id, err)
		}

		change, err := rederiveTable(tx, table)
		if err != nil {
			return err
		}
		table.Status = change.To
		b.Table = &table
		res = Result{Booking: b, Table: change}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Snapshot returns every table and every active booking.
func (s *gormStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := s.db.WithContext(ctx).Order("id").Find(&snap.Tables).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tables: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("status IN ?", model.ActiveStatuses).
		Order("start_time").
		Find(&snap.Bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch active bookings: %w", err)
	}
	return &snap, nil
}

// ActivateBooking moves a Reserved booking to InProgress if its window
// contains now and marks its table Occupied. It reports false when the
// booking was no longer eligible.
func (s *gormStore) ActivateBooking(ctx context.Context, id int64, now time.Time) (bool, error) {
	now = now.UTC()
	var activated bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Booking{}).
			Where("id = ? AND status = ? AND start_time <= ? AND end_time > ?", id, model.BookingReserved, now, now).
			Update("status", model.BookingInProgress)
		if res.Error != nil {
			return fmt.Errorf("failed to activate booking %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		activated = true

		var b model.Booking
		if err := tx.Select("table_id").First(&b, id).Error; err != nil {
			return notFound(err, "booking", id)
		}
		if err := tx.Model(&model.Table{}).
			Where("id = ? AND status <> ?", b.TableID, model.TableMaintenance).
			Update("status", model.TableOccupied).Error; err != nil {
			return fmt.Errorf("failed to occupy table %d: %w", b.TableID, err)
		}
		return nil
	})
	return activated, err
}

// CompleteBooking moves an active booking whose end time has passed to
// Completed and re-derives its table. A zero Result.Booking.ID means the
// booking was no longer eligible.
func (s *gormStore) CompleteBooking(ctx context.Context, id int64, now time.Time) (*Result, error) {
	now = now.UTC()
	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&model.Booking{}).
			Where("id = ? AND status IN ? AND end_time <= ?", id, model.ActiveStatuses, now).
			Updates(map[string]any{"status": model.BookingCompleted, "ended_at": now})
		if upd.Error != nil {
			return fmt.Errorf("failed to complete booking %d: %w", id, upd.Error)
		}
		if upd.RowsAffected == 0 {
			return nil
		}

		var b model.Booking
		if err := tx.First(&b, id).Error; err != nil {
			return notFound(err, "booking", id)
		}
		var table model.Table
		if err := tx.First(&table, b.TableID).Error; err != nil {
			return notFound(err, "table", b.TableID)
		}
		change, err := rederiveTable(tx, table)
		if err != nil {
			return err
		}
		res = Result{Booking: b, Table: change}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SyncTableStatus re-derives one table's status from its bookings.
func (s *gormStore) SyncTableStatus(ctx context.Context, tableID int64) (lifecycle.TableChange, error) {
	var change lifecycle.TableChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table model.Table
		if err := tx.First(&table, tableID).Error; err != nil {
			return notFound(err, "table", tableID)
		}
		var err error
		change, err = rederiveTable(tx, table)
		return err
	})
	return change, err
}

// --- Helpers ---

func activeBookings(tx *gorm.DB, tableID, exceptID int64) ([]model.Booking, error) {
	var out []model.Booking
	q := tx.Where("table_id = ? AND status IN ?", tableID, model.ActiveStatuses)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Order("start_time").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load active bookings for table %d: %w", tableID, err)
	}
	return out, nil
}

func countActive(tx *gorm.DB, tableID int64) (int64, error) {
	var n int64
	if err := tx.Model(&model.Booking{}).
		Where("table_id = ? AND status IN ?", tableID, model.ActiveStatuses).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count active bookings for table %d: %w", tableID, err)
	}
	return n, nil
}

// rederiveTable applies the availability rule to table inside tx and writes
// the new status if it changed.
func rederiveTable(tx *gorm.DB, table model.Table) (lifecycle.TableChange, error) {
	active, err := countActive(tx, table.ID)
	if err != nil {
		return lifecycle.TableChange{}, err
	}
	change := lifecycle.TableChange{
		TableID: table.ID,
		From:    table.Status,
		To:      lifecycle.DeriveTableStatus(table.Status, active > 0),
	}
	if !change.Changed() {
		return change, nil
	}
	if err := tx.Model(&model.Table{}).Where("id = ?", table.ID).Update("status", change.To).Error; err != nil {
		return change, fmt.Errorf("failed to update table %d status: %w", table.ID, err)
	}
	return change, nil
}
