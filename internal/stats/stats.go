// Package stats aggregates bookings for the admin dashboard.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"billiard-admin-backend/internal/clock"
	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/model"
	"billiard-admin-backend/internal/store"
)

// ErrInvalidRange is returned for an unknown period or day count.
var ErrInvalidRange = fmt.Errorf("%w: invalid range", lifecycle.ErrValidation)

// billable are the statuses that count towards revenue and usage.
var billable = []model.BookingStatus{model.BookingReserved, model.BookingInProgress, model.BookingCompleted}

// periodDays maps the revenue periods onto a number of days.
var periodDays = map[string]int{
	"day":   1,
	"week":  7,
	"month": 30,
}

const maxUtilizationDays = 366

// DefaultUtilizationDays is the window Utilization uses when days is 0.
const DefaultUtilizationDays = 7

// Service computes statistics. Calendar days are taken in the clock's zone.
type Service struct {
	store store.Store
	clock clock.Clock
}

func NewService(st store.Store, clk clock.Clock) *Service {
	return &Service{store: st, clock: clk}
}

// HourCount is the number of bookings starting in one hour of the day.
type HourCount struct {
	Hour     int `json:"hour"`
	Bookings int `json:"bookings"`
}

// Dashboard is the overview shown on the admin landing page.
type Dashboard struct {
	TotalTables       int             `json:"totalTables"`
	AvailableTables   int             `json:"availableTables"`
	OccupiedTables    int             `json:"occupiedTables"`
	MaintenanceTables int             `json:"maintenanceTables"`
	ActiveBookings    int             `json:"activeBookings"`
	TodayBookings     int             `json:"todayBookings"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	RecentBookings    []model.Booking `json:"recentBookings"`
	HourlyUsage       []HourCount     `json:"hourlyUsage"`
}

// DailyRevenue is one point of the revenue series.
type DailyRevenue struct {
	Date     string          `json:"date"`
	Revenue  decimal.Decimal `json:"revenue"`
	Bookings int             `json:"bookings"`
}

// TableUtilization is how much of a window one table was booked.
type TableUtilization struct {
	TableID         int64             `json:"tableId"`
	Name            string            `json:"name"`
	Status          model.TableStatus `json:"status"`
	Bookings        int               `json:"bookings"`
	BookedHours     float64           `json:"bookedHours"`
	UtilizationRate float64           `json:"utilizationRate"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.clock.Location())
}

// Dashboard summarizes tables and today's bookings.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	today := startOfDay(now)

	tables, err := s.store.ListTables(ctx, false)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{TotalTables: len(tables), TotalRevenue: decimal.Zero}
	for _, t := range tables {
		switch t.Status {
		case model.TableAvailable:
			d.AvailableTables++
		case model.TableOccupied:
			d.OccupiedTables++
		case model.TableMaintenance:
			d.MaintenanceTables++
		}
	}

	active, err := s.store.ListBookings(ctx, store.BookingFilter{Statuses: model.ActiveStatuses})
	if err != nil {
		return nil, err
	}
	d.ActiveBookings = len(active)

	todays, err := s.store.ListBookings(ctx, store.BookingFilter{
		Statuses:   billable,
		StartFrom:  today,
		StartUntil: today.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, err
	}
	d.TodayBookings = len(todays)
	d.HourlyUsage = make([]HourCount, 24)
	for h := range d.HourlyUsage {
		d.HourlyUsage[h].Hour = h
	}
	for _, b := range todays {
		d.TotalRevenue = d.TotalRevenue.Add(b.TotalPrice)
		d.HourlyUsage[b.StartTime.In(now.Location()).Hour()].Bookings++
	}

	d.RecentBookings, err = s.store.ListBookings(ctx, store.BookingFilter{WithTable: true, NewestFirst: true, Limit: 5})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Revenue returns one point per calendar day for period, oldest first.
// Cancelled bookings are not counted.
func (s *Service) Revenue(ctx context.Context, period string) ([]DailyRevenue, error) {
	if period == "" {
		period = "week"
	}
	days, ok := periodDays[period]
	if !ok {
		return nil, fmt.Errorf("%w: period %q", ErrInvalidRange, period)
	}

	today := startOfDay(s.now())
	from := today.AddDate(0, 0, -(days - 1))
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{
		Statuses:   billable,
		StartFrom:  from,
		StartUntil: today.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, err
	}

	series := make([]DailyRevenue, days)
	index := make(map[string]int, days)
	for i := range series {
		date := from.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = DailyRevenue{Date: date, Revenue: decimal.Zero}
		index[date] = i
	}
	for _, b := range bookings {
		i, ok := index[b.StartTime.In(today.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}
		series[i].Revenue = series[i].Revenue.Add(b.TotalPrice)
		series[i].Bookings++
	}
	return series, nil
}

// Utilization reports, per table, the share of the last days that was
// booked. Bookings are clipped to the window, and a session ended early
// only counts until it was ended.
func (s *Service) Utilization(ctx context.Context, days int) ([]TableUtilization, error) {
	if days == 0 {
		days = DefaultUtilizationDays
	}
	if days < 0 || days > maxUtilizationDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRange, maxUtilizationDays)
	}

	now := s.now()
	from := now.Add(-time.Duration(days) * 24 * time.Hour)

	tables, err := s.store.ListTables(ctx, false)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{
		Statuses:   billable,
		StartUntil: now,
		EndsAfter:  from,
	})
	if err != nil {
		return nil, err
	}

	hours := make(map[int64]float64, len(tables))
	counts := make(map[int64]int, len(tables))
	for _, b := range bookings {
		start, end := b.StartTime, b.EndTime
		if b.EndedAt != nil && b.EndedAt.Before(end) {
			end = *b.EndedAt
		}
		if start.Before(from) {
			start = from
		}
		if end.After(now) {
			end = now
		}
		if !end.After(start) {
			continue
		}
		hours[b.TableID] += end.Sub(start).Hours()
		counts[b.TableID]++
	}

	window := float64(days * 24)
	out := make([]TableUtilization, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableUtilization{
			TableID:         t.ID,
			Name:            t.Name,
			Status:          t.Status,
			Bookings:        counts[t.ID],
			BookedHours:     round2(hours[t.ID]),
			UtilizationRate: round2(hours[t.ID] / window * 100),
		})
	}
	return out, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
