package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus is a state of the booking lifecycle.
type BookingStatus string

const (
	BookingReserved   BookingStatus = "Reserved"
	BookingInProgress BookingStatus = "InProgress"
	BookingCompleted  BookingStatus = "Completed"
	BookingCancelled  BookingStatus = "Cancelled"
)

// ActiveStatuses are the statuses that still hold a table.
var ActiveStatuses = []BookingStatus{BookingReserved, BookingInProgress}

// Booking is a reservation of one table for a time window.
type Booking struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	Reference     uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"reference"`
	TableID       int64           `gorm:"index:idx_bookings_table_status;not null" json:"tableId"`
	CustomerName  string          `gorm:"column:customer_name;size:256;not null" json:"customer_name"`
	Notes         string          `gorm:"type:text" json:"notes"`
	StartTime     time.Time       `gorm:"not null;index" json:"startTime"`
	EndTime       time.Time       `gorm:"not null;index" json:"endTime"`
	DurationHours float64         `gorm:"not null" json:"durationHours"`
	HourlyRate    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"hourlyRate"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalPrice"`
	Status        BookingStatus   `gorm:"size:16;not null;index:idx_bookings_table_status" json:"status"`
	EndedAt       *time.Time      `json:"endedAt,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updatedAt"`

	// Associations
	Table *Table `json:"poolTable,omitempty"`
}
