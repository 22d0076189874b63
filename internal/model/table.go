package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TableStatus is the occupancy state of a billiard table.
type TableStatus string

const (
	TableAvailable   TableStatus = "Available"
	TableOccupied    TableStatus = "Occupied"
	TableMaintenance TableStatus = "Maintenance"
)

// Table represents a billiard table that can be booked.
type Table struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"uniqueIndex;size:128;not null" json:"name"`
	HourlyRate decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"hourly_rate"`
	Status     TableStatus     `gorm:"size:16;not null;default:Available;index" json:"status"`
	CreatedAt  time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updatedAt"`

	// Associations
	Bookings []Booking `gorm:"foreignKey:TableID" json:"-"`
}
