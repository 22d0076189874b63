// Package events publishes booking lifecycle events to RabbitMQ so other
// systems (the cafe POS, the table lamp controller) can follow along without
// polling the database.
package events

import (
	"context"
	"time"

	"billiard-admin-backend/internal/model"
)

// Type names a lifecycle event. It doubles as the routing key suffix.
type Type string

const (
	BookingCreated   Type = "created"
	BookingStarted   Type = "started"
	BookingExtended  Type = "extended"
	BookingCompleted Type = "completed"
	BookingCancelled Type = "cancelled"
)

// RoutingKey is the topic the event is published under.
func (t Type) RoutingKey() string { return "booking." + string(t) }

// BookingEvent is the payload published for every booking transition.
type BookingEvent struct {
	Type        Type                `json:"type"`
	BookingID   int64               `json:"booking_id"`
	Reference   string              `json:"reference"`
	TableID     int64               `json:"table_id"`
	Status      model.BookingStatus `json:"status"`
	StartTime   time.Time           `json:"start_time"`
	EndTime     time.Time           `json:"end_time"`
	TotalPrice  string              `json:"total_price"`
	TableStatus model.TableStatus   `json:"table_status,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// NewBookingEvent builds the event for b.
func NewBookingEvent(t Type, b model.Booking, tableStatus model.TableStatus, at time.Time) BookingEvent {
	return BookingEvent{
		Type:        t,
		BookingID:   b.ID,
		Reference:   b.Reference.String(),
		TableID:     b.TableID,
		Status:      b.Status,
		StartTime:   b.StartTime.UTC(),
		EndTime:     b.EndTime.UTC(),
		TotalPrice:  b.TotalPrice.StringFixed(2),
		TableStatus: tableStatus,
		OccurredAt:  at.UTC(),
	}
}

// Publisher sends booking events.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// Noop discards every event. It is used when events are disabled.
type Noop struct{}

func (Noop) Publish(context.Context, BookingEvent) error { return nil }

func (Noop) Close() error { return nil }
