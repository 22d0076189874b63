package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"billiard-admin-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// TableFreed is the push payload sent when a table becomes available.
type TableFreed struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	TableID int64  `json:"table_id"`
}

// WorkerPool sends "table available" pushes to the staff browsers subscribed
// to that table.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case tableID := <-wp.jobs:
			wp.notifyTable(ctx, tableID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a table for notification. It never blocks: booking writes
// call it after commit and a full queue only costs a push.
func (wp *WorkerPool) Dispatch(tableID int64) {
	select {
	case wp.jobs <- tableID:
	default:
		log.Printf("Notification queue full, dropping push for table %d", tableID)
	}
}

// Drain sends every queued push on the calling goroutine and returns how
// many tables it handled. One-shot runs use it instead of Start so nothing
// queued is lost when the process exits.
func (wp *WorkerPool) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case tableID := <-wp.jobs:
			wp.notifyTable(ctx, tableID)
			n++
		default:
			return n
		}
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func (wp *WorkerPool) notifyTable(ctx context.Context, tableID int64) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_table_mapping stm ON stm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("stm.table_id = ?", tableID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for table %d: %v", tableID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := fmt.Sprintf("%d", tableID)
	var table model.Table
	if err := wp.db.WithContext(ctx).Select("name").First(&table, tableID).Error; err != nil {
		log.Printf("Error fetching table %d: %v", tableID, err)
	} else if table.Name != "" {
		label = table.Name
	}

	payload, err := json.Marshal(TableFreed{
		Title:   "Table available",
		Body:    fmt.Sprintf("%s is available", label),
		TableID: tableID,
	})
	if err != nil {
		log.Printf("Error encoding push for table %d: %v", tableID, err)
		return
	}

	log.Printf("Sending %d notifications for table %d", len(subscriptions), tableID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := DeleteSubscription(wp.db.WithContext(ctx), sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

// DeleteSubscription removes a subscription together with its table mappings.
func DeleteSubscription(db *gorm.DB, endpoint string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_table_mapping WHERE push_subscription_endpoint = ?", endpoint).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}
