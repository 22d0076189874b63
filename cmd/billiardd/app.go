package main

import (
	"context"
	"log"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"billiard-admin-backend/config"
	"billiard-admin-backend/internal/booking"
	"billiard-admin-backend/internal/clock"
	"billiard-admin-backend/internal/db"
	"billiard-admin-backend/internal/events"
	"billiard-admin-backend/internal/lock"
	"billiard-admin-backend/internal/notification"
	"billiard-admin-backend/internal/stats"
	"billiard-admin-backend/internal/store"
	"billiard-admin-backend/internal/sweep"
)

// app is everything serve and sweep share.
type app struct {
	db       *gorm.DB
	store    store.Store
	clock    clock.Clock
	events   events.Publisher
	redis    *redis.Client
	webpush  *webpush.Options
	workers  *notification.WorkerPool
	bookings *booking.Service
	sweeper  *sweep.Service
	stats    *stats.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{
		db:    gormDB,
		store: store.NewGormStore(gormDB),
		clock: clock.NewSystem(cfg.Booking.Location),
	}

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		log.Println("VAPID keys are not configured; push notifications will fail to send.")
	}
	a.webpush = &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	a.workers = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, a.webpush)

	a.events = events.Noop{}
	if cfg.Events.Enabled {
		pub, err := events.NewRabbitPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			log.Printf("Warning: booking events disabled: %v", err)
		} else {
			a.events = pub
			log.Printf("publishing booking events to exchange %s", cfg.Events.Exchange)
		}
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Sweep.Lock.Enabled {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Warning: sweep lock disabled: %v", err)
		} else {
			a.redis = rdb
			locker = lock.NewRedis(rdb, cfg.Sweep.Lock.Key)
		}
	}

	a.bookings = booking.NewService(a.store, a.clock, a.events, a.workers, cfg.Booking.MaxHours)
	a.sweeper = sweep.NewService(cfg.Sweep, a.store, a.clock, locker, a.workers, a.events)
	a.stats = stats.NewService(a.store, a.clock)
	return a, nil
}

// Close releases external connections.
func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		log.Printf("close events: %v", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
