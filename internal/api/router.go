package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"billiard-admin-backend/config"
	"billiard-admin-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Only the statistics are cached; booking state must always be read fresh.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/pool-tables", h.GetTables)
		api.POST("/pool-tables", h.CreateTable)
		api.PUT("/pool-tables/:id/maintenance", h.SetMaintenance)

		api.PUT("/create-booking", h.CreateBooking)
		api.PUT("/pool-tables/booking/extend-time", h.ExtendBooking)
		api.PUT("/pool-tables/booking/end-session", h.EndSession)
		api.PUT("/pool-tables/booking/cancel", h.CancelBooking)
		api.GET("/pool/get-all-bookings", h.GetAllBookings)

		api.GET("/stats/dashboard", caching, h.GetDashboardStats)
		api.GET("/stats/revenue", caching, h.GetRevenueStats)
		api.GET("/stats/utilization", caching, h.GetUtilizationStats)

		api.POST("/sweep", h.TriggerSweep)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	// The lamp controller polls without rate limiting.
	r.GET("/esp/light/status", h.GetLightStatus)

	return r
}
