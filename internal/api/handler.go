package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"billiard-admin-backend/internal/booking"
	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/stats"
	"billiard-admin-backend/internal/store"
	"billiard-admin-backend/internal/sweep"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	bookings *booking.Service
	sweeper  *sweep.Service
	stats    *stats.Service
	loc      *time.Location
	webpush  *webpush.Options
}

// NewHandler creates a new API handler. loc is the zone bare start times
// are read in.
func NewHandler(s store.Store, b *booking.Service, sw *sweep.Service, st *stats.Service, loc *time.Location, webpushOptions *webpush.Options) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store:    s,
		bookings: b,
		sweeper:  sw,
		stats:    st,
		loc:      loc,
		webpush:  webpushOptions,
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err as JSON. Internal errors are logged and hidden.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var oe *lifecycle.OverlapError
	if errors.As(err, &oe) {
		ids := make([]int64, len(oe.Conflicts))
		for i, b := range oe.Conflicts {
			ids[i] = b.ID
		}
		body["conflicts"] = ids
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
