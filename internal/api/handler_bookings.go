package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"billiard-admin-backend/internal/booking"
	"billiard-admin-backend/internal/parse"
	"billiard-admin-backend/internal/store"
)

type createBookingRequest struct {
	CustomerName  string  `json:"customer_name" binding:"required"`
	TableID       int64   `json:"tableId" binding:"required,gt=0"`
	StartTime     string  `json:"startTime" binding:"required"`
	DurationHours float64 `json:"durationHours" binding:"required,gt=0"`
	Notes         string  `json:"notes"`
}

// CreateBooking handles PUT /api/create-booking.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, err := parse.StartTime(req.StartTime, h.loc)
	if err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), booking.CreateInput{
		CustomerName:  req.CustomerName,
		TableID:       req.TableID,
		StartTime:     start,
		DurationHours: req.DurationHours,
		Notes:         req.Notes,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type extendRequest struct {
	BookingID int64   `json:"bookingId" binding:"required,gt=0"`
	Hours     float64 `json:"hours" binding:"required,gt=0"`
}

// ExtendBooking handles PUT /api/pool-tables/booking/extend-time.
func (h *Handler) ExtendBooking(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.Extend(c.Request.Context(), req.BookingID, req.Hours)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type bookingIDRequest struct {
	BookingID int64 `json:"bookingId" binding:"required,gt=0"`
}

// EndSession handles PUT /api/pool-tables/booking/end-session.
func (h *Handler) EndSession(c *gin.Context) {
	var req bookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.End(c.Request.Context(), req.BookingID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CancelBooking handles PUT /api/pool-tables/booking/cancel.
func (h *Handler) CancelBooking(c *gin.Context) {
	var req bookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), req.BookingID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetAllBookings handles GET /api/pool/get-all-bookings.
func (h *Handler) GetAllBookings(c *gin.Context) {
	bookings, err := h.store.ListBookings(c.Request.Context(), store.BookingFilter{WithTable: true, NewestFirst: true})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
