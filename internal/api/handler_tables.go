package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"billiard-admin-backend/internal/lifecycle"
	"billiard-admin-backend/internal/model"
)

// TableResponse is a table with its current booking and booking history.
type TableResponse struct {
	model.Table
	ActiveBooking *model.Booking  `json:"PoolBookings"`
	History       []model.Booking `json:"history"`
	IsAvailable   bool            `json:"isAvailable"`
}

// GetTables handles GET /api/pool-tables.
func (h *Handler) GetTables(c *gin.Context) {
	tables, err := h.store.ListTables(c.Request.Context(), true)
	if err != nil {
		abortWithError(c, err)
		return
	}

	responses := make([]TableResponse, 0, len(tables))
	for _, t := range tables {
		resp := TableResponse{Table: t, History: t.Bookings}
		if resp.History == nil {
			resp.History = []model.Booking{}
		}
		for i := range t.Bookings {
			if lifecycle.IsActive(t.Bookings[i].Status) {
				active := t.Bookings[i]
				resp.ActiveBooking = &active
				break
			}
		}
		resp.IsAvailable = t.Status == model.TableAvailable && resp.ActiveBooking == nil
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

type createTableRequest struct {
	Name       string          `json:"name" binding:"required"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

// CreateTable handles POST /api/pool-tables.
func (h *Handler) CreateTable(c *gin.Context) {
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || !req.HourlyRate.IsPositive() {
		badRequest(c, errors.New("name and a positive hourly_rate are required"))
		return
	}

	table := model.Table{Name: name, HourlyRate: req.HourlyRate.Round(2)}
	if err := h.store.CreateTable(c.Request.Context(), &table); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

type maintenanceRequest struct {
	Maintenance *bool `json:"maintenance" binding:"required"`
}

// SetMaintenance handles PUT /api/pool-tables/:id/maintenance.
func (h *Handler) SetMaintenance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, errors.New("invalid table ID"))
		return
	}
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	table, err := h.store.SetMaintenance(c.Request.Context(), id, *req.Maintenance)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// LightStatus is what the table lamp controller polls.
type LightStatus struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Status      model.TableStatus `json:"status"`
	LightStatus string            `json:"light_status"`
}

// GetLightStatus handles GET /esp/light/status. A lamp is ON while its table
// has a reserved or running booking.
func (h *Handler) GetLightStatus(c *gin.Context) {
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	lit := make(map[int64]bool, len(snap.Bookings))
	for _, b := range snap.Bookings {
		lit[b.TableID] = true
	}

	out := make([]LightStatus, 0, len(snap.Tables))
	for _, t := range snap.Tables {
		ls := LightStatus{ID: t.ID, Name: t.Name, Status: t.Status, LightStatus: "OFF"}
		if lit[t.ID] {
			ls.LightStatus = "ON"
		}
		out = append(out, ls)
	}
	c.JSON(http.StatusOK, out)
}
