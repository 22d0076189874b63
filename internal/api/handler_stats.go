package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"billiard-admin-backend/internal/stats"
)

// GetDashboardStats handles GET /api/stats/dashboard.
func (h *Handler) GetDashboardStats(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetRevenueStats handles GET /api/stats/revenue?period=day|week|month.
func (h *Handler) GetRevenueStats(c *gin.Context) {
	period := c.DefaultQuery("period", "week")
	series, err := h.stats.Revenue(c.Request.Context(), period)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "data": series})
}

// GetUtilizationStats handles GET /api/stats/utilization?days=N.
func (h *Handler) GetUtilizationStats(c *gin.Context) {
	days := stats.DefaultUtilizationDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, errors.New("days must be an integer"))
			return
		}
		if n != 0 {
			days = n
		}
	}
	out, err := h.stats.Utilization(c.Request.Context(), days)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "data": out})
}

// TriggerSweep handles POST /api/sweep.
func (h *Handler) TriggerSweep(c *gin.Context) {
	report, err := h.sweeper.SweepOnce(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	status := http.StatusOK
	if report.Skipped {
		status = http.StatusAccepted
	}
	c.JSON(status, report)
}
