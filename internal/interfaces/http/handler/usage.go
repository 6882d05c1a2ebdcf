package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apiplatform/backend/internal/application/metering"
)

// UsageHandler serves usage analytics derived from the append-only event log.
type UsageHandler struct {
	BaseHandler
	statsService *metering.StatsService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(statsService *metering.StatsService) *UsageHandler {
	return &UsageHandler{statsService: statsService}
}

// MyStats aggregates the caller's events over the trailing window.
// GET /api/v1/usage?days=30
func (h *UsageHandler) MyStats(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	stats, err := h.statsService.OwnerStats(c.Request.Context(), claims.UserID, queryDays(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// GlobalStats aggregates every owner's events, for admin dashboards.
// GET /api/v1/admin/usage?days=30
func (h *UsageHandler) GlobalStats(c *gin.Context) {
	stats, err := h.statsService.GlobalStats(c.Request.Context(), queryDays(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// OwnerStats aggregates one owner's events, for admin dashboards.
// GET /api/v1/admin/users/:id/usage?days=30
func (h *UsageHandler) OwnerStats(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	stats, err := h.statsService.OwnerStats(c.Request.Context(), id, queryDays(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// queryDays parses the optional days query parameter; invalid or missing
// values fall back to the service default.
func queryDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil {
		return 0
	}
	return days
}
