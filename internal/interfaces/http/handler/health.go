package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apiplatform/backend/internal/infrastructure/persistence"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db      *persistence.Database
	version string
	started time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *persistence.Database, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, started: time.Now()}
}

// Check reports service health. A failing database ping degrades the status
// to 503 so load balancers stop routing here.
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			dbStatus = "unavailable"
		}
	}

	c.JSON(status, dto.NewSuccessResponse(gin.H{
		"status":   overall,
		"version":  h.version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"database": dbStatus,
	}))
}
