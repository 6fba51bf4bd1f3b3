package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/infrastructure/logger"
	"github.com/tuitionhub/backend/internal/interfaces/http/dto"
)

// healthCheckTimeout bounds the database ping of a health check
const healthCheckTimeout = 2 * time.Second

// Pinger checks a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, db Pinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of the health check response
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Database string `json:"database" example:"ok"`
	Time     string `json:"time" example:"2026-03-02T09:00:00Z"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"tuitionhub-settlement"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// Health godoc
//
//	@ID				health
//	@Summary		Liveness and database health
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:   "healthy",
		Database: "ok",
		Time:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.db.Ping(ctx); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "error"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSystemInfo godoc
//
//	@ID				getSystemInfo
//	@Summary		Get system information
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	APIResponse[SystemInfoResponse]
//	@Router			/system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}
