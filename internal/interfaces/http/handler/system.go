package handler

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

// healthTimeout bounds the database probe behind /health
const healthTimeout = 2 * time.Second

// Database is the view of the connection pool the system endpoints need
type Database interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	version   string
	database  Database
	platforms []integration.PlatformType
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. platforms lists the
// marketplaces with a registered adapter.
func NewSystemHandler(version string, database Database, platforms []integration.PlatformType) *SystemHandler {
	return &SystemHandler{
		version:   version,
		database:  database,
		platforms: platforms,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	Uptime    string    `json:"uptime"`
	Platforms []string  `json:"platforms"`
	Database  *PoolInfo `json:"database,omitempty"`
}

// PoolInfo summarizes database connection pool usage
type PoolInfo struct {
	Open      int    `json:"open"`
	InUse     int    `json:"in_use"`
	Idle      int    `json:"idle"`
	WaitCount int64  `json:"wait_count"`
	WaitTime  string `json:"wait_time"`
}

// Health reports 503 when the database is unreachable
//
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Checks:   map[string]string{"database": "ok"},
		Platform: h.platformNames(),
	}

	status := http.StatusOK
	if h.database == nil {
		resp.Checks["database"] = "not configured"
	} else if err := h.ping(c.Request.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// GetSystemInfo returns version and uptime
//
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "MarketSync",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Platforms: h.platformNames(),
	}
	if h.database != nil {
		st := h.database.Stats()
		info.Database = &PoolInfo{
			Open:      st.OpenConnections,
			InUse:     st.InUse,
			Idle:      st.Idle,
			WaitCount: st.WaitCount,
			WaitTime:  st.WaitDuration.String(),
		}
	}
	h.Success(c, info)
}

func (h *SystemHandler) platformNames() []string {
	names := make([]string, 0, len(h.platforms))
	for _, p := range h.platforms {
		names = append(names, p.String())
	}
	return names
}

func (h *SystemHandler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return h.database.Ping(ctx)
}
