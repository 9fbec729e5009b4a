package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// Profiling labels CPU samples of each request with its method and route
// pattern. Sync jobs started by the request add platform and resource
// labels of their own.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		labels := map[string]string{
			telemetry.ProfilingLabelMethod: c.Request.Method,
			telemetry.ProfilingLabelRoute:  c.FullPath(),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
