package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/interfaces/http/handler"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

// EngineConfig selects the optional parts of the middleware chain
type EngineConfig struct {
	HTTP   config.HTTPConfig
	Logger *zap.Logger
	// ServiceName names request spans; empty disables HTTP tracing
	ServiceName string
	// Meter records HTTP metrics when set
	Meter     metric.Meter
	Profiling bool
}

// Handlers are the endpoints served by the engine
type Handlers struct {
	Sync   *handler.SyncHandler
	Orders *handler.OrderHandler
	System *handler.SystemHandler
}

// NewEngine builds the gin engine: the shared middleware chain, /health
// and the versioned API.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))
	if cfg.ServiceName != "" {
		engine.Use(middleware.Tracing(cfg.ServiceName))
	}
	engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	engine.Use(middleware.Profiling(cfg.Profiling))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	engine.GET("/health", h.System.Health)

	userScoped := []gin.HandlerFunc{middleware.RequireUser(), middleware.SpanAttributes()}
	syncScoped := userScoped
	if cfg.HTTP.RateLimitRPS > 0 {
		syncScoped = append(syncScoped[:len(syncScoped):len(syncScoped)], middleware.RateLimitByUser(
			middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		))
		log.Info("Sync rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.RateLimitRPS),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	routes := Mount(engine, APIVersion,
		Area{
			Name:       "sync",
			Prefix:     "/sync",
			Middleware: syncScoped,
			Routes: []Route{
				{http.MethodPost, "/orders", h.Sync.SyncOrders},
				{http.MethodPost, "/categories", h.Sync.SyncCategories},
			},
		},
		Area{
			Name:       "categories",
			Prefix:     "/categories",
			Middleware: userScoped,
			Routes:     []Route{{http.MethodGet, "", h.Sync.ListCategories}},
		},
		Area{
			Name:       "orders",
			Prefix:     "/orders",
			Middleware: userScoped,
			Routes: []Route{
				{http.MethodGet, "", h.Orders.ListOrders},
				{http.MethodGet, "/:platform/:number", h.Orders.GetOrder},
			},
		},
		Area{
			Name:   "system",
			Prefix: "/system",
			Routes: []Route{{http.MethodGet, "/info", h.System.GetSystemInfo}},
		},
	)
	log.Debug("API routes mounted", zap.Strings("routes", routes))
	return engine
}
