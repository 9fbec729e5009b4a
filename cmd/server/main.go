package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/marketsync/backend/internal/application/integration"
	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/cache"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/ecommerce"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/migration"
	"github.com/marketsync/backend/internal/infrastructure/persistence"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
	"github.com/marketsync/backend/internal/interfaces/http/handler"
	"github.com/marketsync/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel := initTelemetry(ctx, cfg, baseLog)
	log := tel.logger
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting MarketSync",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.SQLLogConfig{
		Level:         logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
	})
	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	if cfg.Database.MigrateOnStart {
		if err := migrateUp(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	freshness, err := cache.NewFreshnessStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithRetention(cfg.Sync.CategoryTTL),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create category freshness store", zap.Error(err))
	}
	defer func() {
		if err := freshness.Close(); err != nil {
			log.Warn("Error closing freshness store", zap.Error(err))
		}
	}()

	adapters := ecommerce.NewAdapterFactory(platformSettings(cfg.Platforms, log), log)

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)

	var orchestratorOpts []scheduler.OrchestratorOption
	if tel.meters.IsEnabled() {
		recorder, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:  tel.meters.Meter("marketsync/sync"),
			Logger: log,
		})
		if err != nil {
			log.Warn("Failed to create sync metrics", zap.Error(err))
		} else {
			orchestratorOpts = append(orchestratorOpts, scheduler.WithResultRecorder(recorder))
		}
	}

	orchestrator, err := scheduler.NewOrchestrator(scheduler.OrchestratorConfig{
		MaxConcurrentJobs: cfg.Sync.MaxConcurrentJobs,
		ConnectionTimeout: cfg.Sync.ConnectionTimeout,
		RetryAttempts:     cfg.Sync.RetryAttempts,
		RetryBaseDelay:    cfg.Sync.RetryBaseDelay,
		RetryMaxDelay:     cfg.Sync.RetryMaxDelay,
		PageSize:          cfg.Sync.PageSize,
		Lookback:          cfg.Sync.Lookback,
	}, adapters, nil, orderRepo, categoryRepo, log, orchestratorOpts...)
	if err != nil {
		log.Fatal("Failed to create sync orchestrator", zap.Error(err))
	}

	syncService := appintegration.NewSyncService(orchestrator, connectionRepo, categoryRepo, freshness, log,
		appintegration.SyncServiceConfig{CategoryTTL: cfg.Sync.CategoryTTL})

	var trigger *scheduler.SyncTrigger
	if cfg.Sync.CronEnabled {
		trigger, err = scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
			Interval:   cfg.Sync.CronInterval,
			RunOnStart: cfg.Sync.CronRunOnStart,
		}, connectionRepo, syncService.SyncUserOrders, log)
		if err != nil {
			log.Fatal("Failed to create periodic sync trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start periodic sync trigger", zap.Error(err))
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engineCfg := router.EngineConfig{
		HTTP:      cfg.HTTP,
		Logger:    log,
		Profiling: cfg.Telemetry.ProfilingEnabled,
	}
	if tel.tracer.IsEnabled() {
		engineCfg.ServiceName = cfg.Telemetry.ServiceName
	}
	if tel.meters.IsEnabled() {
		engineCfg.Meter = tel.meters.Meter("marketsync/http")
	}
	engine := router.NewEngine(engineCfg, router.Handlers{
		Sync:   handler.NewSyncHandler(syncService),
		Orders: handler.NewOrderHandler(appintegration.NewOrderService(orderRepo, log)),
		System: handler.NewSystemHandler(version, db, adapters.SupportedPlatforms()),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Periodic sync trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	tel.shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

// platformSettings maps the per-platform configuration onto adapter
// settings. Unknown codes are skipped.
func platformSettings(platforms config.PlatformsConfig, log *zap.Logger) map[integration.PlatformType]ecommerce.PlatformSettings {
	settings := make(map[integration.PlatformType]ecommerce.PlatformSettings)
	for code, p := range platforms.ByCode() {
		platform, err := integration.ParsePlatformType(code)
		if err != nil {
			log.Warn("Skipping unknown platform", zap.String("platform", code))
			continue
		}
		settings[platform] = ecommerce.PlatformSettings{
			APIBaseURL:       p.BaseURL,
			IsSandbox:        p.Sandbox,
			TimeoutSeconds:   p.TimeoutSeconds,
			RateLimitQPS:     p.RateLimitQPS,
			RateLimitBurst:   p.RateLimitBurst,
			CategoryMaxDepth: p.CategoryMaxDepth,
		}
	}
	return settings
}

func migrateUp(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.SQL()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, "", log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared *sql.DB
	return m.Up()
}

// telemetryStack holds the OpenTelemetry providers and the logger bridged
// to the log exporter
type telemetryStack struct {
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// initTelemetry starts tracing, metrics, log export and profiling. A
// component that fails to start is logged and left disabled.
func initTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) *telemetryStack {
	t := cfg.Telemetry
	stack := &telemetryStack{logger: log}

	collector := telemetry.Collector{
		Endpoint:       t.CollectorEndpoint,
		Insecure:       t.Insecure,
		ServiceName:    t.ServiceName,
		ServiceVersion: version,
	}

	var err error
	stack.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Collector:     collector,
		Enabled:       t.Enabled,
		SamplingRatio: t.SamplingRatio,
	}, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
		stack.tracer, _ = telemetry.NewTracerProvider(ctx, telemetry.Config{}, log)
	}

	stack.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Collector:      collector,
		Enabled:        t.MetricsEnabled,
		ExportInterval: t.MetricsInterval,
	}, log)
	if err != nil {
		log.Warn("Metrics disabled", zap.Error(err))
		stack.meters, _ = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{}, log)
	}

	stack.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Collector: collector,
		Enabled:   t.LogsEnabled,
	}, log)
	if err != nil {
		log.Warn("Log export disabled", zap.Error(err))
	} else {
		stack.logger = stack.logs.Bridge(log, zapcore.InfoLevel)
	}

	stack.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         t.ProfilingEnabled,
		ServerAddress:   t.ProfilingServerAddress,
		ApplicationName: t.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Profiling disabled", zap.Error(err))
	} else if stack.tracer.IsEnabled() {
		stack.profiler.LinkSpans(stack.tracer)
	}

	return stack
}

// shutdown flushes and stops every provider
func (s *telemetryStack) shutdown(ctx context.Context) {
	if s.profiler != nil {
		if err := s.profiler.Stop(); err != nil {
			s.logger.Warn("Error stopping profiler", zap.Error(err))
		}
	}
	// providers log their own drain failures
	_ = s.meters.Shutdown(ctx)
	_ = s.tracer.Shutdown(ctx)
	if s.logs != nil {
		_ = s.logs.Shutdown(ctx)
	}
}
