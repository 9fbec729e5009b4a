package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// DefaultSlowQuery is the threshold above which a statement is logged as
// slow when SQLLogConfig leaves it unset.
const DefaultSlowQuery = 500 * time.Millisecond

// SQLLogConfig tunes the GORM statement logger.
type SQLLogConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold < 0 disables slow statement warnings.
	SlowThreshold time.Duration
	// LogNotFound reports gorm.ErrRecordNotFound as an error. Lookups by
	// platform key miss routinely during upserts, so this is off by default.
	LogNotFound bool
}

// GormLogger routes GORM output through zap. Statement entries carry the
// request and connection scope of the calling context.
type GormLogger struct {
	logger *zap.Logger
	cfg    SQLLogConfig
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func NewGormLogger(base *zap.Logger, cfg SQLLogConfig) *GormLogger {
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = DefaultSlowQuery
	}
	return &GormLogger{logger: base.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		l.scoped(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		l.scoped(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		l.scoped(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs one executed statement: failures at error, slow statements at
// warn and everything else at debug when the level is Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	level := l.cfg.Level
	if level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && (l.cfg.LogNotFound || !errors.Is(err, gormlogger.ErrRecordNotFound))
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold

	var (
		msg string
		log func(string, ...zap.Field)
	)
	switch {
	case failed && level >= gormlogger.Error:
		msg, log = "SQL statement failed", l.scoped(ctx).Error
	case err == nil && slow && level >= gormlogger.Warn:
		msg, log = "Slow SQL statement", l.scoped(ctx).Warn
	case err == nil && level >= gormlogger.Info:
		msg, log = "SQL statement", l.scoped(ctx).Debug
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		zap.String("source", utils.FileWithLineNum()),
	}
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.cfg.SlowThreshold))
	}
	if failed {
		fields = append(fields, zap.Error(err))
	}
	log(msg, fields...)
}

func (l *GormLogger) scoped(ctx context.Context) *zap.Logger {
	if fields := scopeFields(ctx); len(fields) > 0 {
		return l.logger.With(fields...)
	}
	return l.logger
}

// MapGormLogLevel converts an application log level to the GORM level that
// produces comparable volume. Unknown levels map to Warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
