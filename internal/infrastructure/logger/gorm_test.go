package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(cfg SQLLogConfig) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), recorded
}

func upsertSQL() (string, int64) {
	return `INSERT INTO "platform_orders" ("platform_order_number") VALUES ('1001') ON CONFLICT DO UPDATE`, 1
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Info})
	assert.Equal(t, DefaultSlowQuery, gl.cfg.SlowThreshold)
	assert.False(t, gl.cfg.LogNotFound)

	gl, _ = newObservedGormLogger(SQLLogConfig{Level: gormlogger.Info, SlowThreshold: time.Second})
	assert.Equal(t, time.Second, gl.cfg.SlowThreshold)
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl, _ := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Info})

	changed, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, changed.cfg.Level)
	assert.Equal(t, gormlogger.Info, gl.cfg.Level)
}

func TestGormLogger_LevelGates(t *testing.T) {
	ctx := context.Background()

	gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Warn})
	gl.Info(ctx, "migrated %d tables", 3)
	gl.Warn(ctx, "slow index on %s", "platform_orders")
	gl.Error(ctx, "connection lost")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "slow index on platform_orders", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Error})
		gl.Trace(ctx, time.Now(), upsertSQL, errors.New("duplicate key"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL statement failed", logs[0].Message)
		assert.Equal(t, "duplicate key", logs[0].ContextMap()["error"])
		assert.NotEmpty(t, logs[0].ContextMap()["source"])
	})

	t.Run("record not found", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Error})
		gl.Trace(ctx, time.Now(), upsertSQL, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())

		gl, recorded = newObservedGormLogger(SQLLogConfig{Level: gormlogger.Error, LogNotFound: true})
		gl.Trace(ctx, time.Now(), upsertSQL, gormlogger.ErrRecordNotFound)
		assert.Len(t, recorded.All(), 1)
	})

	t.Run("slow statement warns", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})
		gl.Trace(ctx, time.Now().Add(-10*time.Millisecond), upsertSQL, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
		assert.Equal(t, "Slow SQL statement", logs[0].Message)
		assert.Equal(t, time.Millisecond, logs[0].ContextMap()["slow_threshold"])
	})

	t.Run("negative threshold disables slow warnings", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Warn, SlowThreshold: -1})
		gl.Trace(ctx, time.Now().Add(-time.Hour), upsertSQL, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("normal statement at info", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Info})
		gl.Trace(ctx, time.Now(), upsertSQL, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
		assert.Equal(t, "SQL statement", logs[0].Message)
		assert.Equal(t, int64(1), logs[0].ContextMap()["rows"])
	})

	t.Run("silent", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Silent})
		gl.Trace(ctx, time.Now(), upsertSQL, errors.New("boom"))
		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_TraceCarriesConnection(t *testing.T) {
	gl, recorded := newObservedGormLogger(SQLLogConfig{Level: gormlogger.Info})

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
	ctx, _ = WithConnection(ctx, zap.NewNop(), "conn-1", "TAOBAO")
	gl.Trace(ctx, time.Now(), upsertSQL, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "conn-1", fields["connection_id"])
	assert.Equal(t, "TAOBAO", fields["platform"])
	assert.NotContains(t, fields, "user_id")
}

func TestMapGormLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"unknown": gormlogger.Warn,
		"":        gormlogger.Warn,
	}
	for level, want := range tests {
		assert.Equal(t, want, MapGormLogLevel(level), "level %q", level)
	}
}
