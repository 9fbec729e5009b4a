package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/integration"
)

// Sync resources used as the "resource" label
const (
	ResourceOrders     = "orders"
	ResourceCategories = "categories"
)

// Record outcomes used as the "outcome" label of sync_records_total
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// SyncDurationBuckets are bucket boundaries for a whole connection sync (seconds).
var SyncDurationBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}

// SyncMetrics records the outcome of connection syncs.
type SyncMetrics struct {
	logger *zap.Logger

	recordsTotal       *Counter
	failuresTotal      *Counter
	connectionDuration *Histogram
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates the sync counters and histogram on the given meter.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}

	var err error
	if sm.recordsTotal, err = NewCounter(cfg.Meter, Instrument{
		Name:        "sync_records_total",
		Description: "Records processed by connection syncs, by outcome",
		Unit:        "{records}",
	}); err != nil {
		return nil, err
	}
	if sm.failuresTotal, err = NewCounter(cfg.Meter, Instrument{
		Name:        "sync_connection_failures_total",
		Description: "Connection syncs that ended FAILED, by error kind",
		Unit:        "{connections}",
	}); err != nil {
		return nil, err
	}
	if sm.connectionDuration, err = NewHistogram(cfg.Meter, Instrument{
		Name:        "sync_connection_duration_seconds",
		Description: "Wall time of one connection sync",
		Unit:        "s",
	}, SyncDurationBuckets...); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordSyncResult records one finished connection sync.
func (sm *SyncMetrics) RecordSyncResult(ctx context.Context, resource string, result *integration.SyncResult) {
	if result == nil {
		return
	}
	platform := AttrPlatform.String(result.PlatformType.String())
	res := AttrResource.String(resource)

	if changed := result.SyncedCount - result.UnchangedCount; changed > 0 {
		sm.recordsTotal.Add(ctx, int64(changed), platform, res, AttrOutcome.String(OutcomeChanged))
	}
	if result.UnchangedCount > 0 {
		sm.recordsTotal.Add(ctx, int64(result.UnchangedCount), platform, res, AttrOutcome.String(OutcomeUnchanged))
	}
	if n := result.ErrorCount(); n > 0 {
		sm.recordsTotal.Add(ctx, int64(n), platform, res, AttrOutcome.String(OutcomeFailed))
	}

	if result.Failed() {
		sm.failuresTotal.Inc(ctx, platform, res, AttrErrorKind.String(integration.ErrorKind(result.ConnectionError)))
	}

	sm.connectionDuration.RecordDuration(ctx, result.Duration(), platform, res, AttrSyncState.String(result.State.String()))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
