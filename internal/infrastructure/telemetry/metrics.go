package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultExportInterval = time.Minute

// MetricsConfig holds metrics configuration. ExportInterval defaults to one
// minute.
type MetricsConfig struct {
	Collector
	Enabled        bool
	ExportInterval time.Duration
}

// MeterProvider owns the metric pipeline. A disabled provider hands out
// meters from the global (no-op) provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider pushes metrics over OTLP/gRPC every ExportInterval and
// installs the provider globally.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if !cfg.Enabled {
		logger.Info("Metrics disabled")
		return &MeterProvider{logger: logger}, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	mp, err := newMeterProvider(cfg.Collector, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), logger)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp.provider)

	logger.Info("Metrics enabled",
		zap.String("collector_endpoint", cfg.Endpoint),
		zap.Duration("export_interval", interval),
		zap.String("service_name", cfg.ServiceName),
	)
	return mp, nil
}

// newMeterProvider builds a provider around an arbitrary reader without
// touching global state.
func newMeterProvider(c Collector, reader sdkmetric.Reader, logger *zap.Logger) (*MeterProvider, error) {
	res, err := c.resource()
	if err != nil {
		return nil, err
	}
	return &MeterProvider{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)),
		logger:   logger,
	}, nil
}

// Meter returns a named meter.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// ForceFlush pushes collected metrics now.
func (mp *MeterProvider) ForceFlush(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	return mp.provider.ForceFlush(ctx)
}

// Shutdown performs a final export and stops the reader.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	return drain(ctx, "metrics", mp.logger, mp.provider.Shutdown)
}

// Instrument names a metric.
type Instrument struct {
	Name        string
	Description string
	Unit        string
}

// Counter is a monotonic int64 counter.
type Counter struct {
	counter metric.Int64Counter
}

func NewCounter(meter metric.Meter, inst Instrument) (*Counter, error) {
	c, err := meter.Int64Counter(inst.Name,
		metric.WithDescription(inst.Description),
		metric.WithUnit(inst.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", inst.Name, err)
	}
	return &Counter{counter: c}, nil
}

func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram records float64 samples, durations in seconds.
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a histogram. Without buckets the SDK defaults apply.
func NewHistogram(meter metric.Meter, inst Instrument, buckets ...float64) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(inst.Description),
		metric.WithUnit(inst.Unit),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := meter.Float64Histogram(inst.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", inst.Name, err)
	}
	return &Histogram{histogram: h}, nil
}

func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, v, metric.WithAttributes(attrs...))
}

func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// InFlight tracks a count that goes up and down, such as active requests.
type InFlight struct {
	counter metric.Int64UpDownCounter
}

func NewInFlight(meter metric.Meter, inst Instrument) (*InFlight, error) {
	c, err := meter.Int64UpDownCounter(inst.Name,
		metric.WithDescription(inst.Description),
		metric.WithUnit(inst.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create up-down counter %s: %w", inst.Name, err)
	}
	return &InFlight{counter: c}, nil
}

// Track increments the count and returns the matching decrement.
func (f *InFlight) Track(ctx context.Context, attrs ...attribute.KeyValue) func() {
	opt := metric.WithAttributes(attrs...)
	f.counter.Add(ctx, 1, opt)
	return func() { f.counter.Add(ctx, -1, opt) }
}

// Metric attribute keys
const (
	AttrPlatform  = attribute.Key("platform")
	AttrResource  = attribute.Key("resource")
	AttrOutcome   = attribute.Key("outcome")
	AttrErrorKind = attribute.Key("kind")
	AttrSyncState = attribute.Key("state")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPRoute      = attribute.Key("http.route")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
)
