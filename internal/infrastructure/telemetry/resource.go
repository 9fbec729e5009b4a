package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// shutdownTimeout bounds how long a provider may spend draining on exit.
const shutdownTimeout = 10 * time.Second

// Collector identifies the OTLP endpoint every pipeline exports to and the
// service the exported data is attributed to.
type Collector struct {
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
}

// resource describes the sync engine process. An empty version is reported
// as "dev".
func (c Collector) resource() (*resource.Resource, error) {
	version := c.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(version),
			attribute.String("service.role", "sync-engine"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %q: %w", c.ServiceName, err)
	}
	return res, nil
}

// drain runs a provider shutdown under shutdownTimeout and logs the result
// against the named pipeline.
func drain(ctx context.Context, pipeline string, logger *zap.Logger, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logger.Warn("Telemetry pipeline did not drain",
			zap.String("pipeline", pipeline),
			zap.Error(err),
		)
		return fmt.Errorf("failed to shutdown %s pipeline: %w", pipeline, err)
	}
	logger.Debug("Telemetry pipeline drained", zap.String("pipeline", pipeline))
	return nil
}
