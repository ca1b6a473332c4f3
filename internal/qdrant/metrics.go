// internal/qdrant/metrics.go
package qdrant

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/qdrant"

// Metrics holds backend operation metrics.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates a Metrics instance for the backend adapter.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"vectord.qdrant.operation_duration_seconds",
		metric.WithDescription("Duration of backend operations in seconds, labeled by operation (upsert, search, retrieve, ...)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"vectord.qdrant.errors_total",
		metric.WithDescription("Total backend operation errors by operation. Includes connection failures, timeouts, and rejected requests."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordOperation records one backend operation.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
	}

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
