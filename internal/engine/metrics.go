package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/engine"

// Metrics records engine operation telemetry.
type Metrics struct {
	operationDuration metric.Float64Histogram
	errorsTotal       metric.Int64Counter
}

// NewMetrics creates engine metrics using the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"vectord.engine.operation_duration_seconds",
		metric.WithDescription("Duration of engine operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"vectord.engine.errors_total",
		metric.WithDescription("Total engine operation errors by code"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		operationDuration: duration,
		errorsTotal:       errorsTotal,
	}, nil
}

// RecordOperation records one operation's duration and outcome.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
	}
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.String("code", Code(err)))...))
	}
}
