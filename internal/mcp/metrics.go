package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/engine"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/mcp"

// Metrics instruments tool dispatch. Nil instruments (failed registration)
// are skipped at record time rather than failing the tool call.
type Metrics struct {
	logger         *zap.Logger
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics registers tool instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetricsFromMeter(otel.Meter(instrumentationName), logger)
}

func newMetricsFromMeter(meter metric.Meter, logger *zap.Logger) *Metrics {
	m := &Metrics{logger: logger}
	var err error

	m.invocations, err = meter.Int64Counter(
		"vectord.mcp.tool.invocations_total",
		metric.WithDescription("Tool calls by tool name"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		logger.Warn("failed to create invocations counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"vectord.mcp.tool.duration_seconds",
		metric.WithDescription("Tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"vectord.mcp.tool.errors_total",
		metric.WithDescription("Tool call failures by tool name and error code"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"vectord.mcp.tool.active_requests",
		metric.WithDescription("Tool calls currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	return m
}

// RecordInvocation counts one finished tool call. Failures carry the
// engine error code as a label so dashboards can split by cause.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName string, elapsed time.Duration, err error) {
	tool := attribute.String("tool", toolName)

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(tool))
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(tool))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(tool, attribute.String("code", engine.Code(err))))
	}
}

// IncrementActive marks a tool call as in flight.
func (m *Metrics) IncrementActive(ctx context.Context, toolName string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", toolName)))
	}
}

// DecrementActive marks a tool call as finished.
func (m *Metrics) DecrementActive(ctx context.Context, toolName string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, -1, metric.WithAttributes(attribute.String("tool", toolName)))
	}
}
