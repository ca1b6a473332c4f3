package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/vectord/internal/embeddings"

// Metrics instruments embedding generation. Instrument creation failures
// are logged and the affected instrument stays nil; recording checks for
// that, so a broken meter never blocks embedding.
type Metrics struct {
	logger    *zap.Logger
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics registers embedding instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetricsFromMeter(otel.Meter(embeddingsInstrumentationName), logger)
}

func newMetricsFromMeter(meter metric.Meter, logger *zap.Logger) *Metrics {
	m := &Metrics{logger: logger}
	var err error

	m.duration, err = meter.Float64Histogram(
		"vectord.embedding.generation_duration_seconds",
		metric.WithDescription("Time spent producing embeddings, labeled by model and operation (embed_documents, embed_query)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.batchSize, err = meter.Int64Histogram(
		"vectord.embedding.batch_size",
		metric.WithDescription("Texts per embedding request, for sizing ingest batches"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500),
	)
	if err != nil {
		logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"vectord.embedding.errors_total",
		metric.WithDescription("Embedding failures by model and operation, covering model load, ONNX runtime, and batch errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}

	return m
}

// RecordGeneration records one embedding call. A batchSize of zero skips
// the batch histogram; a non-nil err bumps the error counter.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, elapsed time.Duration, batchSize int, err error) {
	opts := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)

	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), opts)
	}
	if m.batchSize != nil && batchSize > 0 {
		m.batchSize.Record(ctx, int64(batchSize), opts)
	}
	if m.errors != nil && err != nil {
		m.errors.Add(ctx, 1, opts)
	}
}
