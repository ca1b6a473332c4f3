package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func newDisabled(t *testing.T) *Telemetry {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Enabled = false
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel)
	return tel
}

func TestNew_Disabled(t *testing.T) {
	tel := newDisabled(t)

	assert.NotNil(t, tel.Tracer("search"))
	assert.NotNil(t, tel.Meter("search"))
	assert.False(t, tel.IsEnabled())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_NilReceiver(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("search")
		_ = tel.Meter("search")
		_ = tel.LoggerProvider()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
		tel.SetLoggerProvider(nil)
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestTelemetry_Shutdown(t *testing.T) {
	tel := newDisabled(t)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestTelemetry_ShutdownHonorsContext(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = false
	cfg.Shutdown.Timeout = 100 * time.Millisecond

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_ForceFlushDisabled(t *testing.T) {
	tel := newDisabled(t)
	require.NoError(t, tel.ForceFlush(context.Background()))
}

func TestTelemetry_LoggerProviderUnsetByDefault(t *testing.T) {
	tel := newDisabled(t)
	assert.Nil(t, tel.LoggerProvider())
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()
	require.NotNil(t, tt)

	tracer := tt.Tracer("ingest")
	for _, name := range []string{"embed.batch", "upsert.points", "resolve.model"} {
		_, span := tracer.Start(context.Background(), name)
		span.SetAttributes(attribute.String("collection", "docs"))
		span.End()
	}

	assert.Len(t, tt.Spans(), 3)
	tt.AssertSpanExists(t, "embed.batch")
	tt.AssertSpanAttribute(t, "upsert.points", "collection", "docs")

	assert.Nil(t, tt.SpanByName("no.such.span"))
	found := tt.SpanByName("resolve.model")
	require.NotNil(t, found)
	assert.Equal(t, "resolve.model", found.Name())
}

func TestTestTelemetry_AttributeTypes(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("ingest").Start(context.Background(), "embed.batch")
	span.SetAttributes(
		attribute.String("model", "all-minilm"),
		attribute.Int64("chunks", 42),
		attribute.Float64("threshold", 0.7),
		attribute.Bool("quantized", true),
	)
	span.End()

	tt.AssertSpanAttribute(t, "embed.batch", "model", "all-minilm")
	tt.AssertSpanAttribute(t, "embed.batch", "chunks", int64(42))
	tt.AssertSpanAttribute(t, "embed.batch", "threshold", 0.7)
	tt.AssertSpanAttribute(t, "embed.batch", "quantized", true)
}

func TestTestTelemetry_RecordsMetrics(t *testing.T) {
	tt := NewTestTelemetry()

	counter, err := tt.Meter("ingest").Int64Counter("points.stored")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	counter.Add(context.Background(), 2)

	require.NoError(t, tt.MetricReader.ForceFlush(context.Background()))
	assert.NotEmpty(t, tt.MetricReader.Metrics())
}

func TestTestTelemetry_ForceFlush(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("ingest").Start(context.Background(), "flush.check")
	span.End()

	require.NoError(t, tt.ForceFlush(context.Background()))
}

func TestTestTelemetry_Reset(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("ingest").Start(context.Background(), "embed.batch")
	span.End()
	assert.NotEmpty(t, tt.Spans())

	// Reset keeps ended spans; the recorder has no clear operation.
	tt.Reset()
}

func TestTestTelemetry_Shutdown(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("ingest").Start(context.Background(), "embed.batch")
	span.End()
	counter, _ := tt.Meter("ingest").Int64Counter("points.stored")
	counter.Add(context.Background(), 1)

	require.NoError(t, tt.MetricReader.Shutdown(context.Background()))
	require.NoError(t, tt.Shutdown(context.Background()))
	assert.False(t, tt.Health().Healthy)
}
