package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry is a Telemetry wired to in-memory exporters so tests can
// assert on recorded spans and collected metrics.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *testMetricReader
}

// NewTestTelemetry creates telemetry with in-memory exporters.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spanRecorder := tracetest.NewSpanRecorder()
	metricReader := newTestMetricReader()

	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(spanRecorder)),
			meterProvider: sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(metricReader.reader),
			),
		},
		SpanRecorder: spanRecorder,
		MetricReader: metricReader,
	}
}

// Spans returns all ended spans.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName finds an ended span by name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists fails tb unless a span with the given name ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("expected span %q not found, got: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute fails tb unless the named span carries the
// expected attribute value.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName string, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}

	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			if got := attrValue(attr.Value); got != expected {
				tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
			}
			return
		}
	}
	tb.Errorf("span %q missing attribute %q", spanName, key)
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	return names
}

func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// Reset is a no-op; the span recorder keeps ended spans and metric
// snapshots accumulate. Create a fresh TestTelemetry for isolation.
func (t *TestTelemetry) Reset() {}

// Shutdown tears down the providers. A manual reader the test already
// shut down is not an error.
func (t *TestTelemetry) Shutdown(ctx context.Context) error {
	err := t.Telemetry.Shutdown(ctx)
	if errors.Is(err, sdkmetric.ErrReaderShutdown) {
		return nil
	}
	return err
}

// testMetricReader wraps the SDK's ManualReader and keeps every collected
// snapshot.
type testMetricReader struct {
	reader  *sdkmetric.ManualReader
	mu      sync.Mutex
	metrics []metricdata.ResourceMetrics
}

func newTestMetricReader() *testMetricReader {
	return &testMetricReader{
		reader: sdkmetric.NewManualReader(),
	}
}

// ForceFlush collects current metrics and stores the snapshot.
func (r *testMetricReader) ForceFlush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return err
	}

	r.mu.Lock()
	r.metrics = append(r.metrics, rm)
	r.mu.Unlock()
	return nil
}

// Shutdown shuts down the underlying reader.
func (r *testMetricReader) Shutdown(ctx context.Context) error {
	return r.reader.Shutdown(ctx)
}

// Metrics returns all collected snapshots.
func (r *testMetricReader) Metrics() []metricdata.ResourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
