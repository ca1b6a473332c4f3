package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/vectord/internal/http"

// HTTPMetrics records request counts, latency, response size, and in-flight
// requests for the echo server. Instruments that failed to register are nil
// and skipped when recording.
type HTTPMetrics struct {
	logger         *zap.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics registers HTTP instruments on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newHTTPMetricsFromMeter(otel.Meter(httpInstrumentationName), logger)
}

func newHTTPMetricsFromMeter(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	m := &HTTPMetrics{logger: logger}
	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"vectord.http.requests_total",
		metric.WithDescription("Requests by method, endpoint, and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = meter.Float64Histogram(
		"vectord.http.request_duration_seconds",
		metric.WithDescription("Request latency by method, endpoint, and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = meter.Int64Histogram(
		"vectord.http.response_size_bytes",
		metric.WithDescription("Response body size by method, endpoint, and status"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000),
	)
	if err != nil {
		logger.Warn("failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"vectord.http.active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	return m
}

// MetricsMiddleware instruments every request. The endpoint label is the
// route template (":name" stays ":name"), keeping cardinality bounded.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "/"
			}
			opts := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", endpoint),
				attribute.Int("status", c.Response().Status),
			)

			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, opts)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), opts)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, opts)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			return err
		}
	}
}
