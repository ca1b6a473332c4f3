// Package telemetry wires the OpenTelemetry SDK into vectord: traces,
// metrics, and an optional log bridge, all exported over OTLP to a
// collector.
//
// A Telemetry instance is created once at startup and threaded through the
// daemon:
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("vectord.engine")
//	ctx, span := tracer.Start(ctx, "Engine.Find")
//	defer span.End()
//
// Telemetry is disabled by default and never takes the process down: when
// disabled or when an exporter cannot be built, callers get no-op providers
// and Health reports the degraded state. Exporter failures after startup are
// surfaced the same way rather than returned to request paths.
//
// Sampling is parent-based on top of a configurable ratio. The insecure
// flag is only honored for loopback endpoints.
//
// Tests use NewTestTelemetry, which swaps the OTLP exporters for an in-memory
// span recorder and manual metric reader:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "embed.batch")
//	span.End()
//	tt.AssertSpanExists(t, "embed.batch")
package telemetry
