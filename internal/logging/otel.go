package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newDualCore assembles the zap core from the configured sinks: a console
// stream (stdout, or stderr when stdout carries protocol traffic) and an
// optional OTEL log bridge. The result is wrapped with level sampling.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Stdout || cfg.Output.Stderr {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		stream := os.Stdout
		if cfg.Output.Stderr {
			stream = os.Stderr
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(stream), cfg.Level))
	}

	// A nil provider means telemetry is disabled or degraded; the console
	// sink still works, so this is not an error on its own.
	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("vectord", otelzap.WithLoggerProvider(otelProvider)))
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("at least one output must be enabled and available")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}
