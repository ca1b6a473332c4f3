package logging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exercises the whole pipeline against a real core: config, redacting
// encoder, context injection, child and named loggers. Output goes to
// stdout; the test only checks that nothing errors or panics.
func TestFullPipeline(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Sampling.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	ctx := WithOperation(context.Background(), "qdrant_store")
	ctx = WithCollection(ctx, "legal_analysis")
	ctx = WithRequestID(ctx, "req_456")

	logger.Trace(ctx, "vector dump", zap.String("detail", "ultra-verbose"))
	logger.Debug(ctx, "cache probe", zap.String("cache", "hit"))
	logger.Info(ctx, "point stored", zap.Duration("duration", 45*time.Millisecond))
	logger.Warn(ctx, "retrying upsert", zap.Int("retry_attempt", 2))
	logger.Error(ctx, "upsert failed", zap.Error(fmt.Errorf("test error")))

	logger.Info(ctx, "backend configured", RedactedString("api_key", "qd-super-secret"))
	logger.With(zap.String("component", "qdrant")).Info(ctx, "child log")
	logger.Named("engine").Info(ctx, "named log")

	// Sync fails when stdout is not a regular file, as in CI; only the
	// absence of a panic matters here.
	_ = logger.Sync()
}

func TestPipeline_ContextFieldInjection(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithOperation(context.Background(), "qdrant_find")
	ctx = WithCollection(ctx, "lessons_learned")
	tl.Info(ctx, "request", zap.String("method", "GET"))

	tl.AssertLogged(t, zapcore.InfoLevel, "request")
	tl.AssertField(t, "request", "operation", "qdrant_find")
	tl.AssertField(t, "request", "collection", "lessons_learned")
	tl.AssertField(t, "request", "method", "GET")
}

func TestPipeline_CredentialRedaction(t *testing.T) {
	tl := NewTestLogger()

	tl.Info(context.Background(), "auth", RedactedString("backend_key", "qd-1234567890"))

	tl.AssertLogged(t, zapcore.InfoLevel, "auth")
	tl.AssertField(t, "auth", "backend_key", "[REDACTED:13]")
	tl.AssertNoSecrets(t)
}
