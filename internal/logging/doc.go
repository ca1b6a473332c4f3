// Package logging wraps zap for vectord: context-aware methods, a trace
// level below debug, redaction of credentials, per-level sampling, and an
// optional OpenTelemetry log bridge alongside the console sink.
//
// Loggers take a context first so correlation fields ride along for free.
// WithOperation and WithCollection stash request metadata in the context,
// and every log call emits it together with the active trace id:
//
//	ctx = logging.WithOperation(ctx, "qdrant_store")
//	ctx = logging.WithCollection(ctx, "legal_analysis")
//	logger.Info(ctx, "point stored", zap.Duration("duration", d))
//
// produces
//
//	{"level":"info","msg":"point stored","trace_id":"abc123",
//	 "operation":"qdrant_store","collection":"legal_analysis","duration":"45ms"}
//
// The console sink defaults to stdout; stdio MCP serving switches it to
// stderr because stdout belongs to the protocol. Credentials never reach
// either sink: the encoder blanks denied field names and pattern-matching
// values, and RedactedString logs only a value's length for fields that
// must be redacted at the call site.
//
// Sampling is per level and tuned for bulk ingestion: trace and debug are
// nearly silent, info and warn get a capped trickle, errors always pass.
// Set cfg.Sampling.Enabled = false when chasing a bug.
//
// Tests assert on captured output through TestLogger:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "point stored", zap.String("collection", "docs"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "point stored")
//	tl.AssertNoSecrets(t)
//
// Logger is safe for concurrent use; With and Named return independent
// children.
package logging
