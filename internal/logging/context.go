// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	// Gateway operation being served (MCP tool or REST endpoint)
	if op := OperationFromContext(ctx); op != "" {
		fields = append(fields, zap.String("operation", op))
	}

	// Target collection
	if collection := CollectionFromContext(ctx); collection != "" {
		fields = append(fields, zap.String("collection", collection))
	}

	// Request ID
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type operationCtxKey struct{}
type collectionCtxKey struct{}
type requestCtxKey struct{}

// Validation constants
const (
	maxNameLen = 64
	maxIDLen   = 128
)

// namePattern allows alphanumeric, hyphen, underscore.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateName validates an operation or collection name.
func validateName(name, what string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%s contains invalid UTF-8", what)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%s exceeds max length %d", what, maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", what)
	}
	return nil
}

// validateID validates a request ID.
func validateID(id, what string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", what)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", what, maxIDLen)
	}
	if !namePattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", what)
	}
	return nil
}

// OperationFromContext extracts the operation name from context.
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationCtxKey{}).(string); ok {
		return op
	}
	return ""
}

// WithOperation adds the operation name to context.
// Panics if operation is empty or contains invalid characters; operation
// names are compile-time constants, not user input.
func WithOperation(ctx context.Context, operation string) context.Context {
	if err := validateName(operation, "operation"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, operationCtxKey{}, operation)
}

// CollectionFromContext extracts the collection name from context.
func CollectionFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(collectionCtxKey{}).(string); ok {
		return c
	}
	return ""
}

// WithCollection adds the collection name to context.
// Callers must validate user-supplied names before attaching them;
// WithCollection panics on invalid input.
func WithCollection(ctx context.Context, collection string) context.Context {
	if err := validateName(collection, "collection"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, collectionCtxKey{}, collection)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
