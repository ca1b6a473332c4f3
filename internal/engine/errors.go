package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vectord/internal/collections"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/qdrant"
)

// Typed operation errors. Transports branch on these with errors.Is and
// translate them into wire-level error codes via Code.
var (
	// ErrInvalidInput reports a caller mistake: empty required strings,
	// malformed UUIDs, out-of-range limits, mismatched list lengths.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoSuchCollection reports an operation against a collection that
	// does not exist and will not be auto-created.
	ErrNoSuchCollection = errors.New("no such collection")

	// ErrModelMismatch reports a collection whose persisted geometry
	// disagrees with the model resolved for its name. Operator-fix.
	ErrModelMismatch = errors.New("model mismatch")

	// ErrEmbedderUnavailable reports an embedding runtime that could not be
	// constructed or failed to produce vectors.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrBackendUnavailable reports a transient vector database failure.
	// Callers may retry.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrPointNotFound reports a get or update against an unknown point id.
	ErrPointNotFound = errors.New("point not found")

	// ErrReadOnly reports a mutating operation against a read-only server.
	ErrReadOnly = errors.New("server is read-only")

	// ErrCancelled reports caller-initiated cancellation or a deadline.
	ErrCancelled = errors.New("operation cancelled")

	// ErrInternal reports an invariant violation inside the engine.
	ErrInternal = errors.New("internal error")
)

// Code returns the stable wire code for an engine error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNoSuchCollection):
		return "no_such_collection"
	case errors.Is(err, ErrModelMismatch):
		return "model_mismatch"
	case errors.Is(err, ErrEmbedderUnavailable):
		return "embedder_unavailable"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrPointNotFound):
		return "point_not_found"
	case errors.Is(err, ErrReadOnly):
		return "read_only"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "internal"
	}
}

// ensureError maps collection-manager failures into the taxonomy.
func ensureError(err error) error {
	switch {
	case errors.Is(err, collections.ErrModelMismatch):
		return fmt.Errorf("%w: %v", ErrModelMismatch, err)
	case errors.Is(err, collections.ErrNoSuchCollection):
		return fmt.Errorf("%w: %v", ErrNoSuchCollection, err)
	default:
		return backendError(err)
	}
}

// embedderError maps embedding failures into the taxonomy.
func embedderError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	case errors.Is(err, embeddings.ErrEmptyInput), errors.Is(err, embeddings.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return fmt.Errorf("%w: %v", ErrEmbedderUnavailable, err)
	}
}

// backendError maps vector database failures into the taxonomy.
// NotFound is handled per operation; here it means a missing collection.
func backendError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	case errors.Is(err, qdrant.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNoSuchCollection, err)
	case errors.Is(err, qdrant.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}
