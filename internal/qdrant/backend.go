// Package qdrant provides the vector database backend adapter.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound indicates the collection or point does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates a transient backend failure (connection,
	// timeout, overload). Callers surface it as-is; no retries happen here.
	ErrUnavailable = errors.New("backend unavailable")
)

// Backend is the storage contract the engine and collection manager
// program against. Implementations do not retry; transient failures are
// classified as ErrUnavailable and left to the caller.
type Backend interface {
	// Health verifies the backend connection.
	Health(ctx context.Context) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a collection with one named vector slot.
	CreateCollection(ctx context.Context, name string, spec CollectionSpec) error

	// GetCollection returns collection geometry and point count.
	GetCollection(ctx context.Context, name string) (*CollectionDetail, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert inserts or replaces points carrying named vectors.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search runs similarity search against one named vector slot.
	Search(ctx context.Context, collection string, req SearchRequest) ([]ScoredPoint, error)

	// Retrieve fetches points by ID. Missing IDs are absent from the result.
	Retrieve(ctx context.Context, collection string, ids []string, withPayload, withVectors bool) ([]Point, error)

	// SetPayload merges payload fields into existing points. A non-nil key
	// targets a nested payload path instead of the root.
	SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any, key *string) error

	// Delete removes points by ID. Unknown IDs are not an error.
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases the backend connection.
	Close() error
}

// Quantization selects the vector compression tier for a collection.
type Quantization string

const (
	QuantizationNone   Quantization = "none"
	QuantizationScalar Quantization = "scalar"
	QuantizationBinary Quantization = "binary"
)

// HNSWSpec carries index build parameters.
type HNSWSpec struct {
	M           uint64
	EfConstruct uint64
}

// CollectionSpec describes the single named vector slot a new collection
// is created with.
type CollectionSpec struct {
	VectorName        string
	Size              uint64
	Distance          string
	HNSW              HNSWSpec
	Quantization      Quantization
	OnDiskPayload     bool
	IndexingThreshold uint64
}

// VectorInfo describes one named vector slot of an existing collection.
type VectorInfo struct {
	Size     uint64
	Distance string
}

// CollectionDetail reports collection geometry and status.
type CollectionDetail struct {
	Name        string
	PointsCount uint64
	// Vectors maps vector slot name to its geometry. A legacy collection
	// with a single unnamed vector appears under the empty string key.
	Vectors map[string]VectorInfo

	Status        string
	SegmentsCount uint64
	OptimizerOK   bool
	HNSW          HNSWSpec
	Quantization  Quantization
}

// Point is a stored vector with payload. VectorName addresses the named
// vector slot the vector belongs to.
type Point struct {
	ID         string
	VectorName string
	Vector     []float32
	Payload    map[string]any
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float32
}

// SearchRequest parameterizes a similarity search.
type SearchRequest struct {
	VectorName     string
	Vector         []float32
	Limit          uint64
	ScoreThreshold float32
	WithVectors    bool
}

// classifyError maps gRPC status codes onto the package sentinels so
// callers can branch with errors.Is without importing grpc.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
