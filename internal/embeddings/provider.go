// internal/embeddings/provider.go
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates input the runtime cannot process (e.g. non-UTF8)
	ErrInvalidInput = errors.New("invalid input text")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder generates vectors for documents and queries.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder bound to one model.
type Provider interface {
	Embedder
	// ModelID returns the registry model ID this provider serves.
	ModelID() string
	// Dimensions returns the embedding dimension for the model.
	Dimensions() int
	// ActiveProviders returns the negotiated ONNX execution provider chain.
	ActiveProviders() []string
	// Close releases resources held by the provider.
	Close() error
}
