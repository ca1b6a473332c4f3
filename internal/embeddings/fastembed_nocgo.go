//go:build !cgo

// internal/embeddings/fastembed_nocgo.go
package embeddings

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/registry"
)

// ErrFastEmbedNotAvailable is returned when FastEmbed is not available
// (requires CGO). The daemon still builds and serves; embedding-backed
// operations report the embedder as unavailable.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	CacheDir             string
	MaxLength            int
	GPUEnabled           bool
	GPULibraryPath       string
	ShowDownloadProgress bool
	Logger               *zap.Logger
	Metrics              *Metrics
}

// FastEmbedProvider is a stub for non-CGO builds.
type FastEmbedProvider struct{}

// NewFastEmbedProvider returns an error when CGO is not available.
func NewFastEmbedProvider(_ registry.ModelDescriptor, _ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

// EmbedDocuments returns an error when CGO is not available.
func (p *FastEmbedProvider) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// EmbedQuery returns an error when CGO is not available.
func (p *FastEmbedProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// ModelID returns an empty string when CGO is not available.
func (p *FastEmbedProvider) ModelID() string {
	return ""
}

// Dimensions returns 0 when CGO is not available.
func (p *FastEmbedProvider) Dimensions() int {
	return 0
}

// ActiveProviders returns nil when CGO is not available.
func (p *FastEmbedProvider) ActiveProviders() []string {
	return nil
}

// Close is a no-op when CGO is not available.
func (p *FastEmbedProvider) Close() error {
	return nil
}
