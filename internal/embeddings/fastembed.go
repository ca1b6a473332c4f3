//go:build cgo

// internal/embeddings/fastembed.go
package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/registry"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// CacheDir is the directory to cache model files.
	// Defaults to ~/.cache/vectord/models.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int

	// GPUEnabled attempts CUDA execution when a GPU-capable ONNX runtime
	// library is discoverable.
	GPUEnabled bool

	// GPULibraryPath points at a GPU-capable ONNX runtime shared library.
	// Falls back to the ONNX_GPU_PATH environment variable.
	GPULibraryPath string

	// ShowDownloadProgress enables the model download progress bar.
	ShowDownloadProgress bool

	// Logger records execution-provider negotiation. Optional.
	Logger *zap.Logger

	// Metrics records generation metrics. Optional.
	Metrics *Metrics
}

// FastEmbedProvider generates embeddings for one model using local ONNX
// inference.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	modelID   string
	dimension int
	active    []string
	metrics   *Metrics
	mu        sync.RWMutex
}

// runtimeCodes maps registry model IDs to fastembed runtime models. The
// e5 code is built from its raw name; fastembed-go ships the model but
// does not export a constant for it.
var runtimeCodes = map[string]fastembed.EmbeddingModel{
	"multilingual-e5-large": fastembed.EmbeddingModel("fast-multilingual-e5-large"),
	"bge-base-en-v1.5":      fastembed.BGEBaseENV15,
	"bge-base-en":           fastembed.BGEBaseEN,
	"bge-small-en-v1.5":     fastembed.BGESmallENV15,
	"bge-small-en":          fastembed.BGESmallEN,
	"bge-small-zh-v1.5":     fastembed.BGESmallZH,
	"all-minilm-l6-v2":      fastembed.AllMiniLML6V2,
}

// runtimeCode resolves a registry model ID to a fastembed model code.
// Custom descriptors may carry a raw fastembed code ("fast-...") as their ID.
func runtimeCode(modelID string) (fastembed.EmbeddingModel, error) {
	if code, ok := runtimeCodes[modelID]; ok {
		return code, nil
	}
	if strings.HasPrefix(modelID, "fast-") {
		return fastembed.EmbeddingModel(modelID), nil
	}
	return "", fmt.Errorf("%w: no embedding runtime for model %q", ErrInvalidConfig, modelID)
}

// NewFastEmbedProvider creates a FastEmbed provider for the given model
// descriptor.
//
// When GPU support is enabled and a GPU-capable runtime library is found,
// construction is attempted with the [cuda, cpu] provider chain first. On
// failure the session is retried against the CPU library with [cpu]. CPU
// failure is fatal for the model.
func NewFastEmbedProvider(desc registry.ModelDescriptor, cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	code, err := runtimeCode(desc.ID)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cacheDir = filepath.Join(home, ".cache", "vectord", "models")
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	showProgress := cfg.ShowDownloadProgress

	newModel := func(providers []string) (*fastembed.FlagEmbedding, error) {
		return fastembed.NewFlagEmbedding(&fastembed.InitOptions{
			Model:                code,
			CacheDir:             cacheDir,
			MaxLength:            maxLength,
			ShowDownloadProgress: &showProgress,
			ExecutionProviders:   providers,
		})
	}

	var (
		flagEmbed *fastembed.FlagEmbedding
		active    []string
	)

	if cfg.GPUEnabled {
		if gpuLib := gpuLibraryPath(cfg.GPULibraryPath); gpuLib != "" {
			if err := setONNXPathEnv(gpuLib); err == nil {
				chain := []string{"cuda", "cpu"}
				if m, err := newModel(chain); err == nil {
					flagEmbed, active = m, chain
					logger.Info("embedding model initialized with GPU support",
						zap.String("model", desc.ID),
						zap.Strings("execution_providers", chain))
				} else {
					logger.Warn("GPU initialization failed, falling back to CPU",
						zap.String("model", desc.ID),
						zap.Error(err))
				}
			}
		} else {
			logger.Warn("gpu_enabled set but no GPU runtime library found, using CPU",
				zap.String("model", desc.ID))
		}
	}

	if flagEmbed == nil {
		if cpuLib := GetONNXLibraryPath(); cpuLib != "" {
			if err := setONNXPathEnv(cpuLib); err != nil {
				return nil, fmt.Errorf("setting ONNX_PATH: %w", err)
			}
		}
		chain := []string{"cpu"}
		m, err := newModel(chain)
		if err != nil {
			return nil, fmt.Errorf("initializing FastEmbed model %q: %w", desc.ID, err)
		}
		flagEmbed, active = m, chain
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelID:   desc.ID,
		dimension: desc.Dimensions,
		active:    active,
		metrics:   cfg.Metrics,
	}, nil
}

// gpuLibraryPath returns the GPU runtime library path from config or the
// ONNX_GPU_PATH environment variable. Empty if neither resolves to a file.
func gpuLibraryPath(configured string) string {
	candidates := []string{configured, os.Getenv("ONNX_GPU_PATH")}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// EmbedDocuments generates embeddings for multiple texts.
// Uses "passage: " prefix for document embeddings as recommended by BGE and
// E5 models.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, t := range texts {
		if !utf8.ValidString(t) {
			return nil, fmt.Errorf("%w: text %d is not valid UTF-8", ErrInvalidInput, i)
		}
	}

	// Check context before proceeding
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	start := time.Now()

	// PassageEmbed adds the "passage: " prefix for documents
	embeddings, err := p.model.PassageEmbed(texts, 256)
	if p.metrics != nil {
		p.metrics.RecordGeneration(ctx, p.modelID, "embed_documents", time.Since(start), len(texts), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a single query.
// Uses "query: " prefix for query embeddings as recommended by BGE and E5
// models.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: query is not valid UTF-8", ErrInvalidInput)
	}

	// Check context before proceeding
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	start := time.Now()

	embedding, err := p.model.QueryEmbed(text)
	if p.metrics != nil {
		p.metrics.RecordGeneration(ctx, p.modelID, "embed_query", time.Since(start), 1, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	return embedding, nil
}

// ModelID returns the registry model ID this provider serves.
func (p *FastEmbedProvider) ModelID() string {
	return p.modelID
}

// Dimensions returns the embedding dimension for the model.
func (p *FastEmbedProvider) Dimensions() int {
	return p.dimension
}

// ActiveProviders returns the negotiated ONNX execution provider chain.
func (p *FastEmbedProvider) ActiveProviders() []string {
	return p.active
}

// Close releases resources held by the FastEmbed provider.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		err := p.model.Destroy()
		p.model = nil
		return err
	}
	return nil
}
