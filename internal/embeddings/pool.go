// internal/embeddings/pool.go
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/registry"
)

// ErrPoolClosed is returned by Get after the pool has been closed.
var ErrPoolClosed = errors.New("embedder pool is closed")

// Pool lazily constructs and shares one Provider per model. Construction
// is serialized per model and runs in parallel across models. A terminal
// construction failure is memoized so subsequent Gets for the same model
// fail fast instead of re-initializing a broken runtime.
type Pool struct {
	registry  *registry.Registry
	cfg       FastEmbedConfig
	logger    *zap.Logger
	construct func(registry.ModelDescriptor, FastEmbedConfig) (Provider, error)

	mu      sync.Mutex
	entries map[string]*poolEntry
	closed  bool
}

// poolEntry latches one provider construction. ready is closed once
// provider and err are final.
type poolEntry struct {
	ready    chan struct{}
	provider Provider
	err      error
}

// NewPool creates a pool over the given model registry. The FastEmbed
// config is shared by every provider the pool constructs.
func NewPool(reg *registry.Registry, cfg FastEmbedConfig, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	return &Pool{
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		construct: func(desc registry.ModelDescriptor, c FastEmbedConfig) (Provider, error) {
			return NewFastEmbedProvider(desc, c)
		},
		entries: make(map[string]*poolEntry),
	}
}

// Get returns the shared provider for modelID, constructing it on first
// use. Callers waiting on an in-flight construction unblock together when
// it finishes. ctx cancellation abandons the wait, not the construction.
func (p *Pool) Get(ctx context.Context, modelID string) (Provider, error) {
	desc, ok := p.registry.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidConfig, modelID)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	entry, ok := p.entries[desc.ID]
	if !ok {
		entry = &poolEntry{ready: make(chan struct{})}
		p.entries[desc.ID] = entry
		p.mu.Unlock()

		provider, err := p.construct(desc, p.cfg)
		entry.provider, entry.err = provider, err
		close(entry.ready)

		if err != nil {
			p.logger.Error("embedding model initialization failed",
				zap.String("model", desc.ID),
				zap.Error(err))
		} else {
			p.logger.Info("embedding model ready",
				zap.String("model", desc.ID),
				zap.Int("dimensions", desc.Dimensions),
				zap.Strings("execution_providers", provider.ActiveProviders()))
		}
	} else {
		p.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-entry.ready:
	}

	if entry.err != nil {
		return nil, fmt.Errorf("embedder for model %q: %w", desc.ID, entry.err)
	}
	return entry.provider, nil
}

// Close destroys every constructed provider. Waits for in-flight
// constructions to finish so nothing leaks.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	entries := make([]*poolEntry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.ready
		if e.provider == nil {
			continue
		}
		if err := e.provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
