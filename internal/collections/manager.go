// Package collections manages collection provisioning against the vector
// backend. Ensure resolves a collection name to its embedding model,
// verifies or creates the backing collection, and memoizes the outcome so
// the verify-or-create round trip happens once per collection.
package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/qdrant"
	"github.com/fyrsmithlabs/vectord/internal/registry"
)

var (
	// ErrNoSuchCollection indicates the collection does not exist and
	// auto-creation is disabled.
	ErrNoSuchCollection = errors.New("no such collection")

	// ErrModelMismatch indicates an existing collection's geometry does not
	// match the model routed to it. The collection is never migrated or
	// rewritten; the conflict has to be resolved by the operator.
	ErrModelMismatch = errors.New("collection geometry does not match routed model")
)

// State tracks a collection's lifecycle inside the manager.
type State int

const (
	StateUnknown State = iota
	StateEnsuring
	StateReady
	StateMismatched
)

func (s State) String() string {
	switch s {
	case StateEnsuring:
		return "ensuring"
	case StateReady:
		return "ready"
	case StateMismatched:
		return "mismatched"
	default:
		return "unknown"
	}
}

// Config holds provisioning parameters for new collections.
type Config struct {
	AutoCreate         bool
	EnableQuantization bool
	HNSWEfConstruct    uint64
	HNSWM              uint64
	IndexingThreshold  uint64
	OnDiskPayload      bool
}

// ResolvedCollection is the outcome of a successful Ensure.
type ResolvedCollection struct {
	// Name is the canonical collection name (aliases resolved).
	Name string
	// Model is the embedding model routed to this collection.
	Model registry.ModelDescriptor
	// VectorName is the named vector slot documents live under.
	VectorName string
	// Created reports whether Ensure created the collection.
	Created bool
}

// entry latches one ensure outcome. ready is closed once resolved and err
// are final. Mismatches are terminal; other failures clear the entry so a
// later Ensure retries against the backend.
type entry struct {
	ready    chan struct{}
	state    State
	resolved *ResolvedCollection
	err      error
}

// Manager serializes collection provisioning per name.
type Manager struct {
	backend  qdrant.Backend
	resolver *registry.Resolver
	cfg      Config
	logger   *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager creates a collection manager.
func NewManager(backend qdrant.Backend, resolver *registry.Resolver, cfg Config, logger *logging.Logger) (*Manager, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{
		backend:  backend,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		entries:  make(map[string]*entry),
	}, nil
}

// Ensure resolves name to its model and guarantees the backing collection
// exists with matching geometry. Concurrent calls for the same name share
// one backend round trip; calls for different names proceed in parallel.
//
// A geometry mismatch is terminal: it is memoized and every later Ensure
// for that name fails fast without touching the backend. Transient
// failures are not memoized.
func (m *Manager) Ensure(ctx context.Context, name string) (*ResolvedCollection, error) {
	canonical := m.resolver.Canonical(name)

	m.mu.Lock()
	e, ok := m.entries[canonical]
	if !ok {
		e = &entry{ready: make(chan struct{}), state: StateEnsuring}
		m.entries[canonical] = e
		m.mu.Unlock()

		resolved, err := m.ensure(ctx, canonical)
		e.resolved, e.err = resolved, err

		m.mu.Lock()
		switch {
		case err == nil:
			e.state = StateReady
		case errors.Is(err, ErrModelMismatch):
			e.state = StateMismatched
		default:
			// Not terminal. Clear the entry so the next Ensure retries.
			e.state = StateUnknown
			delete(m.entries, canonical)
		}
		m.mu.Unlock()
		close(e.ready)
	} else {
		m.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.ready:
	}

	if e.err != nil {
		return nil, e.err
	}
	// Later callers get the memoized resolution; Created only reports true
	// to the caller that triggered creation.
	resolved := *e.resolved
	return &resolved, nil
}

// State reports the manager's view of a collection without side effects.
func (m *Manager) State(name string) State {
	canonical := m.resolver.Canonical(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[canonical]; ok {
		return e.state
	}
	return StateUnknown
}

// ensure performs the verify-or-create round trip for one collection.
func (m *Manager) ensure(ctx context.Context, canonical string) (*ResolvedCollection, error) {
	model := m.resolver.Resolve(canonical)
	vectorName := model.VectorName()

	exists, err := m.backend.CollectionExists(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("checking collection %q: %w", canonical, err)
	}

	if exists {
		if err := m.verifyGeometry(ctx, canonical, model, vectorName); err != nil {
			return nil, err
		}
		return &ResolvedCollection{Name: canonical, Model: model, VectorName: vectorName}, nil
	}

	if !m.cfg.AutoCreate {
		return nil, fmt.Errorf("%w: %q (auto-creation disabled)", ErrNoSuchCollection, canonical)
	}

	spec := m.buildSpec(canonical, model, vectorName)
	if err := m.backend.CreateCollection(ctx, canonical, spec); err != nil {
		// A concurrent creator may have won the race. Re-verify instead of
		// failing.
		if recheck, recheckErr := m.backend.CollectionExists(ctx, canonical); recheckErr == nil && recheck {
			if verifyErr := m.verifyGeometry(ctx, canonical, model, vectorName); verifyErr != nil {
				return nil, verifyErr
			}
			return &ResolvedCollection{Name: canonical, Model: model, VectorName: vectorName}, nil
		}
		return nil, fmt.Errorf("creating collection %q: %w", canonical, err)
	}

	m.logger.Info(ctx, "collection created",
		zap.String("collection", canonical),
		zap.String("model", model.ID),
		zap.String("vector_name", vectorName),
		zap.Int("dimensions", model.Dimensions),
		zap.String("quantization", string(spec.Quantization)),
		zap.Uint64("hnsw_m", spec.HNSW.M),
		zap.Uint64("hnsw_ef_construct", spec.HNSW.EfConstruct),
	)

	return &ResolvedCollection{Name: canonical, Model: model, VectorName: vectorName, Created: true}, nil
}

// verifyGeometry checks that an existing collection exposes the expected
// named vector slot with matching size and distance.
func (m *Manager) verifyGeometry(ctx context.Context, canonical string, model registry.ModelDescriptor, vectorName string) error {
	detail, err := m.backend.GetCollection(ctx, canonical)
	if err != nil {
		return fmt.Errorf("inspecting collection %q: %w", canonical, err)
	}

	info, ok := detail.Vectors[vectorName]
	if !ok {
		if _, legacy := detail.Vectors[""]; legacy {
			return fmt.Errorf("%w: collection %q uses a legacy unnamed vector, expected slot %q",
				ErrModelMismatch, canonical, vectorName)
		}
		return fmt.Errorf("%w: collection %q has no vector slot %q (model %s)",
			ErrModelMismatch, canonical, vectorName, model.ID)
	}
	if info.Size != uint64(model.Dimensions) {
		return fmt.Errorf("%w: collection %q slot %q has size %d, model %s requires %d",
			ErrModelMismatch, canonical, vectorName, info.Size, model.ID, model.Dimensions)
	}
	if info.Distance != string(model.Distance) {
		return fmt.Errorf("%w: collection %q slot %q uses distance %s, model %s requires %s",
			ErrModelMismatch, canonical, vectorName, info.Distance, model.ID, model.Distance)
	}
	return nil
}

// buildSpec derives the creation spec for a collection. HNSW parameters
// start from config and are tuned by collection name: "legal" collections
// get a denser graph for recall, "solutions" and "patterns" collections a
// lighter one for write throughput.
func (m *Manager) buildSpec(canonical string, model registry.ModelDescriptor, vectorName string) qdrant.CollectionSpec {
	ef := m.cfg.HNSWEfConstruct
	mEdges := m.cfg.HNSWM

	switch {
	case strings.Contains(canonical, "legal"):
		ef = max(200, ef)
		mEdges = max(16, mEdges)
	case strings.Contains(canonical, "solutions"), strings.Contains(canonical, "patterns"):
		ef = min(100, ef)
		mEdges = min(8, mEdges)
	}

	return qdrant.CollectionSpec{
		VectorName:        vectorName,
		Size:              uint64(model.Dimensions),
		Distance:          string(model.Distance),
		HNSW:              qdrant.HNSWSpec{M: mEdges, EfConstruct: ef},
		Quantization:      m.quantizationTier(model.Dimensions),
		OnDiskPayload:     m.cfg.OnDiskPayload,
		IndexingThreshold: m.cfg.IndexingThreshold,
	}
}

// quantizationTier selects compression by dimensionality: binary for wide
// vectors (>=1024), scalar INT8 for medium (>=512), none below that.
func (m *Manager) quantizationTier(dimensions int) qdrant.Quantization {
	if !m.cfg.EnableQuantization {
		return qdrant.QuantizationNone
	}
	switch {
	case dimensions >= 1024:
		return qdrant.QuantizationBinary
	case dimensions >= 512:
		return qdrant.QuantizationScalar
	default:
		return qdrant.QuantizationNone
	}
}
