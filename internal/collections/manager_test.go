package collections

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/qdrant"
	"github.com/fyrsmithlabs/vectord/internal/registry"
)

// fakeBackend is an in-memory Backend recording calls for assertions.
type fakeBackend struct {
	mu           sync.Mutex
	collections  map[string]*qdrant.CollectionDetail
	createdSpecs map[string]qdrant.CollectionSpec

	existsCalls int
	getCalls    int
	createCalls int

	existsErr error
	createErr error
	// When set alongside createErr, the collection still materializes, as
	// if a concurrent creator won the race.
	createRaceVectorName string
	createRaceSize       uint64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		collections:  make(map[string]*qdrant.CollectionDetail),
		createdSpecs: make(map[string]qdrant.CollectionSpec),
	}
}

func (f *fakeBackend) addCollection(name, vectorName string, size uint64, distance string) {
	f.collections[name] = &qdrant.CollectionDetail{
		Name:    name,
		Vectors: map[string]qdrant.VectorInfo{vectorName: {Size: size, Distance: distance}},
	}
}

func (f *fakeBackend) Health(context.Context) error { return nil }

func (f *fakeBackend) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeBackend) CreateCollection(_ context.Context, name string, spec qdrant.CollectionSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		if f.createRaceVectorName != "" {
			f.collections[name] = &qdrant.CollectionDetail{
				Name:    name,
				Vectors: map[string]qdrant.VectorInfo{f.createRaceVectorName: {Size: f.createRaceSize, Distance: "cosine"}},
			}
		}
		return f.createErr
	}
	f.collections[name] = &qdrant.CollectionDetail{
		Name:    name,
		Vectors: map[string]qdrant.VectorInfo{spec.VectorName: {Size: spec.Size, Distance: spec.Distance}},
	}
	f.createdSpecs[name] = spec
	return nil
}

func (f *fakeBackend) GetCollection(_ context.Context, name string) (*qdrant.CollectionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	detail, ok := f.collections[name]
	if !ok {
		return nil, qdrant.ErrNotFound
	}
	return detail, nil
}

func (f *fakeBackend) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for n := range f.collections {
		names = append(names, n)
	}
	return names, nil
}

func (f *fakeBackend) Upsert(context.Context, string, []qdrant.Point) error { return nil }

func (f *fakeBackend) Search(context.Context, string, qdrant.SearchRequest) ([]qdrant.ScoredPoint, error) {
	return nil, nil
}

func (f *fakeBackend) Retrieve(context.Context, string, []string, bool, bool) ([]qdrant.Point, error) {
	return nil, nil
}

func (f *fakeBackend) SetPayload(context.Context, string, []string, map[string]any, *string) error {
	return nil
}

func (f *fakeBackend) Delete(context.Context, string, []string) error { return nil }

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) calls() (exists, get, create int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existsCalls, f.getCalls, f.createCalls
}

func newTestManager(t *testing.T, backend qdrant.Backend, cfg Config) *Manager {
	t.Helper()

	reg, err := registry.New()
	require.NoError(t, err)
	resolver, err := registry.NewResolver(reg, registry.DefaultRules())
	require.NoError(t, err)

	m, err := NewManager(backend, resolver, cfg, logging.NewTestLogger().Logger)
	require.NoError(t, err)
	return m
}

func defaultTestConfig() Config {
	return Config{
		AutoCreate:         true,
		EnableQuantization: true,
		HNSWEfConstruct:    128,
		HNSWM:              16,
		IndexingThreshold:  10000,
		OnDiskPayload:      true,
	}
}

func TestEnsure_CreatesMissingCollection(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, defaultTestConfig())

	resolved, err := m.Ensure(context.Background(), "working_solutions")
	require.NoError(t, err)

	assert.Equal(t, "working_solutions", resolved.Name)
	assert.Equal(t, "all-minilm-l6-v2", resolved.Model.ID)
	assert.Equal(t, "sentence-transformers-all-minilm-l6-v2", resolved.VectorName)
	assert.True(t, resolved.Created)

	spec := backend.createdSpecs["working_solutions"]
	assert.Equal(t, uint64(384), spec.Size)
	assert.Equal(t, "cosine", spec.Distance)
	// "solutions" collections get the lightweight index profile.
	assert.Equal(t, uint64(100), spec.HNSW.EfConstruct)
	assert.Equal(t, uint64(8), spec.HNSW.M)
	// 384 dims is below the quantization tiers.
	assert.Equal(t, qdrant.QuantizationNone, spec.Quantization)
	assert.True(t, spec.OnDiskPayload)
	assert.Equal(t, uint64(10000), spec.IndexingThreshold)
}

func TestEnsure_LegalCollectionProfile(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, defaultTestConfig())

	resolved, err := m.Ensure(context.Background(), "legal_analysis")
	require.NoError(t, err)

	assert.Equal(t, "multilingual-e5-large", resolved.Model.ID)

	spec := backend.createdSpecs["legal_analysis"]
	assert.Equal(t, uint64(1024), spec.Size)
	// "legal" collections get the dense recall-oriented profile.
	assert.Equal(t, uint64(200), spec.HNSW.EfConstruct)
	assert.Equal(t, uint64(16), spec.HNSW.M)
	// 1024 dims selects binary quantization.
	assert.Equal(t, qdrant.QuantizationBinary, spec.Quantization)
}

func TestEnsure_ScalarQuantizationTier(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, defaultTestConfig())

	// Route a name to the 512-dim Chinese model via custom rules.
	reg, err := registry.New()
	require.NoError(t, err)
	rules := registry.DefaultRules()
	rules.Collections["zh_notes"] = "bge-small-zh-v1.5"
	resolver, err := registry.NewResolver(reg, rules)
	require.NoError(t, err)
	m, err = NewManager(backend, resolver, defaultTestConfig(), logging.NewTestLogger().Logger)
	require.NoError(t, err)

	_, err = m.Ensure(context.Background(), "zh_notes")
	require.NoError(t, err)

	spec := backend.createdSpecs["zh_notes"]
	assert.Equal(t, uint64(512), spec.Size)
	assert.Equal(t, qdrant.QuantizationScalar, spec.Quantization)
}

func TestEnsure_QuantizationDisabled(t *testing.T) {
	backend := newFakeBackend()
	cfg := defaultTestConfig()
	cfg.EnableQuantization = false
	m := newTestManager(t, backend, cfg)

	_, err := m.Ensure(context.Background(), "legal_analysis")
	require.NoError(t, err)

	assert.Equal(t, qdrant.QuantizationNone, backend.createdSpecs["legal_analysis"].Quantization)
}

func TestEnsure_MemoizesReady(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, defaultTestConfig())

	ctx := context.Background()
	first, err := m.Ensure(ctx, "working_solutions")
	require.NoError(t, err)
	assert.True(t, first.Created)

	existsBefore, getBefore, createBefore := backend.calls()

	second, err := m.Ensure(ctx, "working_solutions")
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)

	existsAfter, getAfter, createAfter := backend.calls()
	assert.Equal(t, existsBefore, existsAfter, "memoized Ensure must not hit the backend")
	assert.Equal(t, getBefore, getAfter)
	assert.Equal(t, createBefore, createAfter)

	assert.Equal(t, StateReady, m.State("working_solutions"))
}

func TestEnsure_ConcurrentCallsCreateOnce(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, defaultTestConfig())

	const workers = 12
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := m.Ensure(context.Background(), "debugging_patterns"); err != nil {
				t.Errorf("Ensure() error: %v", err)
			}
		}()
	}
	wg.Wait()

	_, _, creates := backend.calls()
	assert.Equal(t, 1, creates, "concurrent Ensure must create exactly once")
}

func TestEnsure_ExistingMatchingGeometry(t *testing.T) {
	backend := newFakeBackend()
	backend.addCollection("working_solutions", "sentence-transformers-all-minilm-l6-v2", 384, "cosine")
	m := newTestManager(t, backend, defaultTestConfig())

	resolved, err := m.Ensure(context.Background(), "working_solutions")
	require.NoError(t, err)

	assert.False(t, resolved.Created)
	_, _, creates := backend.calls()
	assert.Zero(t, creates)
}

func TestEnsure_SizeMismatchIsTerminal(t *testing.T) {
	backend := newFakeBackend()
	// Collection exists with the right slot name but wrong dimensionality.
	backend.addCollection("working_solutions", "sentence-transformers-all-minilm-l6-v2", 768, "cosine")
	m := newTestManager(t, backend, defaultTestConfig())

	ctx := context.Background()
	_, err := m.Ensure(ctx, "working_solutions")
	require.ErrorIs(t, err, ErrModelMismatch)
	assert.Equal(t, StateMismatched, m.State("working_solutions"))

	existsBefore, getBefore, _ := backend.calls()

	// Mismatch is memoized: the second call fails fast without backend I/O.
	_, err = m.Ensure(ctx, "working_solutions")
	require.ErrorIs(t, err, ErrModelMismatch)

	existsAfter, getAfter, _ := backend.calls()
	assert.Equal(t, existsBefore, existsAfter)
	assert.Equal(t, getBefore, getAfter)
}

func TestEnsure_LegacyUnnamedVectorIsMismatch(t *testing.T) {
	backend := newFakeBackend()
	backend.addCollection("working_solutions", "", 384, "cosine")
	m := newTestManager(t, backend, defaultTestConfig())

	_, err := m.Ensure(context.Background(), "working_solutions")
	require.ErrorIs(t, err, ErrModelMismatch)
	assert.Contains(t, err.Error(), "legacy unnamed vector")
}

func TestEnsure_DistanceMismatch(t *testing.T) {
	backend := newFakeBackend()
	backend.addCollection("working_solutions", "sentence-transformers-all-minilm-l6-v2", 384, "euclidean")
	m := newTestManager(t, backend, defaultTestConfig())

	_, err := m.Ensure(context.Background(), "working_solutions")
	require.ErrorIs(t, err, ErrModelMismatch)
}

func TestEnsure_EuclideanModelMatchesExisting(t *testing.T) {
	backend := newFakeBackend()
	backend.addCollection("geo_points", "custom-geo", 128, "euclidean")

	reg, err := registry.New(registry.ModelDescriptor{
		ID:          "geo-model",
		DisplayName: "custom/geo",
		Dimensions:  128,
		Distance:    registry.DistanceEuclidean,
	})
	require.NoError(t, err)
	rules := registry.DefaultRules()
	rules.Collections = map[string]string{"geo_points": "geo-model"}
	resolver, err := registry.NewResolver(reg, rules)
	require.NoError(t, err)

	m, err := NewManager(backend, resolver, defaultTestConfig(), logging.NewTestLogger().Logger)
	require.NoError(t, err)

	resolved, err := m.Ensure(context.Background(), "geo_points")
	require.NoError(t, err)
	assert.Equal(t, "geo-model", resolved.Model.ID)
	assert.False(t, resolved.Created)
}

func TestEnsure_AutoCreateDisabled(t *testing.T) {
	backend := newFakeBackend()
	cfg := defaultTestConfig()
	cfg.AutoCreate = false
	m := newTestManager(t, backend, cfg)

	ctx := context.Background()
	_, err := m.Ensure(ctx, "working_solutions")
	require.ErrorIs(t, err, ErrNoSuchCollection)

	// Not memoized: the collection may be created externally.
	existsBefore, _, _ := backend.calls()
	_, err = m.Ensure(ctx, "working_solutions")
	require.ErrorIs(t, err, ErrNoSuchCollection)
	existsAfter, _, _ := backend.calls()
	assert.Greater(t, existsAfter, existsBefore, "missing collection must be re-checked")

	// Once it exists, Ensure succeeds.
	backend.addCollection("working_solutions", "sentence-transformers-all-minilm-l6-v2", 384, "cosine")
	resolved, err := m.Ensure(ctx, "working_solutions")
	require.NoError(t, err)
	assert.False(t, resolved.Created)
}

func TestEnsure_TransientFailureNotMemoized(t *testing.T) {
	backend := newFakeBackend()
	backend.existsErr = qdrant.ErrUnavailable
	m := newTestManager(t, backend, defaultTestConfig())

	ctx := context.Background()
	_, err := m.Ensure(ctx, "working_solutions")
	require.ErrorIs(t, err, qdrant.ErrUnavailable)
	assert.Equal(t, StateUnknown, m.State("working_solutions"))

	// Backend recovers; Ensure succeeds on retry.
	backend.mu.Lock()
	backend.existsErr = nil
	backend.mu.Unlock()

	resolved, err := m.Ensure(ctx, "working_solutions")
	require.NoError(t, err)
	assert.True(t, resolved.Created)
}

func TestEnsure_AliasCanonicalization(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, defaultTestConfig())

	resolved, err := m.Ensure(context.Background(), "working-solutions")
	require.NoError(t, err)
	assert.Equal(t, "working_solutions", resolved.Name)

	// The alias and canonical name share one entry.
	_, _, creates := backend.calls()
	assert.Equal(t, 1, creates)
	_, err = m.Ensure(context.Background(), "working_solutions")
	require.NoError(t, err)
	_, _, creates = backend.calls()
	assert.Equal(t, 1, creates)
}

func TestEnsure_CreationRaceReverifies(t *testing.T) {
	backend := newFakeBackend()
	// Create fails but the collection exists afterwards, as when a
	// concurrent creator won. Ensure re-checks and verifies geometry.
	backend.createErr = errors.New("already exists")
	backend.createRaceVectorName = "sentence-transformers-all-minilm-l6-v2"
	backend.createRaceSize = 384
	m := newTestManager(t, backend, defaultTestConfig())

	resolved, err := m.Ensure(context.Background(), "working_solutions")
	require.NoError(t, err)
	assert.False(t, resolved.Created)
}

func TestEnsure_CreationRaceMismatchedWinner(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("already exists")
	backend.createRaceVectorName = "sentence-transformers-all-minilm-l6-v2"
	backend.createRaceSize = 768
	m := newTestManager(t, backend, defaultTestConfig())

	_, err := m.Ensure(context.Background(), "working_solutions")
	require.ErrorIs(t, err, ErrModelMismatch)
}
