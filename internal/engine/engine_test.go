package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/collections"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/qdrant"
	"github.com/fyrsmithlabs/vectord/internal/registry"
)

// memoryBackend is an in-memory Backend with real storage semantics so the
// engine's round-trip and merge behavior can be exercised without a server.
type memoryBackend struct {
	mu          sync.Mutex
	collections map[string]*qdrant.CollectionDetail
	points      map[string]map[string]qdrant.Point
	scores      map[string]float32

	upsertCalls     int
	setPayloadCalls int
	failUpsertOn    int
	upsertErr       error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		collections: make(map[string]*qdrant.CollectionDetail),
		points:      make(map[string]map[string]qdrant.Point),
		scores:      make(map[string]float32),
	}
}

func (b *memoryBackend) addCollection(name, vectorName string, size uint64) {
	b.collections[name] = &qdrant.CollectionDetail{
		Name:    name,
		Vectors: map[string]qdrant.VectorInfo{vectorName: {Size: size, Distance: "cosine"}},
		Status:  "green",
	}
	b.points[name] = make(map[string]qdrant.Point)
}

func (b *memoryBackend) Health(context.Context) error { return nil }

func (b *memoryBackend) CollectionExists(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.collections[name]
	return ok, nil
}

func (b *memoryBackend) CreateCollection(_ context.Context, name string, spec qdrant.CollectionSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[name] = &qdrant.CollectionDetail{
		Name:         name,
		Vectors:      map[string]qdrant.VectorInfo{spec.VectorName: {Size: spec.Size, Distance: spec.Distance}},
		Status:       "green",
		Quantization: spec.Quantization,
		HNSW:         spec.HNSW,
		OptimizerOK:  true,
	}
	b.points[name] = make(map[string]qdrant.Point)
	return nil
}

func (b *memoryBackend) GetCollection(_ context.Context, name string) (*qdrant.CollectionDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	detail, ok := b.collections[name]
	if !ok {
		return nil, qdrant.ErrNotFound
	}
	detail.PointsCount = uint64(len(b.points[name]))
	return detail, nil
}

func (b *memoryBackend) ListCollections(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.collections))
	for n := range b.collections {
		names = append(names, n)
	}
	return names, nil
}

func (b *memoryBackend) Upsert(_ context.Context, collection string, points []qdrant.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsertCalls++
	if b.upsertErr != nil && (b.failUpsertOn == 0 || b.upsertCalls == b.failUpsertOn) {
		return b.upsertErr
	}
	store, ok := b.points[collection]
	if !ok {
		return qdrant.ErrNotFound
	}
	for _, p := range points {
		store[p.ID] = p
	}
	return nil
}

func (b *memoryBackend) Search(_ context.Context, collection string, req qdrant.SearchRequest) ([]qdrant.ScoredPoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	store, ok := b.points[collection]
	if !ok {
		return nil, qdrant.ErrNotFound
	}
	// Deliberately unordered so callers must sort.
	hits := make([]qdrant.ScoredPoint, 0, len(store))
	for id, p := range store {
		score, ok := b.scores[id]
		if !ok {
			score = 0.5
		}
		if score < req.ScoreThreshold {
			continue
		}
		if uint64(len(hits)) >= req.Limit {
			break
		}
		hits = append(hits, qdrant.ScoredPoint{Point: p, Score: score})
	}
	return hits, nil
}

func (b *memoryBackend) Retrieve(_ context.Context, collection string, ids []string, withPayload, withVectors bool) ([]qdrant.Point, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	store, ok := b.points[collection]
	if !ok {
		return nil, qdrant.ErrNotFound
	}
	out := make([]qdrant.Point, 0, len(ids))
	for _, id := range ids {
		p, ok := store[id]
		if !ok {
			continue
		}
		result := qdrant.Point{ID: p.ID}
		if withPayload {
			result.Payload = p.Payload
		}
		if withVectors {
			result.Vector = p.Vector
			result.VectorName = p.VectorName
		}
		out = append(out, result)
	}
	return out, nil
}

func (b *memoryBackend) SetPayload(_ context.Context, collection string, ids []string, payload map[string]any, key *string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setPayloadCalls++
	store, ok := b.points[collection]
	if !ok {
		return qdrant.ErrNotFound
	}
	for _, id := range ids {
		p, ok := store[id]
		if !ok {
			continue
		}
		if key == nil {
			for k, v := range payload {
				p.Payload[k] = v
			}
		} else {
			nested, _ := p.Payload[*key].(map[string]any)
			if nested == nil {
				nested = make(map[string]any)
			}
			for k, v := range payload {
				nested[k] = v
			}
			p.Payload[*key] = nested
		}
		store[id] = p
	}
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, collection string, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	store, ok := b.points[collection]
	if !ok {
		return qdrant.ErrNotFound
	}
	for _, id := range ids {
		delete(store, id)
	}
	return nil
}

func (b *memoryBackend) Close() error { return nil }

// stubEmbedder produces deterministic hash-derived vectors of the model's
// declared dimensionality.
type stubEmbedder struct {
	modelID string
	dims    int

	mu         sync.Mutex
	docCalls   int
	queryCalls int
}

func hashVector(text string, dims int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32((seed+uint32(i))%997) / 997
	}
	return v
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.docCalls++
	s.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, s.dims)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.queryCalls++
	s.mu.Unlock()
	return hashVector(text, s.dims), nil
}

func (s *stubEmbedder) ModelID() string           { return s.modelID }
func (s *stubEmbedder) Dimensions() int           { return s.dims }
func (s *stubEmbedder) ActiveProviders() []string { return []string{"cpu"} }
func (s *stubEmbedder) Close() error              { return nil }

func (s *stubEmbedder) documentCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docCalls
}

// stubSource hands out one stubEmbedder per model id.
type stubSource struct {
	mu        sync.Mutex
	registry  *registry.Registry
	embedders map[string]*stubEmbedder
	err       error
}

func newStubSource(reg *registry.Registry) *stubSource {
	return &stubSource{registry: reg, embedders: make(map[string]*stubEmbedder)}
}

func (s *stubSource) Get(_ context.Context, modelID string) (embeddings.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if e, ok := s.embedders[modelID]; ok {
		return e, nil
	}
	desc, ok := s.registry.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", embeddings.ErrInvalidConfig, modelID)
	}
	e := &stubEmbedder{modelID: modelID, dims: desc.Dimensions}
	s.embedders[modelID] = e
	return e, nil
}

type testEngine struct {
	*Engine
	backend *memoryBackend
	source  *stubSource
}

func newTestEngine(t *testing.T, cfg Config) *testEngine {
	t.Helper()

	reg, err := registry.New()
	require.NoError(t, err)
	resolver, err := registry.NewResolver(reg, registry.DefaultRules())
	require.NoError(t, err)

	backend := newMemoryBackend()
	logger := logging.NewTestLogger().Logger
	manager, err := collections.NewManager(backend, resolver, collections.Config{
		AutoCreate:         true,
		EnableQuantization: true,
		HNSWEfConstruct:    128,
		HNSWM:              16,
	}, logger)
	require.NoError(t, err)

	source := newStubSource(reg)
	eng, err := New(backend, source, manager, resolver, cfg, logger)
	require.NoError(t, err)

	return &testEngine{Engine: eng, backend: backend, source: source}
}

func TestStore_RoundTrip(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	result, err := te.Store(ctx, "working_solutions", "Use a worker pool for fan-out.", map[string]any{"topic": "concurrency"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.PointID)
	assert.Equal(t, "working_solutions", result.Collection)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", result.Model)
	assert.Equal(t, 384, result.Dimensions)

	point, err := te.GetPoint(ctx, "working_solutions", result.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, "Use a worker pool for fan-out.", point.Document)
	assert.Equal(t, map[string]any{"topic": "concurrency"}, point.Metadata)
}

func TestStore_OmittedMetadataDecodesEmpty(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	result, err := te.Store(ctx, "working_solutions", "no metadata here", nil)
	require.NoError(t, err)

	point, err := te.GetPoint(ctx, "working_solutions", result.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, point.Metadata)
}

func TestStore_RoutesByCollectionName(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	legal, err := te.Store(ctx, "legal_analysis", "Party A owes Party B $100.", nil)
	require.NoError(t, err)
	assert.Equal(t, "intfloat/multilingual-e5-large", legal.Model)
	assert.Equal(t, 1024, legal.Dimensions)

	lessons, err := te.Store(ctx, "lessons_learned", "Always close file handles.", nil)
	require.NoError(t, err)
	assert.Equal(t, "BAAI/bge-base-en", lessons.Model)
	assert.Equal(t, 768, lessons.Dimensions)

	detail := te.backend.collections["legal_analysis"]
	info, ok := detail.Vectors["intfloat-multilingual-e5-large"]
	require.True(t, ok)
	assert.Equal(t, uint64(1024), info.Size)
}

func TestStore_InvalidInput(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.Store(ctx, "working_solutions", "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.Store(ctx, "bad name!", "text", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	big := map[string]any{"blob": strings.Repeat("x", MaxMetadataBytes+1)}
	_, err = te.Store(ctx, "working_solutions", "text", big)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_RejectsInvalidUTF8(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.Store(ctx, "working_solutions", "caf\xff\xfe", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.BulkStore(ctx, "working_solutions", []string{"fine", "bro\xc3\x28ken"}, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.Find(ctx, "working_solutions", "qu\xffery", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_ControlCharactersStripped(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	result, err := te.Store(ctx, "working_solutions", "line one\nline\ttwo\x00\x1b[31m", nil)
	require.NoError(t, err)

	point, err := te.GetPoint(ctx, "working_solutions", result.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline\ttwo[31m", point.Document)
}

func TestStore_ReadOnly(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10, ReadOnly: true})
	ctx := context.Background()

	_, err := te.Store(ctx, "working_solutions", "text", nil)
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = te.BulkStore(ctx, "working_solutions", []string{"a"}, nil, 0)
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = te.DeletePoints(ctx, "working_solutions", []string{"0b54d2d8-0c5a-4a6d-9f36-6d7a2fc2f000"})
	assert.ErrorIs(t, err, ErrReadOnly)

	// Reads proceed.
	result, err := te.Find(ctx, "working_solutions", "anything", 0, 0)
	require.NoError(t, err)
	assert.True(t, result.NoSuchCollection)
}

func TestStore_ModelMismatchBeforeEmbedding(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	// Pre-create with the wrong geometry.
	te.backend.addCollection("legal_analysis", "intfloat-multilingual-e5-large", 384)

	_, err := te.Store(ctx, "legal_analysis", "text", nil)
	require.ErrorIs(t, err, ErrModelMismatch)

	// The guard fires before any embedding is computed.
	te.source.mu.Lock()
	embedder := te.source.embedders["multilingual-e5-large"]
	te.source.mu.Unlock()
	if embedder != nil {
		assert.Zero(t, embedder.documentCalls())
	}
}

func TestStore_EmbedderUnavailable(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	te.source.err = errors.New("onnx runtime load failed")

	_, err := te.Store(context.Background(), "working_solutions", "text", nil)
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)
}

func TestBulkStore_PositionalIDs(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	docs := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	metas := []map[string]any{{"i": 1}, {"i": 2}, {"i": 3}, {"i": 4}, {"i": 5}}

	result, err := te.BulkStore(ctx, "lessons_learned", docs, metas, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, result.StoredCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 3, result.BatchCount)
	require.Len(t, result.PointIDs, 5)

	for i, id := range result.PointIDs {
		point, err := te.GetPoint(ctx, "lessons_learned", id, false)
		require.NoError(t, err)
		assert.Equal(t, docs[i], point.Document)
		assert.Equal(t, metas[i], point.Metadata)
	}
}

func TestBulkStore_PartialFailure(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	// Second upsert call fails; first and third chunks land.
	te.backend.upsertErr = qdrant.ErrUnavailable
	te.backend.failUpsertOn = 2

	docs := []string{"a", "b", "c", "d", "e", "f"}
	result, err := te.BulkStore(ctx, "working_solutions", docs, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, 4, result.StoredCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Equal(t, 3, result.BatchCount)
	require.Len(t, result.PointIDs, 6)
	assert.NotEmpty(t, result.PointIDs[0])
	assert.NotEmpty(t, result.PointIDs[1])
	assert.Empty(t, result.PointIDs[2])
	assert.Empty(t, result.PointIDs[3])
	assert.NotEmpty(t, result.PointIDs[4])
	assert.NotEmpty(t, result.PointIDs[5])
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "chunk 1")
}

func TestBulkStore_Validation(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.BulkStore(ctx, "working_solutions", nil, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.BulkStore(ctx, "working_solutions", []string{"a", "b"}, []map[string]any{{"i": 1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.BulkStore(ctx, "working_solutions", []string{"a"}, nil, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBulkStore_BatchSizeCapped(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})

	docs := make([]string, 3)
	for i := range docs {
		docs[i] = fmt.Sprintf("doc %d", i)
	}
	result, err := te.BulkStore(context.Background(), "working_solutions", docs, nil, 5000)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BatchCount)
	assert.Equal(t, 3, result.StoredCount)
}

func TestFind_MissingCollection(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})

	result, err := te.Find(context.Background(), "never_created", "query", 0, 0)
	require.NoError(t, err)
	assert.True(t, result.NoSuchCollection)
	assert.Empty(t, result.Results)
	assert.Zero(t, result.TotalFound)
	assert.NotEmpty(t, result.Timestamp)
}

func TestFind_OrderingAndRounding(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	ids := make([]string, 4)
	for i := range ids {
		r, err := te.Store(ctx, "working_solutions", fmt.Sprintf("doc %d", i), nil)
		require.NoError(t, err)
		ids[i] = r.PointID
	}

	// Two scores collapse to the same value after rounding; point id
	// ascending breaks the tie.
	te.backend.scores[ids[0]] = 0.91
	te.backend.scores[ids[1]] = 0.800004
	te.backend.scores[ids[2]] = 0.800001
	te.backend.scores[ids[3]] = 0.123456

	result, err := te.Find(ctx, "working_solutions", "anything", 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Results, 4)

	assert.Equal(t, 0.91, result.Results[0].Score)
	assert.Equal(t, 0.8, result.Results[1].Score)
	assert.Equal(t, 0.8, result.Results[2].Score)
	assert.InDelta(t, 0.1235, result.Results[3].Score, 0.00001)
	assert.Less(t, result.Results[1].PointID, result.Results[2].PointID)
	assert.Equal(t, 4, result.TotalFound)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", result.VectorModel)
}

func TestFind_DefaultsAndSanitization(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 7, DefaultThreshold: 0.25})
	ctx := context.Background()

	_, err := te.Store(ctx, "working_solutions", "seed", nil)
	require.NoError(t, err)

	result, err := te.Find(ctx, "working_solutions", "  spaced \t  query\x00 ", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "spaced query", result.Query)
	assert.Equal(t, 7, result.SearchParams.Limit)
	assert.Equal(t, 0.25, result.SearchParams.ScoreThreshold)
}

func TestFind_InvalidInput(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.Find(ctx, "working_solutions", "   ", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.Find(ctx, "working_solutions", "query", -1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.Find(ctx, "working_solutions", "query", 0, -0.5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPoint_NotFound(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.Store(ctx, "working_solutions", "seed", nil)
	require.NoError(t, err)

	_, err = te.GetPoint(ctx, "working_solutions", "0b54d2d8-0c5a-4a6d-9f36-6d7a2fc2f000", false)
	assert.ErrorIs(t, err, ErrPointNotFound)

	_, err = te.GetPoint(ctx, "working_solutions", "not-a-uuid", false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPoint_WithVector(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	r, err := te.Store(ctx, "working_solutions", "seed", nil)
	require.NoError(t, err)

	point, err := te.GetPoint(ctx, "working_solutions", r.PointID, true)
	require.NoError(t, err)
	assert.Len(t, point.Vector, 384)

	point, err = te.GetPoint(ctx, "working_solutions", r.PointID, false)
	require.NoError(t, err)
	assert.Empty(t, point.Vector)
}

func TestUpdatePayload_NestedMergePreservesSiblings(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	r, err := te.Store(ctx, "working_solutions", "d", map[string]any{
		"sync_status": "pending",
		"other":       "keep",
	})
	require.NoError(t, err)

	update, err := te.UpdatePayload(ctx, "working_solutions", []string{r.PointID},
		map[string]any{"sync_status": "synced"}, "metadata")
	require.NoError(t, err)
	assert.Equal(t, 1, update.UpdatedCount)

	point, err := te.GetPoint(ctx, "working_solutions", r.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, "d", point.Document)
	assert.Equal(t, map[string]any{"sync_status": "synced", "other": "keep"}, point.Metadata)

	// Idempotent: re-applying changes nothing.
	_, err = te.UpdatePayload(ctx, "working_solutions", []string{r.PointID},
		map[string]any{"sync_status": "synced"}, "metadata")
	require.NoError(t, err)

	again, err := te.GetPoint(ctx, "working_solutions", r.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, point.Metadata, again.Metadata)
}

func TestUpdatePayload_RootMergePreservesUnknownKeys(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	r, err := te.Store(ctx, "working_solutions", "d", nil)
	require.NoError(t, err)

	// An external writer added a top-level key the engine doesn't know.
	te.backend.mu.Lock()
	p := te.backend.points["working_solutions"][r.PointID]
	p.Payload["external"] = "kept"
	te.backend.points["working_solutions"][r.PointID] = p
	te.backend.mu.Unlock()

	_, err = te.UpdatePayload(ctx, "working_solutions", []string{r.PointID},
		map[string]any{"flag": true}, "")
	require.NoError(t, err)

	point, err := te.GetPoint(ctx, "working_solutions", r.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, "kept", point.Payload["external"])
	assert.Equal(t, true, point.Payload["flag"])
	assert.Equal(t, "d", point.Document)
}

func TestUpdatePayload_MissingPointFailsAtomically(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	r, err := te.Store(ctx, "working_solutions", "d", nil)
	require.NoError(t, err)

	before := te.backend.setPayloadCalls
	_, err = te.UpdatePayload(ctx, "working_solutions",
		[]string{r.PointID, "0b54d2d8-0c5a-4a6d-9f36-6d7a2fc2f000"},
		map[string]any{"x": 1}, "")
	require.ErrorIs(t, err, ErrPointNotFound)
	assert.Equal(t, before, te.backend.setPayloadCalls, "no partial update on missing id")
}

func TestDeletePoints_Idempotent(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	r, err := te.Store(ctx, "working_solutions", "d", nil)
	require.NoError(t, err)

	del, err := te.DeletePoints(ctx, "working_solutions", []string{r.PointID})
	require.NoError(t, err)
	assert.Equal(t, 1, del.DeletedCount)

	_, err = te.DeletePoints(ctx, "working_solutions", []string{r.PointID})
	require.NoError(t, err)

	_, err = te.GetPoint(ctx, "working_solutions", r.PointID, false)
	assert.ErrorIs(t, err, ErrPointNotFound)
}

func TestAliasCanonicalization(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	r, err := te.Store(ctx, "working-solutions", "aliased", nil)
	require.NoError(t, err)
	assert.Equal(t, "working_solutions", r.Collection)

	point, err := te.GetPoint(ctx, "working-solutions", r.PointID, false)
	require.NoError(t, err)
	assert.Equal(t, "aliased", point.Document)
}

func TestListCollections(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.Store(ctx, "legal_analysis", "a", nil)
	require.NoError(t, err)
	_, err = te.Store(ctx, "working_solutions", "b", nil)
	require.NoError(t, err)

	summaries, err := te.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Sorted by name.
	assert.Equal(t, "legal_analysis", summaries[0].Name)
	assert.Equal(t, uint64(1024), summaries[0].Dimensions)
	assert.Equal(t, "intfloat/multilingual-e5-large", summaries[0].Model)
	assert.Equal(t, "binary", summaries[0].Quantization)
	assert.Equal(t, uint64(1), summaries[0].PointsCount)

	assert.Equal(t, "working_solutions", summaries[1].Name)
	assert.Equal(t, uint64(384), summaries[1].Dimensions)
	assert.Equal(t, "none", summaries[1].Quantization)
}

func TestCollectionInfo(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})
	ctx := context.Background()

	_, err := te.Store(ctx, "legal_analysis", "a", nil)
	require.NoError(t, err)

	detail, err := te.CollectionInfo(ctx, "legal_analysis")
	require.NoError(t, err)
	assert.Equal(t, "legal_analysis", detail.Name)
	assert.Equal(t, uint64(200), detail.HNSWEfConstruct)
	assert.Equal(t, uint64(16), detail.HNSWM)
	assert.True(t, detail.OptimizerOK)

	_, err = te.CollectionInfo(ctx, "never_created")
	assert.ErrorIs(t, err, ErrNoSuchCollection)
}

func TestModelMappings(t *testing.T) {
	te := newTestEngine(t, Config{DefaultLimit: 10})

	report := te.ModelMappings(context.Background())
	assert.Equal(t, "all-minilm-l6-v2", report.DefaultModel)
	assert.NotEmpty(t, report.Models)
	assert.Equal(t, "multilingual-e5-large", report.Collections["legal_analysis"])
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidInput, "invalid_input"},
		{ErrNoSuchCollection, "no_such_collection"},
		{ErrModelMismatch, "model_mismatch"},
		{ErrEmbedderUnavailable, "embedder_unavailable"},
		{ErrBackendUnavailable, "backend_unavailable"},
		{ErrPointNotFound, "point_not_found"},
		{ErrReadOnly, "read_only"},
		{ErrCancelled, "cancelled"},
		{ErrInternal, "internal"},
		{fmt.Errorf("wrapped: %w", ErrReadOnly), "read_only"},
		{errors.New("anything else"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err), tt.err.Error())
	}
}
