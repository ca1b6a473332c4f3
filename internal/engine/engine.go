package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/collections"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/qdrant"
	"github.com/fyrsmithlabs/vectord/internal/registry"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer(instrumentationName)

// EmbedderSource hands out shared embedding providers by model id.
// *embeddings.Pool satisfies this.
type EmbedderSource interface {
	Get(ctx context.Context, modelID string) (embeddings.Provider, error)
}

// Config carries operation defaults.
type Config struct {
	// DefaultCollection is used when a transport omits the collection
	// argument. Empty disables the fallback.
	DefaultCollection string

	// DefaultLimit applies when a find caller omits limit.
	DefaultLimit int

	// DefaultThreshold applies when a find caller omits score_threshold.
	DefaultThreshold float64

	// ReadOnly rejects all mutating operations.
	ReadOnly bool
}

// Engine implements the public document operations: store, search,
// retrieval, payload maintenance, and introspection. It owns no state of
// its own beyond configuration; collection lifecycle lives in the manager
// and embedder lifecycle in the pool.
type Engine struct {
	backend   qdrant.Backend
	embedders EmbedderSource
	manager   *collections.Manager
	resolver  *registry.Resolver
	cfg       Config
	logger    *logging.Logger
	metrics   *Metrics
}

// New creates an engine. All dependencies are required.
func New(backend qdrant.Backend, embedders EmbedderSource, manager *collections.Manager, resolver *registry.Resolver, cfg Config, logger *logging.Logger) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if embedders == nil {
		return nil, fmt.Errorf("embedder source is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("collection manager is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating engine metrics: %w", err)
	}

	return &Engine{
		backend:   backend,
		embedders: embedders,
		manager:   manager,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// DefaultCollection is the configured fallback collection name, or empty.
func (e *Engine) DefaultCollection() string {
	return e.cfg.DefaultCollection
}

// Store embeds one document and upserts it under a fresh UUID.
func (e *Engine) Store(ctx context.Context, collection, information string, metadata map[string]any) (result *StoreResult, err error) {
	ctx, span, start := e.startOp(ctx, "Store", attribute.String("collection", collection))
	defer func() { e.finishOp(ctx, span, "store", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err = validateUTF8("information", information); err != nil {
		return nil, err
	}
	information = sanitizeDocument(information)
	if strings.TrimSpace(information) == "" {
		return nil, fmt.Errorf("%w: information cannot be empty", ErrInvalidInput)
	}
	if err = validateMetadata(metadata); err != nil {
		return nil, err
	}
	if e.cfg.ReadOnly {
		return nil, fmt.Errorf("%w: store rejected", ErrReadOnly)
	}

	resolved, err := e.manager.Ensure(ctx, collection)
	if err != nil {
		return nil, ensureError(err)
	}

	vector, err := e.embedDocuments(ctx, resolved, []string{information})
	if err != nil {
		return nil, err
	}

	pointID := uuid.NewString()
	point := qdrant.Point{
		ID:         pointID,
		VectorName: resolved.VectorName,
		Vector:     vector[0],
		Payload:    buildPayload(information, metadata),
	}
	if err = e.backend.Upsert(ctx, resolved.Name, []qdrant.Point{point}); err != nil {
		return nil, backendError(err)
	}

	e.logger.Debug(ctx, "document stored",
		zap.String("collection", resolved.Name),
		zap.String("point_id", pointID),
		zap.String("model", resolved.Model.ID))

	return &StoreResult{
		PointID:    pointID,
		Collection: resolved.Name,
		Model:      resolved.Model.DisplayName,
		Dimensions: resolved.Model.Dimensions,
	}, nil
}

// BulkStore embeds and upserts documents in chunks. A failed chunk does not
// roll back prior chunks; its positions report empty point ids and the
// result carries the chunk's first error.
func (e *Engine) BulkStore(ctx context.Context, collection string, documents []string, metadataList []map[string]any, batchSize int) (result *BulkResult, err error) {
	ctx, span, start := e.startOp(ctx, "BulkStore",
		attribute.String("collection", collection),
		attribute.Int("documents", len(documents)))
	defer func() { e.finishOp(ctx, span, "bulk_store", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: documents cannot be empty", ErrInvalidInput)
	}
	if metadataList != nil && len(metadataList) != len(documents) {
		return nil, fmt.Errorf("%w: metadata_list length %d does not match documents length %d",
			ErrInvalidInput, len(metadataList), len(documents))
	}
	sanitized := make([]string, len(documents))
	for i, doc := range documents {
		if err = validateUTF8(fmt.Sprintf("documents[%d]", i), doc); err != nil {
			return nil, err
		}
		sanitized[i] = sanitizeDocument(doc)
		if strings.TrimSpace(sanitized[i]) == "" {
			return nil, fmt.Errorf("%w: documents[%d] cannot be empty", ErrInvalidInput, i)
		}
	}
	for i, meta := range metadataList {
		if err = validateMetadata(meta); err != nil {
			return nil, fmt.Errorf("metadata_list[%d]: %w", i, err)
		}
	}
	batchSize, err = normalizeBatchSize(batchSize)
	if err != nil {
		return nil, err
	}
	if e.cfg.ReadOnly {
		return nil, fmt.Errorf("%w: bulk_store rejected", ErrReadOnly)
	}

	resolved, err := e.manager.Ensure(ctx, collection)
	if err != nil {
		return nil, ensureError(err)
	}

	result = &BulkResult{
		Collection: resolved.Name,
		Model:      resolved.Model.DisplayName,
		PointIDs:   make([]string, 0, len(documents)),
	}

	for chunkStart := 0; chunkStart < len(sanitized); chunkStart += batchSize {
		end := chunkStart + batchSize
		if end > len(sanitized) {
			end = len(sanitized)
		}
		chunk := sanitized[chunkStart:end]
		chunkIndex := result.BatchCount
		result.BatchCount++

		// Cancellation is honored at chunk boundaries only.
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.failChunks(result, len(sanitized)-chunkStart, chunkIndex, ctxErr)
			break
		}

		ids, chunkErr := e.storeChunk(ctx, resolved, chunk, metadataList, chunkStart)
		if chunkErr != nil {
			e.failChunks(result, len(chunk), chunkIndex, chunkErr)
			continue
		}
		result.PointIDs = append(result.PointIDs, ids...)
		result.StoredCount += len(chunk)
	}

	e.logger.Info(ctx, "bulk store completed",
		zap.String("collection", resolved.Name),
		zap.Int("requested", len(documents)),
		zap.Int("stored", result.StoredCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("batches", result.BatchCount))

	return result, nil
}

// storeChunk embeds one chunk and upserts it. IDs are returned in chunk
// order.
func (e *Engine) storeChunk(ctx context.Context, resolved *collections.ResolvedCollection, chunk []string, metadataList []map[string]any, offset int) ([]string, error) {
	vectors, err := e.embedDocuments(ctx, resolved, chunk)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunk))
	points := make([]qdrant.Point, len(chunk))
	for i, doc := range chunk {
		var meta map[string]any
		if metadataList != nil {
			meta = metadataList[offset+i]
		}
		ids[i] = uuid.NewString()
		points[i] = qdrant.Point{
			ID:         ids[i],
			VectorName: resolved.VectorName,
			Vector:     vectors[i],
			Payload:    buildPayload(doc, meta),
		}
	}
	if err := e.backend.Upsert(ctx, resolved.Name, points); err != nil {
		return nil, backendError(err)
	}
	return ids, nil
}

// failChunks records a chunk failure: empty ids at the failed positions and
// the chunk's first error in the report.
func (e *Engine) failChunks(result *BulkResult, positions, chunkIndex int, err error) {
	result.FailedCount += positions
	for i := 0; i < positions; i++ {
		result.PointIDs = append(result.PointIDs, "")
	}
	result.Errors = append(result.Errors, fmt.Sprintf("chunk %d: %v", chunkIndex, err))
}

// Find runs a semantic search. A missing collection yields an empty result
// set with the NoSuchCollection flag rather than creating the collection.
func (e *Engine) Find(ctx context.Context, collection, query string, limit int, scoreThreshold float64) (result *FindResult, err error) {
	ctx, span, start := e.startOp(ctx, "Find", attribute.String("collection", collection))
	defer func() { e.finishOp(ctx, span, "find", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err = validateUTF8("query", query); err != nil {
		return nil, err
	}
	query = sanitizeQuery(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	case limit == 0:
		limit = e.cfg.DefaultLimit
	case limit > 1000:
		limit = 1000
	}
	switch {
	case scoreThreshold < 0:
		return nil, fmt.Errorf("%w: score_threshold cannot be negative", ErrInvalidInput)
	case scoreThreshold == 0:
		scoreThreshold = e.cfg.DefaultThreshold
	}

	canonical := e.resolver.Canonical(collection)
	result = &FindResult{
		Query:        query,
		Collection:   canonical,
		Results:      []SearchHit{},
		SearchParams: SearchParams{Limit: limit, ScoreThreshold: scoreThreshold},
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	exists, err := e.backend.CollectionExists(ctx, canonical)
	if err != nil {
		return nil, backendError(err)
	}
	if !exists {
		result.NoSuchCollection = true
		return result, nil
	}

	resolved, err := e.manager.Ensure(ctx, canonical)
	if err != nil {
		return nil, ensureError(err)
	}
	result.VectorModel = resolved.Model.DisplayName

	provider, err := e.embedders.Get(ctx, resolved.Model.ID)
	if err != nil {
		return nil, embedderError(err)
	}
	vector, err := provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, embedderError(err)
	}

	hits, err := e.backend.Search(ctx, resolved.Name, qdrant.SearchRequest{
		VectorName:     resolved.VectorName,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: float32(scoreThreshold),
	})
	if err != nil {
		return nil, backendError(err)
	}

	for _, hit := range hits {
		doc, meta := decodePayload(hit.Payload)
		result.Results = append(result.Results, SearchHit{
			PointID:  hit.ID,
			Score:    roundScore(hit.Score),
			Document: doc,
			Metadata: meta,
		})
	}
	// Rounding can introduce ties; point id ascending keeps ordering
	// deterministic across retries.
	sort.SliceStable(result.Results, func(i, j int) bool {
		if result.Results[i].Score != result.Results[j].Score {
			return result.Results[i].Score > result.Results[j].Score
		}
		return result.Results[i].PointID < result.Results[j].PointID
	})
	result.TotalFound = len(result.Results)

	return result, nil
}

// GetPoint retrieves one point with its full payload.
func (e *Engine) GetPoint(ctx context.Context, collection, pointID string, withVector bool) (result *PointResult, err error) {
	ctx, span, start := e.startOp(ctx, "GetPoint",
		attribute.String("collection", collection),
		attribute.String("point_id", pointID))
	defer func() { e.finishOp(ctx, span, "get_point", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err = validatePointIDs([]string{pointID}); err != nil {
		return nil, err
	}

	canonical := e.resolver.Canonical(collection)
	points, err := e.backend.Retrieve(ctx, canonical, []string{pointID}, true, withVector)
	if err != nil {
		return nil, backendError(err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s in collection %q", ErrPointNotFound, pointID, canonical)
	}

	doc, meta := decodePayload(points[0].Payload)
	return &PointResult{
		PointID:  points[0].ID,
		Document: doc,
		Metadata: meta,
		Payload:  points[0].Payload,
		Vector:   points[0].Vector,
	}, nil
}

// UpdatePayload merges fields into existing payloads. An empty key merges at
// the payload root; a non-empty key merges inside that nested object,
// preserving siblings. Vectors are never recomputed.
func (e *Engine) UpdatePayload(ctx context.Context, collection string, pointIDs []string, payload map[string]any, key string) (result *UpdateResult, err error) {
	ctx, span, start := e.startOp(ctx, "UpdatePayload",
		attribute.String("collection", collection),
		attribute.Int("points", len(pointIDs)))
	defer func() { e.finishOp(ctx, span, "update_payload", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err = validatePointIDs(pointIDs); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: payload cannot be empty", ErrInvalidInput)
	}
	if err = validateMetadata(payload); err != nil {
		return nil, err
	}
	if e.cfg.ReadOnly {
		return nil, fmt.Errorf("%w: update_payload rejected", ErrReadOnly)
	}

	canonical := e.resolver.Canonical(collection)

	// All ids must exist before any payload is touched.
	existing, err := e.backend.Retrieve(ctx, canonical, pointIDs, false, false)
	if err != nil {
		return nil, backendError(err)
	}
	if len(existing) != len(pointIDs) {
		found := make(map[string]bool, len(existing))
		for _, p := range existing {
			found[p.ID] = true
		}
		for _, id := range pointIDs {
			if !found[id] {
				return nil, fmt.Errorf("%w: %s in collection %q", ErrPointNotFound, id, canonical)
			}
		}
	}

	var keyPtr *string
	if key != "" {
		keyPtr = &key
	}
	if err = e.backend.SetPayload(ctx, canonical, pointIDs, payload, keyPtr); err != nil {
		return nil, backendError(err)
	}

	return &UpdateResult{UpdatedCount: len(pointIDs)}, nil
}

// DeletePoints removes points by id. Deleting an absent id is a no-op
// success.
func (e *Engine) DeletePoints(ctx context.Context, collection string, pointIDs []string) (result *DeleteResult, err error) {
	ctx, span, start := e.startOp(ctx, "DeletePoints",
		attribute.String("collection", collection),
		attribute.Int("points", len(pointIDs)))
	defer func() { e.finishOp(ctx, span, "delete_points", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err = validatePointIDs(pointIDs); err != nil {
		return nil, err
	}
	if e.cfg.ReadOnly {
		return nil, fmt.Errorf("%w: delete_points rejected", ErrReadOnly)
	}

	canonical := e.resolver.Canonical(collection)
	if err = e.backend.Delete(ctx, canonical, pointIDs); err != nil {
		return nil, backendError(err)
	}

	e.logger.Info(ctx, "points deleted",
		zap.String("collection", canonical),
		zap.Int("count", len(pointIDs)))

	return &DeleteResult{DeletedCount: len(pointIDs)}, nil
}

// ListCollections summarizes every collection in the backend.
func (e *Engine) ListCollections(ctx context.Context) (summaries []CollectionSummary, err error) {
	ctx, span, start := e.startOp(ctx, "ListCollections")
	defer func() { e.finishOp(ctx, span, "list_collections", start, err) }()

	names, err := e.backend.ListCollections(ctx)
	if err != nil {
		return nil, backendError(err)
	}
	sort.Strings(names)

	summaries = make([]CollectionSummary, 0, len(names))
	for _, name := range names {
		detail, detailErr := e.backend.GetCollection(ctx, name)
		if detailErr != nil {
			e.logger.Warn(ctx, "skipping unreadable collection",
				zap.String("collection", name),
				zap.Error(detailErr))
			continue
		}
		summaries = append(summaries, e.summarize(name, detail))
	}
	return summaries, nil
}

// CollectionInfo returns the detailed view of one collection.
func (e *Engine) CollectionInfo(ctx context.Context, collection string) (result *CollectionDetail, err error) {
	ctx, span, start := e.startOp(ctx, "CollectionInfo", attribute.String("collection", collection))
	defer func() { e.finishOp(ctx, span, "collection_info", start, err) }()

	if err = validateCollectionName(collection); err != nil {
		return nil, err
	}

	canonical := e.resolver.Canonical(collection)
	detail, err := e.backend.GetCollection(ctx, canonical)
	if err != nil {
		return nil, backendError(err)
	}

	return &CollectionDetail{
		CollectionSummary: e.summarize(canonical, detail),
		SegmentsCount:     detail.SegmentsCount,
		OptimizerOK:       detail.OptimizerOK,
		HNSWM:             detail.HNSW.M,
		HNSWEfConstruct:   detail.HNSW.EfConstruct,
	}, nil
}

// ModelMappings snapshots the routing configuration and the model catalogue.
func (e *Engine) ModelMappings(ctx context.Context) MappingsReport {
	_, span := tracer.Start(ctx, "Engine.ModelMappings")
	defer span.End()
	return e.resolver.Report()
}

// summarize builds the introspection view of one collection. The vector
// slot the router would use wins; collections written by other systems fall
// back to whichever slot they carry.
func (e *Engine) summarize(name string, detail *qdrant.CollectionDetail) CollectionSummary {
	summary := CollectionSummary{
		Name:         name,
		PointsCount:  detail.PointsCount,
		Status:       detail.Status,
		Quantization: string(detail.Quantization),
	}

	routed := e.resolver.Resolve(name)
	if info, ok := detail.Vectors[routed.VectorName()]; ok {
		summary.VectorName = routed.VectorName()
		summary.Dimensions = info.Size
		summary.Distance = info.Distance
		summary.Model = routed.DisplayName
		return summary
	}

	slots := make([]string, 0, len(detail.Vectors))
	for slot := range detail.Vectors {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	if len(slots) > 0 {
		slot := slots[0]
		info := detail.Vectors[slot]
		summary.VectorName = slot
		summary.Dimensions = info.Size
		summary.Distance = info.Distance
		summary.Model = e.modelForSlot(slot)
	}
	return summary
}

// modelForSlot reverse-maps a persisted vector slot name to a registered
// model's display name. Unknown slots report empty.
func (e *Engine) modelForSlot(slot string) string {
	for _, m := range e.resolver.Registry().Models() {
		if m.VectorName() == slot {
			return m.DisplayName
		}
	}
	return ""
}

// embedDocuments fetches the provider for the resolved model and embeds a
// batch, guarding every vector against the model's declared dimensions.
func (e *Engine) embedDocuments(ctx context.Context, resolved *collections.ResolvedCollection, texts []string) ([][]float32, error) {
	provider, err := e.embedders.Get(ctx, resolved.Model.ID)
	if err != nil {
		return nil, embedderError(err)
	}
	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, embedderError(err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d documents",
			ErrInternal, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != resolved.Model.Dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, model %s declares %d",
				ErrInternal, i, len(v), resolved.Model.ID, resolved.Model.Dimensions)
		}
	}
	return vectors, nil
}

func buildPayload(document string, metadata map[string]any) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		payloadKeyDocument: document,
		payloadKeyMetadata: metadata,
	}
}

// decodePayload extracts the conventional schema from a payload. Payloads
// written by other systems may deviate; missing keys decode to zero values.
func decodePayload(payload map[string]any) (document string, metadata map[string]any) {
	document, _ = payload[payloadKeyDocument].(string)
	metadata, _ = payload[payloadKeyMetadata].(map[string]any)
	return document, metadata
}

func roundScore(score float32) float64 {
	return math.Round(float64(score)*10000) / 10000
}

func (e *Engine) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := tracer.Start(ctx, "Engine."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (e *Engine) finishOp(ctx context.Context, span trace.Span, label string, start time.Time, err error) {
	e.metrics.RecordOperation(ctx, label, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
