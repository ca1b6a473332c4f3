package engine

import "github.com/fyrsmithlabs/vectord/internal/registry"

// Conventional payload schema. Writers produce these keys; readers tolerate
// payloads from older or external writers and preserve unknown keys.
const (
	payloadKeyDocument = "document"
	payloadKeyMetadata = "metadata"
)

// StoreResult reports a single stored document.
type StoreResult struct {
	PointID    string `json:"point_id"`
	Collection string `json:"collection"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// BulkResult reports a bulk store. PointIDs correspond positionally to the
// input documents; positions inside failed chunks carry an empty string.
type BulkResult struct {
	Collection  string   `json:"collection"`
	StoredCount int      `json:"stored_count"`
	FailedCount int      `json:"failed_count"`
	BatchCount  int      `json:"batch_count"`
	PointIDs    []string `json:"point_ids"`
	Model       string   `json:"model"`
	Errors      []string `json:"errors,omitempty"`
}

// SearchHit is one find result.
type SearchHit struct {
	PointID  string         `json:"point_id"`
	Score    float64        `json:"score"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchParams echoes the effective search parameters.
type SearchParams struct {
	Limit          int     `json:"limit"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// FindResult is an ordered result set: descending score, ascending point id
// on ties.
type FindResult struct {
	Query            string       `json:"query"`
	Collection       string       `json:"collection"`
	Results          []SearchHit  `json:"results"`
	TotalFound       int          `json:"total_found"`
	NoSuchCollection bool         `json:"no_such_collection,omitempty"`
	SearchParams     SearchParams `json:"search_params"`
	VectorModel      string       `json:"vector_model,omitempty"`
	Timestamp        string       `json:"timestamp"`
}

// PointResult is a retrieved point with its full payload. Document and
// Metadata are conveniences extracted from the conventional schema; Payload
// carries everything, including keys written by other systems.
type PointResult struct {
	PointID  string         `json:"point_id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Payload  map[string]any `json:"payload"`
	Vector   []float32      `json:"vector,omitempty"`
}

// UpdateResult reports a payload merge.
type UpdateResult struct {
	UpdatedCount int `json:"updated_count"`
}

// DeleteResult reports a point deletion.
type DeleteResult struct {
	DeletedCount int `json:"deleted_count"`
}

// CollectionSummary is the list-collections view of one collection.
type CollectionSummary struct {
	Name         string `json:"name"`
	PointsCount  uint64 `json:"points_count"`
	VectorName   string `json:"vector_name"`
	Dimensions   uint64 `json:"dimensions"`
	Distance     string `json:"distance"`
	Model        string `json:"model"`
	Status       string `json:"status"`
	Quantization string `json:"quantization"`
}

// CollectionDetail is the full introspection view of one collection.
type CollectionDetail struct {
	CollectionSummary
	SegmentsCount   uint64 `json:"segments_count"`
	OptimizerOK     bool   `json:"optimizer_ok"`
	HNSWM           uint64 `json:"hnsw_m"`
	HNSWEfConstruct uint64 `json:"hnsw_ef_construct"`
}

// MappingsReport re-exports the resolver's routing snapshot.
type MappingsReport = registry.MappingsReport
