package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/engine"
)

// collectionOrDefault falls back to the configured default collection when
// a tool call omits the argument.
func (s *Server) collectionOrDefault(name string) string {
	if name != "" {
		return name
	}
	return s.service.DefaultCollection()
}

// toolError converts an engine error into an IsError tool result carrying
// the stable error code. The protocol-level error stays nil so clients
// receive the structured failure instead of a transport fault.
func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %s", engine.Code(err), err.Error())},
		},
	}
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// registerTools registers the nine qdrant_* tools.
func (s *Server) registerTools() {
	s.registerStoreTools()
	s.registerSearchTools()
	s.registerPointTools()
	s.registerIntrospectionTools()
}

// ===== STORE TOOLS =====

type storeInput struct {
	Information    string         `json:"information" jsonschema:"required,Text to store"`
	CollectionName string         `json:"collection_name,omitempty" jsonschema:"Target collection (default collection when omitted)"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"Optional metadata stored alongside the document"`
}

type bulkStoreInput struct {
	Documents      []string         `json:"documents" jsonschema:"required,Documents to store"`
	CollectionName string           `json:"collection_name,omitempty" jsonschema:"Target collection (default collection when omitted)"`
	MetadataList   []map[string]any `json:"metadata_list,omitempty" jsonschema:"Optional per-document metadata (same length as documents)"`
	BatchSize      int              `json:"batch_size,omitempty" jsonschema:"Documents per embedding batch (default 100, max 1000)"`
}

func (s *Server) registerStoreTools() {
	// qdrant_store
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_store",
		Description: "Store a document with automatic embedding in a Qdrant collection",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args storeInput) (*mcp.CallToolResult, engine.StoreResult, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_store")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_store")
			s.metrics.RecordInvocation(ctx, "qdrant_store", time.Since(start), toolErr)
		}()

		result, err := s.service.Store(ctx, s.collectionOrDefault(args.CollectionName), args.Information, args.Metadata)
		if err != nil {
			toolErr = err
			return toolError(err), engine.StoreResult{}, nil
		}

		return textResult("Stored point %s in %s (%s, %d dims)",
			result.PointID, result.Collection, result.Model, result.Dimensions), *result, nil
	})

	// qdrant_bulk_store
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_bulk_store",
		Description: "Store multiple documents in batches; point ids correspond positionally to the input documents",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args bulkStoreInput) (*mcp.CallToolResult, engine.BulkResult, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_bulk_store")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_bulk_store")
			s.metrics.RecordInvocation(ctx, "qdrant_bulk_store", time.Since(start), toolErr)
		}()

		result, err := s.service.BulkStore(ctx, s.collectionOrDefault(args.CollectionName),
			args.Documents, args.MetadataList, args.BatchSize)
		if err != nil {
			toolErr = err
			return toolError(err), engine.BulkResult{}, nil
		}

		return textResult("Stored %d/%d documents in %s (%d batches, %d failed)",
			result.StoredCount, len(args.Documents), result.Collection,
			result.BatchCount, result.FailedCount), *result, nil
	})
}

// ===== SEARCH TOOLS =====

type findInput struct {
	Query          string  `json:"query" jsonschema:"required,Natural-language search query"`
	CollectionName string  `json:"collection_name,omitempty" jsonschema:"Collection to search (default collection when omitted)"`
	Limit          int     `json:"limit,omitempty" jsonschema:"Maximum results (default from server config)"`
	ScoreThreshold float64 `json:"score_threshold,omitempty" jsonschema:"Minimum similarity score (0 disables)"`
}

func (s *Server) registerSearchTools() {
	// qdrant_find
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_find",
		Description: "Semantic search in a Qdrant collection; results ordered by descending score",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findInput) (*mcp.CallToolResult, engine.FindResult, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_find")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_find")
			s.metrics.RecordInvocation(ctx, "qdrant_find", time.Since(start), toolErr)
		}()

		result, err := s.service.Find(ctx, s.collectionOrDefault(args.CollectionName),
			args.Query, args.Limit, args.ScoreThreshold)
		if err != nil {
			toolErr = err
			return toolError(err), engine.FindResult{}, nil
		}

		if result.NoSuchCollection {
			return textResult("Collection %s does not exist", result.Collection), *result, nil
		}
		return textResult("Found %d results in %s", result.TotalFound, result.Collection), *result, nil
	})
}

// ===== POINT TOOLS =====

type getPointInput struct {
	PointID        string `json:"point_id" jsonschema:"required,Point UUID"`
	CollectionName string `json:"collection_name,omitempty" jsonschema:"Collection holding the point (default collection when omitted)"`
	WithVector     bool   `json:"with_vector,omitempty" jsonschema:"Include the stored embedding vector"`
}

type updatePayloadInput struct {
	PointIDs       []string       `json:"point_ids" jsonschema:"required,Point UUIDs to update"`
	Payload        map[string]any `json:"payload" jsonschema:"required,Fields to merge into the payload"`
	CollectionName string         `json:"collection_name,omitempty" jsonschema:"Collection holding the points (default collection when omitted)"`
	Key            string         `json:"key,omitempty" jsonschema:"Nested payload key to merge into (for example metadata); root merge when omitted"`
}

type deletePointsInput struct {
	PointIDs       []string `json:"point_ids" jsonschema:"required,Point UUIDs to delete"`
	CollectionName string   `json:"collection_name,omitempty" jsonschema:"Collection holding the points (default collection when omitted)"`
}

func (s *Server) registerPointTools() {
	// qdrant_get_point
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_get_point",
		Description: "Retrieve a point by id with its full payload",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getPointInput) (*mcp.CallToolResult, engine.PointResult, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_get_point")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_get_point")
			s.metrics.RecordInvocation(ctx, "qdrant_get_point", time.Since(start), toolErr)
		}()

		result, err := s.service.GetPoint(ctx, s.collectionOrDefault(args.CollectionName),
			args.PointID, args.WithVector)
		if err != nil {
			toolErr = err
			return toolError(err), engine.PointResult{}, nil
		}

		return textResult("Point %s retrieved", result.PointID), *result, nil
	})

	// qdrant_update_payload
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_update_payload",
		Description: "Merge fields into point payloads without re-embedding; a key selects a nested object to merge into",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args updatePayloadInput) (*mcp.CallToolResult, engine.UpdateResult, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_update_payload")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_update_payload")
			s.metrics.RecordInvocation(ctx, "qdrant_update_payload", time.Since(start), toolErr)
		}()

		result, err := s.service.UpdatePayload(ctx, s.collectionOrDefault(args.CollectionName),
			args.PointIDs, args.Payload, args.Key)
		if err != nil {
			toolErr = err
			return toolError(err), engine.UpdateResult{}, nil
		}

		return textResult("Updated %d points", result.UpdatedCount), *result, nil
	})

	// qdrant_delete_points
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_delete_points",
		Description: "Delete points by id (idempotent)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args deletePointsInput) (*mcp.CallToolResult, engine.DeleteResult, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_delete_points")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_delete_points")
			s.metrics.RecordInvocation(ctx, "qdrant_delete_points", time.Since(start), toolErr)
		}()

		result, err := s.service.DeletePoints(ctx, s.collectionOrDefault(args.CollectionName), args.PointIDs)
		if err != nil {
			toolErr = err
			return toolError(err), engine.DeleteResult{}, nil
		}

		return textResult("Deleted %d points", result.DeletedCount), *result, nil
	})
}

// ===== INTROSPECTION TOOLS =====

type listCollectionsInput struct{}

type listCollectionsOutput struct {
	Collections []engine.CollectionSummary `json:"collections" jsonschema:"Collections in the backend"`
	Count       int                        `json:"count" jsonschema:"Number of collections"`
}

type collectionInfoInput struct {
	CollectionName string `json:"collection_name" jsonschema:"required,Collection to inspect"`
}

type modelMappingsInput struct{}

func (s *Server) registerIntrospectionTools() {
	// qdrant_list_collections
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_list_collections",
		Description: "List all collections with point counts, geometry, and routed models",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listCollectionsInput) (*mcp.CallToolResult, listCollectionsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_list_collections")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_list_collections")
			s.metrics.RecordInvocation(ctx, "qdrant_list_collections", time.Since(start), toolErr)
		}()

		summaries, err := s.service.ListCollections(ctx)
		if err != nil {
			toolErr = err
			return toolError(err), listCollectionsOutput{}, nil
		}

		out := listCollectionsOutput{Collections: summaries, Count: len(summaries)}
		return textResult("%d collections", out.Count), out, nil
	})

	// qdrant_collection_info
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_collection_info",
		Description: "Detailed view of one collection: geometry, index parameters, optimizer status",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args collectionInfoInput) (*mcp.CallToolResult, engine.CollectionDetail, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_collection_info")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_collection_info")
			s.metrics.RecordInvocation(ctx, "qdrant_collection_info", time.Since(start), toolErr)
		}()

		detail, err := s.service.CollectionInfo(ctx, args.CollectionName)
		if err != nil {
			toolErr = err
			return toolError(err), engine.CollectionDetail{}, nil
		}

		return textResult("Collection %s: %d points, %d dims, %s",
			detail.Name, detail.PointsCount, detail.Dimensions, detail.Status), *detail, nil
	})

	// qdrant_model_mappings
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "qdrant_model_mappings",
		Description: "Show the collection-to-model routing rules and the model catalogue",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args modelMappingsInput) (*mcp.CallToolResult, engine.MappingsReport, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "qdrant_model_mappings")
		defer func() {
			s.metrics.DecrementActive(ctx, "qdrant_model_mappings")
			s.metrics.RecordInvocation(ctx, "qdrant_model_mappings", time.Since(start), nil)
		}()

		report := s.service.ModelMappings(ctx)
		s.logger.Debug("model mappings requested", zap.Int("models", len(report.Models)))
		return textResult("%d models, default %s", len(report.Models), report.DefaultModel), report, nil
	})
}
