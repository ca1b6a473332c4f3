// internal/qdrant/grpc.go
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fyrsmithlabs/vectord/internal/logging"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer(instrumentationName)

// Config configures the Qdrant gRPC backend.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// UseTLS enables TLS encryption for the gRPC connection.
	// Default: false (for local development)
	UseTLS bool

	// APIKey is the optional API key for authentication.
	// Leave empty for local development.
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (to handle large batch upserts)
	MaxMessageSize int

	// DialTimeout is the timeout for establishing connection.
	// Default: 5 seconds
	DialTimeout time.Duration

	// RequestTimeout is the default timeout for individual requests.
	// Default: 30 seconds
	RequestTimeout time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           6334,
		UseTLS:         false,
		MaxMessageSize: 50 * 1024 * 1024, // 50MB
		DialTimeout:    5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
}

// Validate validates the backend configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max message size: %d (must be > 0)", c.MaxMessageSize)
	}
	return nil
}

// GRPCBackend implements Backend over Qdrant's official Go client.
type GRPCBackend struct {
	client  *qdrant.Client
	config  *Config
	logger  *logging.Logger
	metrics *Metrics
}

// NewGRPCBackend creates a backend and verifies the connection with a
// health check before returning.
func NewGRPCBackend(config *Config, logger *logging.Logger) (*GRPCBackend, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}

	// For non-TLS connections, explicitly set insecure credentials
	if !config.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	backend := &GRPCBackend{
		client:  client,
		config:  config,
		logger:  logger,
		metrics: NewMetrics(logger.Underlying()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	logger.Info(ctx, "connecting to qdrant",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)

	if err := backend.Health(ctx); err != nil {
		_ = client.Close()
		logger.Error(ctx, "qdrant health check failed",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
			zap.Error(err),
		)
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	logger.Info(ctx, "qdrant connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)

	return backend, nil
}

// startOp opens a span and a request-scoped timeout for one operation.
func (b *GRPCBackend) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, context.CancelFunc, time.Time) {
	ctx, span := tracer.Start(ctx, "Backend."+op)
	span.SetAttributes(attrs...)
	ctx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	return ctx, span, cancel, time.Now()
}

// finishOp classifies the error, records metrics, and closes the span.
func (b *GRPCBackend) finishOp(ctx context.Context, span trace.Span, op string, start time.Time, err error) error {
	b.metrics.RecordOperation(ctx, opLabel(op), time.Since(start), err)
	if err != nil {
		err = classifyError(err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		span.End()
		return fmt.Errorf("%s: %w", opLabel(op), err)
	}
	span.SetStatus(otelcodes.Ok, "success")
	span.End()
	return nil
}

func opLabel(op string) string {
	switch op {
	case "Health":
		return "health"
	case "CollectionExists":
		return "collection_exists"
	case "CreateCollection":
		return "create_collection"
	case "GetCollection":
		return "get_collection"
	case "ListCollections":
		return "list_collections"
	case "Upsert":
		return "upsert"
	case "Search":
		return "search"
	case "Retrieve":
		return "retrieve"
	case "SetPayload":
		return "set_payload"
	case "Delete":
		return "delete"
	default:
		return op
	}
}

// Health performs a health check on the Qdrant connection.
func (b *GRPCBackend) Health(ctx context.Context) error {
	ctx, span, cancel, start := b.startOp(ctx, "Health")
	defer cancel()

	_, err := b.client.HealthCheck(ctx)
	return b.finishOp(ctx, span, "Health", start, err)
}

// CollectionExists reports whether a collection exists.
func (b *GRPCBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, span, cancel, start := b.startOp(ctx, "CollectionExists",
		attribute.String("collection", name))
	defer cancel()

	exists, err := b.client.CollectionExists(ctx, name)
	if err := b.finishOp(ctx, span, "CollectionExists", start, err); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateCollection creates a collection with one named vector slot.
func (b *GRPCBackend) CreateCollection(ctx context.Context, name string, spec CollectionSpec) error {
	ctx, span, cancel, start := b.startOp(ctx, "CreateCollection",
		attribute.String("collection", name),
		attribute.String("vector_name", spec.VectorName),
		attribute.Int64("vector_size", int64(spec.Size)),
		attribute.String("distance", spec.Distance),
		attribute.String("quantization", string(spec.Quantization)),
	)
	defer cancel()

	distance, err := toQdrantDistance(spec.Distance)
	if err != nil {
		return b.finishOp(ctx, span, "CreateCollection", start, err)
	}

	request := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			spec.VectorName: {
				Size:     spec.Size,
				Distance: distance,
			},
		}),
		HnswConfig: &qdrant.HnswConfigDiff{
			M:           qdrant.PtrOf(spec.HNSW.M),
			EfConstruct: qdrant.PtrOf(spec.HNSW.EfConstruct),
		},
		OnDiskPayload: qdrant.PtrOf(spec.OnDiskPayload),
	}
	if spec.IndexingThreshold > 0 {
		request.OptimizersConfig = &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(spec.IndexingThreshold),
		}
	}
	if qc := quantizationConfig(spec.Quantization); qc != nil {
		request.QuantizationConfig = qc
	}

	err = b.client.CreateCollection(ctx, request)
	return b.finishOp(ctx, span, "CreateCollection", start, err)
}

// quantizationConfig builds the wire quantization config for a tier.
// Quantized vectors are kept in RAM; originals stay on disk.
func quantizationConfig(q Quantization) *qdrant.QuantizationConfig {
	switch q {
	case QuantizationBinary:
		return qdrant.NewQuantizationBinary(&qdrant.BinaryQuantization{
			AlwaysRam: qdrant.PtrOf(true),
		})
	case QuantizationScalar:
		return qdrant.NewQuantizationScalar(&qdrant.ScalarQuantization{
			Type:      qdrant.QuantizationType_Int8,
			Quantile:  qdrant.PtrOf(float32(0.99)),
			AlwaysRam: qdrant.PtrOf(true),
		})
	default:
		return nil
	}
}

// fromQdrantQuantization reports the tier a collection was created with.
func fromQdrantQuantization(cfg *qdrant.QuantizationConfig) Quantization {
	switch {
	case cfg == nil:
		return QuantizationNone
	case cfg.GetBinary() != nil:
		return QuantizationBinary
	case cfg.GetScalar() != nil:
		return QuantizationScalar
	default:
		return QuantizationNone
	}
}

// GetCollection returns collection geometry and point count.
func (b *GRPCBackend) GetCollection(ctx context.Context, name string) (*CollectionDetail, error) {
	ctx, span, cancel, start := b.startOp(ctx, "GetCollection",
		attribute.String("collection", name))
	defer cancel()

	info, err := b.client.GetCollectionInfo(ctx, name)
	if err := b.finishOp(ctx, span, "GetCollection", start, err); err != nil {
		return nil, err
	}

	detail := &CollectionDetail{
		Name:          name,
		PointsCount:   info.GetPointsCount(),
		Vectors:       make(map[string]VectorInfo),
		Status:        strings.ToLower(info.GetStatus().String()),
		SegmentsCount: info.GetSegmentsCount(),
		OptimizerOK:   info.GetOptimizerStatus().GetOk(),
		HNSW: HNSWSpec{
			M:           info.GetConfig().GetHnswConfig().GetM(),
			EfConstruct: info.GetConfig().GetHnswConfig().GetEfConstruct(),
		},
		Quantization: fromQdrantQuantization(info.GetConfig().GetQuantizationConfig()),
	}

	vectorsConfig := info.GetConfig().GetParams().GetVectorsConfig()
	if params := vectorsConfig.GetParams(); params != nil {
		// Legacy single unnamed vector
		detail.Vectors[""] = VectorInfo{
			Size:     params.GetSize(),
			Distance: fromQdrantDistance(params.GetDistance()),
		}
	}
	if paramsMap := vectorsConfig.GetParamsMap(); paramsMap != nil {
		for slot, params := range paramsMap.GetMap() {
			detail.Vectors[slot] = VectorInfo{
				Size:     params.GetSize(),
				Distance: fromQdrantDistance(params.GetDistance()),
			}
		}
	}

	return detail, nil
}

// ListCollections returns all collection names.
func (b *GRPCBackend) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span, cancel, start := b.startOp(ctx, "ListCollections")
	defer cancel()

	collections, err := b.client.ListCollections(ctx)
	if err := b.finishOp(ctx, span, "ListCollections", start, err); err != nil {
		return nil, err
	}
	return collections, nil
}

// Upsert inserts or replaces points carrying named vectors.
func (b *GRPCBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, span, cancel, start := b.startOp(ctx, "Upsert",
		attribute.String("collection", collection),
		attribute.Int("points", len(points)),
	)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				p.VectorName: qdrant.NewVector(p.Vector...),
			}),
			Payload: toQdrantPayload(p.Payload),
		}
	}

	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	return b.finishOp(ctx, span, "Upsert", start, err)
}

// Search runs similarity search against one named vector slot.
func (b *GRPCBackend) Search(ctx context.Context, collection string, req SearchRequest) ([]ScoredPoint, error) {
	ctx, span, cancel, start := b.startOp(ctx, "Search",
		attribute.String("collection", collection),
		attribute.String("vector_name", req.VectorName),
		attribute.Int64("limit", int64(req.Limit)),
	)
	defer cancel()

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Using:          qdrant.PtrOf(req.VectorName),
		Limit:          qdrant.PtrOf(req.Limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
	}
	if req.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(req.ScoreThreshold)
	}

	results, err := b.client.Query(ctx, query)
	if err := b.finishOp(ctx, span, "Search", start, err); err != nil {
		return nil, err
	}

	hits := make([]ScoredPoint, len(results))
	for i, r := range results {
		slot, vector := extractNamedVector(r.GetVectors(), req.VectorName)
		hits[i] = ScoredPoint{
			Point: Point{
				ID:         extractPointID(r.GetId()),
				VectorName: slot,
				Vector:     vector,
				Payload:    fromQdrantPayload(r.GetPayload()),
			},
			Score: r.GetScore(),
		}
	}
	return hits, nil
}

// Retrieve fetches points by ID. Missing IDs are absent from the result.
func (b *GRPCBackend) Retrieve(ctx context.Context, collection string, ids []string, withPayload, withVectors bool) ([]Point, error) {
	ctx, span, cancel, start := b.startOp(ctx, "Retrieve",
		attribute.String("collection", collection),
		attribute.Int("ids", len(ids)),
	)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	results, err := b.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(withPayload),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err := b.finishOp(ctx, span, "Retrieve", start, err); err != nil {
		return nil, err
	}

	points := make([]Point, len(results))
	for i, r := range results {
		slot, vector := extractNamedVector(r.GetVectors(), "")
		points[i] = Point{
			ID:         extractPointID(r.GetId()),
			VectorName: slot,
			Vector:     vector,
			Payload:    fromQdrantPayload(r.GetPayload()),
		}
	}
	return points, nil
}

// SetPayload merges payload fields into existing points.
func (b *GRPCBackend) SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any, key *string) error {
	ctx, span, cancel, start := b.startOp(ctx, "SetPayload",
		attribute.String("collection", collection),
		attribute.Int("ids", len(ids)),
	)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := b.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Payload:        toQdrantPayload(payload),
		PointsSelector: qdrant.NewPointsSelector(pointIDs...),
		Key:            key,
		Wait:           qdrant.PtrOf(true),
	})
	return b.finishOp(ctx, span, "SetPayload", start, err)
}

// Delete removes points by ID.
func (b *GRPCBackend) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, span, cancel, start := b.startOp(ctx, "Delete",
		attribute.String("collection", collection),
		attribute.Int("ids", len(ids)),
	)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	return b.finishOp(ctx, span, "Delete", start, err)
}

// Close closes the client connection.
func (b *GRPCBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// toQdrantDistance maps a distance metric name to the wire enum.
func toQdrantDistance(distance string) (qdrant.Distance, error) {
	switch distance {
	case "cosine":
		return qdrant.Distance_Cosine, nil
	case "euclid", "euclidean":
		return qdrant.Distance_Euclid, nil
	case "dot":
		return qdrant.Distance_Dot, nil
	case "manhattan":
		return qdrant.Distance_Manhattan, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unknown distance metric %q", distance)
	}
}

// fromQdrantDistance maps the wire enum back to a metric name.
func fromQdrantDistance(distance qdrant.Distance) string {
	switch distance {
	case qdrant.Distance_Cosine:
		return "cosine"
	case qdrant.Distance_Euclid:
		return "euclidean"
	case qdrant.Distance_Dot:
		return "dot"
	case qdrant.Distance_Manhattan:
		return "manhattan"
	default:
		return "unknown"
	}
}

// Ensure GRPCBackend implements Backend
var _ Backend = (*GRPCBackend)(nil)
