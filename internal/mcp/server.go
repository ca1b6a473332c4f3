package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/engine"
)

// Service is the engine surface the MCP tools adapt. *engine.Engine
// satisfies this.
type Service interface {
	Store(ctx context.Context, collection, information string, metadata map[string]any) (*engine.StoreResult, error)
	BulkStore(ctx context.Context, collection string, documents []string, metadataList []map[string]any, batchSize int) (*engine.BulkResult, error)
	Find(ctx context.Context, collection, query string, limit int, scoreThreshold float64) (*engine.FindResult, error)
	GetPoint(ctx context.Context, collection, pointID string, withVector bool) (*engine.PointResult, error)
	UpdatePayload(ctx context.Context, collection string, pointIDs []string, payload map[string]any, key string) (*engine.UpdateResult, error)
	DeletePoints(ctx context.Context, collection string, pointIDs []string) (*engine.DeleteResult, error)
	ListCollections(ctx context.Context) ([]engine.CollectionSummary, error)
	CollectionInfo(ctx context.Context, collection string) (*engine.CollectionDetail, error)
	ModelMappings(ctx context.Context) engine.MappingsReport
	DefaultCollection() string
}

// Server adapts the engine to the MCP protocol.
type Server struct {
	mcp     *mcp.Server
	service Service
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "vectord")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "vectord",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server wrapping the given engine service.
func NewServer(cfg *Config, service Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Name == "" {
		cfg.Name = "vectord"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if service == nil {
		return nil, fmt.Errorf("engine service is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		service: service,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP over the stdio transport until the context ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// HTTPHandler returns a streamable MCP handler for mounting into an HTTP
// server.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}
