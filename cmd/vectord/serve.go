package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/collections"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/engine"
	httpserver "github.com/fyrsmithlabs/vectord/internal/http"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	mcpserver "github.com/fyrsmithlabs/vectord/internal/mcp"
	"github.com/fyrsmithlabs/vectord/internal/qdrant"
	"github.com/fyrsmithlabs/vectord/internal/registry"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
)

var (
	transport  string
	configPath string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio or http")
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/vectord/config.yaml)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vectord server",
	Long: `Start the vectord server.

With --transport stdio (the default) the MCP server speaks the protocol over
stdin/stdout for editor integration; logs go to stderr.

With --transport http the daemon serves the streamable MCP endpoint at /mcp
alongside health probes, Prometheus metrics, and the read-only collection
API under /api/v1.

Examples:
  # stdio mode for an MCP client
  vectord serve

  # HTTP daemon on the configured port
  vectord serve --transport http

  # explicit config file
  vectord serve --config /etc/vectord/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if transport != "stdio" && transport != "http" {
		return fmt.Errorf("unknown transport %q (want stdio or http)", transport)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, transport, configPath)
}

// run wires the full daemon and blocks until the context is cancelled.
func run(ctx context.Context, transport, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// stdio mode owns stdout for the protocol, so logs must go to stderr.
	if transport == "stdio" {
		cfg.Logging.Output.Stdout = false
		cfg.Logging.Output.Stderr = true
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	logger, err := logging.NewLogger(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting vectord",
		zap.String("version", version),
		zap.String("transport", transport),
		zap.String("default_collection", cfg.Collections.DefaultCollection))

	backend, err := qdrant.NewGRPCBackend(&qdrant.Config{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		UseTLS:         cfg.Qdrant.UseTLS,
		APIKey:         cfg.Qdrant.APIKey.Value(),
		MaxMessageSize: cfg.Qdrant.MaxMessageSize,
		DialTimeout:    cfg.Qdrant.DialTimeout,
		RequestTimeout: cfg.Qdrant.RequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer backend.Close()

	reg, err := registry.New(cfg.Router.Models...)
	if err != nil {
		return fmt.Errorf("building model registry: %w", err)
	}

	resolver, err := registry.NewResolver(reg, cfg.Router.Rules())
	if err != nil {
		return fmt.Errorf("building model resolver: %w", err)
	}

	pool := embeddings.NewPool(reg, embeddings.FastEmbedConfig{
		CacheDir:             cfg.Embeddings.CacheDir,
		MaxLength:            cfg.Embeddings.MaxLength,
		GPUEnabled:           cfg.Embeddings.GPUEnabled,
		GPULibraryPath:       cfg.Embeddings.GPULibraryPath,
		ShowDownloadProgress: cfg.Embeddings.ShowDownloadProgress,
	}, logger.Underlying())
	defer pool.Close()

	manager, err := collections.NewManager(backend, resolver, collections.Config{
		AutoCreate:         cfg.Collections.AutoCreate,
		EnableQuantization: cfg.Collections.EnableQuantization,
		HNSWEfConstruct:    uint64(cfg.Collections.HNSWEfConstruct),
		HNSWM:              uint64(cfg.Collections.HNSWM),
		IndexingThreshold:  uint64(cfg.Collections.IndexingThreshold),
		OnDiskPayload:      cfg.Collections.OnDiskPayload,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating collection manager: %w", err)
	}

	eng, err := engine.New(backend, pool, manager, resolver, engine.Config{
		DefaultCollection: cfg.Collections.DefaultCollection,
		DefaultLimit:      cfg.Collections.SearchLimit,
		DefaultThreshold:  float64(cfg.Collections.SearchThreshold),
		ReadOnly:          cfg.Collections.ReadOnly,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	mcpSrv, err := mcpserver.NewServer(&mcpserver.Config{
		Name:    "vectord",
		Version: version,
		Logger:  logger.Underlying(),
	}, eng)
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	if transport == "stdio" {
		fmt.Fprintln(os.Stderr, "vectord stdio mode started")
		return mcpSrv.Run(ctx)
	}

	return runHTTP(ctx, cfg, logger, eng, backend, mcpSrv)
}

// runHTTP starts the echo daemon and blocks until shutdown completes.
func runHTTP(ctx context.Context, cfg *config.Config, logger *logging.Logger, eng *engine.Engine, backend *qdrant.GRPCBackend, mcpSrv *mcpserver.Server) error {
	srv, err := httpserver.NewServer(eng, backend, mcpSrv.HTTPHandler(), logger.Underlying(), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info(ctx, "vectord ready",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("mcp_endpoint", "/mcp"),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
