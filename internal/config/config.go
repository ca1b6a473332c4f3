// Package config provides configuration loading for vectord.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables, with hardcoded defaults filling anything left unset.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/registry"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
)

// Config holds the complete vectord configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     *logging.Config   `koanf:"logging"`
	Telemetry   *telemetry.Config `koanf:"telemetry"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Router      RouterConfig      `koanf:"router"`
	Collections CollectionsConfig `koanf:"collections"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// QdrantConfig holds connection settings for the Qdrant gRPC backend.
type QdrantConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	UseTLS         bool          `koanf:"use_tls"`
	APIKey         Secret        `koanf:"api_key"`
	MaxMessageSize int           `koanf:"max_message_size"`
	DialTimeout    time.Duration `koanf:"dial_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// EmbeddingsConfig holds local embedding runtime settings.
type EmbeddingsConfig struct {
	CacheDir             string `koanf:"cache_dir"`
	MaxLength            int    `koanf:"max_length"`
	GPUEnabled           bool   `koanf:"gpu_enabled"`
	GPULibraryPath       string `koanf:"gpu_library_path"`
	ShowDownloadProgress bool   `koanf:"show_download_progress"`
}

// RouterConfig holds collection-to-model routing rules and custom model
// descriptors. Referenced model IDs are validated when the resolver is built.
type RouterConfig struct {
	DefaultModel string                     `koanf:"default_model"`
	Models       []registry.ModelDescriptor `koanf:"models"`
	Collections  map[string]string          `koanf:"collections"`
	Patterns     []registry.PatternRule     `koanf:"patterns"`
	Aliases      map[string]string          `koanf:"aliases"`
}

// Rules converts the router section into resolver rules. Empty sections
// fall back to the built-in defaults so a bare config file still routes.
func (r RouterConfig) Rules() registry.Rules {
	defaults := registry.DefaultRules()
	rules := registry.Rules{
		DefaultModel: r.DefaultModel,
		Collections:  r.Collections,
		Patterns:     r.Patterns,
		Aliases:      r.Aliases,
	}
	if rules.DefaultModel == "" {
		rules.DefaultModel = defaults.DefaultModel
	}
	if rules.Collections == nil {
		rules.Collections = defaults.Collections
	}
	if rules.Patterns == nil {
		rules.Patterns = defaults.Patterns
	}
	if rules.Aliases == nil {
		rules.Aliases = defaults.Aliases
	}
	return rules
}

// CollectionsConfig holds collection provisioning and search defaults.
type CollectionsConfig struct {
	DefaultCollection  string  `koanf:"default_collection"`
	AutoCreate         bool    `koanf:"auto_create"`
	EnableQuantization bool    `koanf:"enable_quantization"`
	HNSWEfConstruct    int     `koanf:"hnsw_ef_construct"`
	HNSWM              int     `koanf:"hnsw_m"`
	IndexingThreshold  int     `koanf:"indexing_threshold"`
	OnDiskPayload      bool    `koanf:"on_disk_payload"`
	ReadOnly           bool    `koanf:"read_only"`
	SearchLimit        int     `koanf:"search_limit"`
	SearchThreshold    float32 `koanf:"search_threshold"`
}

// NewDefaultConfig returns configuration with production-ready defaults.
// The loader unmarshals file and environment values over these, so bool
// fields that default to true (auto_create, enable_quantization) survive
// being absent from the YAML.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging:   logging.NewDefaultConfig(),
		Telemetry: telemetry.NewDefaultConfig(),
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			UseTLS:         false,
			MaxMessageSize: 50 * 1024 * 1024, // 50MB for large batch upserts
			DialTimeout:    5 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			MaxLength:            512,
			GPUEnabled:           false,
			ShowDownloadProgress: false,
		},
		Router: RouterConfig{},
		Collections: CollectionsConfig{
			DefaultCollection:  "working_solutions",
			AutoCreate:         true,
			EnableQuantization: true,
			HNSWEfConstruct:    128,
			HNSWM:              16,
			IndexingThreshold:  10000,
			OnDiskPayload:      true,
			ReadOnly:           false,
			SearchLimit:        10,
			SearchThreshold:    0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	if c.Qdrant.Host == "" {
		return errors.New("qdrant host is required")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
	}
	if c.Qdrant.MaxMessageSize <= 0 {
		return errors.New("qdrant max_message_size must be positive")
	}
	if c.Qdrant.DialTimeout <= 0 || c.Qdrant.RequestTimeout <= 0 {
		return errors.New("qdrant timeouts must be positive")
	}

	if c.Embeddings.MaxLength <= 0 {
		return errors.New("embeddings max_length must be positive")
	}

	if c.Collections.DefaultCollection == "" {
		return errors.New("collections default_collection is required")
	}
	if c.Collections.HNSWEfConstruct <= 0 {
		return errors.New("collections hnsw_ef_construct must be positive")
	}
	if c.Collections.HNSWM <= 0 {
		return errors.New("collections hnsw_m must be positive")
	}
	if c.Collections.IndexingThreshold < 0 {
		return errors.New("collections indexing_threshold cannot be negative")
	}
	if c.Collections.SearchLimit < 1 || c.Collections.SearchLimit > 1000 {
		return fmt.Errorf("collections search_limit must be 1-1000, got %d", c.Collections.SearchLimit)
	}
	if c.Collections.SearchThreshold < 0 {
		return errors.New("collections search_threshold cannot be negative")
	}

	return nil
}
