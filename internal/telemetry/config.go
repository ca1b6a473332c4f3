package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	Protocol       string         `koanf:"protocol"` // "grpc" (default) or "http/protobuf"
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Insecure       bool           `koanf:"insecure"`        // plaintext OTLP, loopback only
	TLSSkipVerify  bool           `koanf:"tls_skip_verify"` // for internal CAs
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Shutdown       ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls trace sampling.
type SamplingConfig struct {
	Rate           float64 `koanf:"rate"` // 0.0 to 1.0
	AlwaysOnErrors bool    `koanf:"always_on_errors"`
}

// MetricsConfig controls metric export cadence.
type MetricsConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// ShutdownConfig bounds provider shutdown.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns defaults aimed at local development: telemetry
// off until a collector exists, full sampling, plaintext to localhost.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "vectord",
		ServiceVersion: "0.1.0",
		Insecure:       true,
		Sampling: SamplingConfig{
			Rate:           1.0,
			AlwaysOnErrors: true,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 15 * time.Second,
		},
		Shutdown: ShutdownConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Validate reports the first problem found. Disabled configs always pass.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch {
	case c.Endpoint == "":
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	case c.Protocol != "" && c.Protocol != "grpc" && c.Protocol != "http/protobuf":
		return fmt.Errorf("protocol must be 'grpc' or 'http/protobuf', got %q", c.Protocol)
	case c.ServiceName == "":
		return fmt.Errorf("service_name is required when telemetry is enabled")
	case c.ServiceVersion == "":
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}

	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	return nil
}

// isLocalEndpoint reports whether the endpoint is a loopback address, the
// only case where plaintext OTLP is tolerated.
func (c *Config) isLocalEndpoint() bool {
	host := c.Endpoint

	switch {
	case strings.HasPrefix(host, "["):
		// Bracketed IPv6, with or without port: [::1]:4317 or [::1].
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else if strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	case strings.Count(host, ":") == 1:
		// Hostname or IPv4 with port.
		host = host[:strings.LastIndex(host, ":")]
	}
	// Bare IPv6 like ::1 or ::1:4317 falls through and is matched by
	// the prefix check on the full endpoint.

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(c.Endpoint, "::1")
}
