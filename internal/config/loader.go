package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxConfigFileSize caps config reads at 1MB.
const maxConfigFileSize = 1024 * 1024

// LoadWithFile builds the daemon configuration. Precedence, highest first:
// environment variables, the YAML file, then NewDefaultConfig.
//
// An empty configPath means ~/.config/vectord/config.yaml. The file is
// optional, but when present it must live under ~/.config/vectord/ or
// /etc/vectord/, be owner-readable only (0600 or 0400), and stay under 1MB.
//
// Environment keys map to config paths by splitting on the first
// underscore: SERVER_PORT becomes server.port, QDRANT_API_KEY becomes
// qdrant.api_key.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "vectord", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envToConfigKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over prefilled defaults so fields absent from both file and
	// environment keep them. This is what lets default-true booleans
	// (auto_create, enable_quantization) work without pointer fields.
	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envToConfigKey lowercases an environment variable name and splits it on
// the first underscore into section and field: COLLECTIONS_SEARCH_LIMIT
// maps to collections.search_limit.
func envToConfigKey(s string) string {
	lower := strings.ToLower(s)
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}

// readConfigFile opens the file once and checks permissions and size
// through the open descriptor, so the checked file is the file read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// EnsureConfigDir creates ~/.config/vectord with owner-only permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "vectord")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath restricts config files to the user and system config
// directories. Runs before the file is known to exist.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot point outside the allowed
	// directories. A failure here usually means the file does not exist
	// yet; validate the literal path in that case.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, dir := range []string{filepath.Join(home, ".config", "vectord"), "/etc/vectord"} {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/vectord/ or /etc/vectord/")
}

// validateConfigFileProperties rejects world-readable or oversized files.
// Permission bits are not checked on Windows.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
