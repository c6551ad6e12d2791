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

	"github.com/fyrsmithlabs/insightd/internal/embeddings"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GATE_CONFIDENCE_THRESHOLD, SLACK_TOKEN, etc.)
//  2. YAML config file (~/.config/insightd/config.yaml)
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, the
// default path is used: ~/.config/insightd/config.yaml.
//
// # Security Considerations
//
// File Permissions: the configuration file must have 0600 or 0400
// permissions; weaker permissions (e.g. 0644 world-readable) are rejected
// because the file may carry API keys.
//
// Path Validation: only configuration files under ~/.config/insightd/ or
// /etc/insightd/ can be loaded. Absolute paths outside these directories
// are rejected to prevent path traversal.
//
// File Size Limit: files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// Environment variables are uppercased with an underscore separating the
// section from the field name:
//
//	GATE_CONFIDENCE_THRESHOLD -> gate.confidence_threshold
//	QDRANT_COLLECTION         -> qdrant.collection
//	SLACK_TOKEN               -> slack.token
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, ".config", "insightd", "config.yaml")
	}

	if err := validateConfigPath(configPath, home); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the file descriptor to avoid
		// a TOCTOU race between stat and read.
		f, err := os.Open(configPath)
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
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables override file values. The transformer splits
	// on the first underscore only, so GATE_CONFIDENCE_THRESHOLD becomes
	// gate.confidence_threshold.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default values.
	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// EnsureDirs creates the config and data directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDirs(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{
		filepath.Join(home, ".config", "insightd"),
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "sessions"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// validateConfigPath checks if path is in an allowed directory. This runs
// even if the file doesn't exist yet.
func validateConfigPath(path, home string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Resolve symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Symlink evaluation fails for paths that don't exist yet;
		// validate the absolute path instead.
		resolvedPath = absPath
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "insightd"),
		"/etc/insightd",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/insightd/ or /etc/insightd/")
}

// validateConfigFileProperties checks file permissions and size. Takes
// FileInfo from an already-opened file descriptor.
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

// applyDefaults fills values that depend on other sections or the
// environment and cannot be expressed in Default().
func applyDefaults(cfg *Config, home string) {
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(home, ".local", "share", "insightd")
	}

	// The sweeper serves the instance tenants unless configured otherwise.
	if len(cfg.Sweeper.Tenants) == 0 {
		cfg.Sweeper.Tenants = cfg.Tenants
	}

	// The vector size follows the configured embedding model.
	if cfg.Qdrant.VectorSize == 0 {
		if dim, ok := embeddings.ModelDimension(cfg.Embeddings.Model); ok {
			cfg.Qdrant.VectorSize = uint64(dim)
		}
	}
	cfg.Qdrant.ApplyDefaults()
}
