// Package config provides configuration loading and structs for the semprompt server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	API       APIConfig       `yaml:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	RequestTimeoutSeconds  int    `yaml:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds paths for the record database and the vector snapshot.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// Embedding providers.
const (
	ProviderAuto = "auto" // ONNX when the model loads, hash otherwise
	ProviderONNX = "onnx"
	ProviderHash = "hash"
)

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// VectorConfig holds vector index settings.
type VectorConfig struct {
	// FlushInterval is the number of adds between snapshot writes; 0 disables automatic
	// flushing. Nil means the default.
	FlushInterval *int `yaml:"flush_interval"`
	// Compression is the snapshot codec: "none", "zstd" or "lz4".
	Compression string `yaml:"compression"`
	StrictLoad  bool   `yaml:"strict_load"`
}

// FlushIntervalOrDefault returns the configured flush interval, or DefaultFlushInterval when unset.
func (v *VectorConfig) FlushIntervalOrDefault() int {
	if v.FlushInterval != nil {
		return *v.FlushInterval
	}
	return DefaultFlushInterval
}

// APIConfig holds request limits.
type APIConfig struct {
	MaxPromptLength int             `yaml:"max_prompt_length"`
	MaxResults      int             `yaml:"max_results"`
	DefaultK        int             `yaml:"default_k"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled   *bool `yaml:"enabled"`
	PerMinute int   `yaml:"per_minute"`
}

// EnabledOrDefault returns whether rate limiting is on; defaults to true when unset.
func (r *RateLimitConfig) EnabledOrDefault() bool {
	if r.Enabled != nil {
		return *r.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	case c.Embedding.Dimensions <= 0:
		return fmt.Errorf("embedding.dimensions must be positive: %d", c.Embedding.Dimensions)
	case c.Vector.FlushIntervalOrDefault() < 0:
		return fmt.Errorf("vector.flush_interval must not be negative: %d", *c.Vector.FlushInterval)
	case c.API.MaxResults < 1:
		return fmt.Errorf("api.max_results must be positive: %d", c.API.MaxResults)
	case c.API.DefaultK < 1 || c.API.DefaultK > c.API.MaxResults:
		return fmt.Errorf("api.default_k must be between 1 and %d: %d", c.API.MaxResults, c.API.DefaultK)
	case c.API.RateLimit.PerMinute < 1:
		return fmt.Errorf("api.rate_limit.per_minute must be positive: %d", c.API.RateLimit.PerMinute)
	}
	switch c.Embedding.Provider {
	case ProviderAuto, ProviderONNX, ProviderHash:
	default:
		return fmt.Errorf("embedding.provider must be one of %q, %q, %q: %q", ProviderAuto, ProviderONNX, ProviderHash, c.Embedding.Provider)
	}
	switch c.Vector.Compression {
	case "", "none", "zstd", "lz4":
	default:
		return fmt.Errorf("vector.compression must be one of \"none\", \"zstd\", \"lz4\": %q", c.Vector.Compression)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
