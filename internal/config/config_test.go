package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./prompts.db"
vector:
  flush_interval: 0
  compression: lz4
api:
  max_prompt_length: 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if got := cfg.Vector.FlushIntervalOrDefault(); got != 0 {
		t.Errorf("explicit flush_interval 0 should be kept, got %d", got)
	}
	if cfg.Vector.Compression != "lz4" {
		t.Errorf("compression = %q, want lz4", cfg.Vector.Compression)
	}
	if cfg.API.MaxPromptLength != 500 {
		t.Errorf("max_prompt_length = %d, want 500", cfg.API.MaxPromptLength)
	}
	if cfg.API.MaxResults != 100 || cfg.API.DefaultK != 3 {
		t.Errorf("unset api limits should get defaults: %+v", cfg.API)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/prompts.db"
  vector_index_path: "./data/indices/vectors.spvx"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "db", "prompts.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "indices", "vectors.spvx"); cfg.Storage.VectorIndexPath != want {
		t.Errorf("VectorIndexPath = %q, want %q", cfg.Storage.VectorIndexPath, want)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 || cfg.Server.Host != "localhost" {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Embedding.Dimensions != 384 || cfg.Embedding.Provider != ProviderAuto {
		t.Errorf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Vector.FlushIntervalOrDefault() != DefaultFlushInterval {
		t.Errorf("flush interval default = %d", cfg.Vector.FlushIntervalOrDefault())
	}
	if !cfg.API.RateLimit.EnabledOrDefault() || cfg.API.RateLimit.PerMinute != 60 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.API.RateLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Server.Port = 9100
	disabled := false
	cfg.API.RateLimit.Enabled = &disabled
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", got.Server.Port)
	}
	if got.API.RateLimit.EnabledOrDefault() {
		t.Error("rate limiting should stay disabled")
	}
}

func TestValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"dimensions", func(c *Config) { c.Embedding.Dimensions = -3 }, "embedding.dimensions"},
		{"flush interval", func(c *Config) { c.Vector.FlushInterval = &negative }, "flush_interval"},
		{"default k", func(c *Config) { c.API.DefaultK = 500 }, "default_k"},
		{"provider", func(c *Config) { c.Embedding.Provider = "gpu" }, "embedding.provider"},
		{"compression", func(c *Config) { c.Vector.Compression = "gzip" }, "vector.compression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnvFrom(t *testing.T) {
	env := map[string]string{
		"SEMPROMPT_PORT":               "9999",
		"SEMPROMPT_DEBUG":              "true",
		"SEMPROMPT_FLUSH_INTERVAL":     "0",
		"SEMPROMPT_RATE_LIMIT_ENABLED": "false",
		"SEMPROMPT_EMBEDDING_PROVIDER": "hash",
		"SEMPROMPT_DATABASE_PATH":      "/tmp/x.db",
		"SEMPROMPT_VECTOR_COMPRESSION": "zstd",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := ApplyEnvFrom(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9999 || !cfg.Debug {
		t.Errorf("port/debug not applied: %+v debug=%v", cfg.Server, cfg.Debug)
	}
	if cfg.Vector.FlushIntervalOrDefault() != 0 {
		t.Error("flush interval override not applied")
	}
	if cfg.API.RateLimit.EnabledOrDefault() {
		t.Error("rate limit override not applied")
	}
	if cfg.Embedding.Provider != ProviderHash {
		t.Errorf("provider = %q", cfg.Embedding.Provider)
	}
	if cfg.Storage.DatabasePath != "/tmp/x.db" {
		t.Errorf("database path = %q", cfg.Storage.DatabasePath)
	}
	if cfg.Vector.Compression != "zstd" {
		t.Errorf("compression = %q", cfg.Vector.Compression)
	}
}

func TestApplyEnvFrom_invalid(t *testing.T) {
	for key, val := range map[string]string{
		"SEMPROMPT_PORT":           "eighty",
		"SEMPROMPT_DEBUG":          "maybe",
		"SEMPROMPT_FLUSH_INTERVAL": "x",
	} {
		lookup := func(k string) (string, bool) {
			if k == key {
				return val, true
			}
			return "", false
		}
		if err := ApplyEnvFrom(Default(), lookup); err == nil {
			t.Errorf("%s=%q: expected error", key, val)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("SEMPROMPT_MAX_RESULTS=42\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEMPROMPT_MAX_RESULTS", "")
	os.Unsetenv("SEMPROMPT_MAX_RESULTS")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.API.MaxResults != 42 {
		t.Errorf("MaxResults = %d, want 42", cfg.API.MaxResults)
	}
}
