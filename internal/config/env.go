package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEMPROMPT_"

// LoadDotEnv loads variables from the given .env files (".env" when none given) into the
// process environment without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from SEMPROMPT_* variables in the process environment.
func ApplyEnv(cfg *Config) error {
	return ApplyEnvFrom(cfg, os.LookupEnv)
}

// ApplyEnvFrom overrides cfg from SEMPROMPT_* variables returned by lookup. Relative paths
// are made absolute against the working directory.
func ApplyEnvFrom(cfg *Config, lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"HOST":               &cfg.Server.Host,
		"DATABASE_PATH":      &cfg.Storage.DatabasePath,
		"VECTOR_INDEX_PATH":  &cfg.Storage.VectorIndexPath,
		"EMBEDDING_PROVIDER": &cfg.Embedding.Provider,
		"MODEL_PATH":         &cfg.Embedding.ModelPath,
		"VECTOR_COMPRESSION": &cfg.Vector.Compression,
	}
	for name, dst := range strVars {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	for _, p := range []*string{&cfg.Storage.DatabasePath, &cfg.Storage.VectorIndexPath, &cfg.Embedding.ModelPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			if abs, err := filepath.Abs(*p); err == nil {
				*p = abs
			}
		}
	}

	intVars := map[string]*int{
		"PORT":                  &cfg.Server.Port,
		"EMBEDDING_DIMENSIONS":  &cfg.Embedding.Dimensions,
		"CACHE_SIZE":            &cfg.Embedding.CacheSize,
		"MAX_PROMPT_LENGTH":     &cfg.API.MaxPromptLength,
		"MAX_RESULTS":           &cfg.API.MaxResults,
		"DEFAULT_K":             &cfg.API.DefaultK,
		"RATE_LIMIT_PER_MINUTE": &cfg.API.RateLimit.PerMinute,
	}
	for name, dst := range intVars {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = n
	}
	if v, ok := lookup(EnvPrefix + "FLUSH_INTERVAL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sFLUSH_INTERVAL=%q: %w", EnvPrefix, v, err)
		}
		cfg.Vector.FlushInterval = &n
	}

	boolVars := map[string]func(bool){
		"DEBUG":              func(b bool) { cfg.Debug = b },
		"VECTOR_STRICT_LOAD": func(b bool) { cfg.Vector.StrictLoad = b },
		"RATE_LIMIT_ENABLED": func(b bool) { cfg.API.RateLimit.Enabled = &b },
	}
	for name, set := range boolVars {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		set(b)
	}
	return nil
}
