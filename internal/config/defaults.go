package config

// DefaultFlushInterval is the number of adds between snapshot writes when not configured.
const DefaultFlushInterval = 10

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 60
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/semprompt/data/db/prompts.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/semprompt/data/indices/vectors.spvx"
	}
	if cfg.Vector.Compression == "" {
		cfg.Vector.Compression = "none"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderAuto
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/semprompt/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.API.MaxPromptLength == 0 {
		cfg.API.MaxPromptLength = 2000
	}
	if cfg.API.MaxResults == 0 {
		cfg.API.MaxResults = 100
	}
	if cfg.API.DefaultK == 0 {
		cfg.API.DefaultK = 3
	}
	if cfg.API.RateLimit.PerMinute == 0 {
		cfg.API.RateLimit.PerMinute = 60
	}
}
