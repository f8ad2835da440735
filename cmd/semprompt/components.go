package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semprompt/internal/config"
	"github.com/hyperjump/semprompt/internal/embedding"
	"github.com/hyperjump/semprompt/internal/generator"
	"github.com/hyperjump/semprompt/internal/prompt"
	"github.com/hyperjump/semprompt/internal/storage"
	"github.com/hyperjump/semprompt/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Store     *storage.SQLiteStorage
	Embedder  embedding.Embedder
	Generator generator.Generator
	Index     *vector.Index
	Service   *prompt.Service
}

// Close closes the index first so pending vectors are flushed before the process exits.
func (c *Components) Close(logger *zap.Logger) {
	if c.Index != nil {
		if err := c.Index.Close(); err != nil {
			logger.Error("vector index close failed", zap.Error(err))
		}
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// newEmbedder picks the embedder for cfg.Embedding.Provider and wraps it in an LRU cache.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Provider {
	case config.ProviderHash:
		inner = embedding.NewHashEmbedder(cfg.Dimensions)
	case config.ProviderONNX:
		onnx, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to load onnx model: %w", err)
		}
		inner = onnx
	default:
		onnx, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, using hash embedder",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err))
			inner = embedding.NewHashEmbedder(cfg.Dimensions)
		} else {
			inner = onnx
		}
	}
	return embedding.NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// checkEmbedderDimensions embeds a fixed probe text once and compares the length of the
// vector the model actually returns with the configured dimension.
func checkEmbedderDimensions(ctx context.Context, emb embedding.Embedder, want int) error {
	vec, err := emb.Embed(ctx, "dimension check")
	if err != nil {
		return fmt.Errorf("embedder %s failed startup probe: %w", emb.ModelName(), err)
	}
	if len(vec) != want {
		return fmt.Errorf("embedder %s produces %d dimensions, config expects %d",
			emb.ModelName(), len(vec), want)
	}
	return nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	emb, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	if err := checkEmbedderDimensions(context.Background(), emb, cfg.Embedding.Dimensions); err != nil {
		_ = emb.Close()
		return nil, err
	}

	codec, err := vector.ParseCompression(cfg.Vector.Compression)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	opts := []vector.Option{vector.WithLogger(logger), vector.WithCompression(codec)}
	if cfg.Vector.StrictLoad {
		opts = append(opts, vector.WithStrictLoad())
	}
	idx, err := vector.Open(cfg.Storage.VectorIndexPath, cfg.Embedding.Dimensions, cfg.Vector.FlushIntervalOrDefault(), opts...)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		_ = idx.Close()
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	gen := generator.NewSimulator()
	svc := prompt.NewService(store, emb, gen, idx,
		prompt.WithLogger(logger),
		prompt.WithLimits(prompt.Limits{
			MaxPromptLength: cfg.API.MaxPromptLength,
			MaxResults:      cfg.API.MaxResults,
		}),
	)

	st := idx.Stats()
	fields := []zap.Field{
		zap.String("path", st.Path),
		zap.Int("entries", st.Count),
		zap.Int("flush_interval", st.FlushInterval),
		zap.String("embedder", emb.ModelName()),
	}
	if st.CorruptBackup != "" {
		fields = append(fields, zap.String("corrupt_backup", st.CorruptBackup))
	}
	logger.Info("vector index initialized", fields...)

	return &Components{
		Store:     store,
		Embedder:  emb,
		Generator: gen,
		Index:     idx,
		Service:   svc,
	}, nil
}
