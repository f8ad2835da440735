// Package prompt orchestrates creating, searching and listing prompts.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/semprompt/internal/embedding"
	"github.com/hyperjump/semprompt/internal/generator"
	"github.com/hyperjump/semprompt/internal/models"
	"github.com/hyperjump/semprompt/internal/storage"
	"github.com/hyperjump/semprompt/internal/validation"
	"github.com/hyperjump/semprompt/internal/vector"
)

// VectorIndex is the part of *vector.Index the service uses.
type VectorIndex interface {
	Add(id string, vec []float32) error
	Search(query []float32, k int) ([]vector.Result, error)
}

// Limits bounds request sizes.
type Limits struct {
	MaxPromptLength int
	MaxResults      int
}

// DefaultLimits match the shipped configuration.
var DefaultLimits = Limits{MaxPromptLength: 2000, MaxResults: 100}

// unitTolerance is how far an embedding norm may drift from 1 before it is reported.
const unitTolerance = 1e-3

// Service creates prompts and answers similarity and listing queries.
type Service struct {
	store     storage.Store
	embedder  embedding.Embedder
	generator generator.Generator
	index     VectorIndex
	limits    Limits
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimits overrides DefaultLimits. Zero fields keep their default.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		if l.MaxPromptLength > 0 {
			s.limits.MaxPromptLength = l.MaxPromptLength
		}
		if l.MaxResults > 0 {
			s.limits.MaxResults = l.MaxResults
		}
	}
}

// NewService creates a service over the given collaborators.
func NewService(
	store storage.Store,
	embedder embedding.Embedder,
	gen generator.Generator,
	index VectorIndex,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		embedder:  embedder,
		generator: gen,
		index:     index,
		limits:    DefaultLimits,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the effective request limits.
func (s *Service) Limits() Limits {
	return s.limits
}

// Create validates text, generates a response, embeds the prompt, stores the record and
// indexes its vector, in that order. Nothing is stored when any step before the record save
// fails. If indexing fails after the save, ErrPartialWrite is returned and the record stays
// stored. A snapshot write failure after a successful in-memory add is not an error for the
// caller: the record is returned and the failure is logged.
func (s *Service) Create(ctx context.Context, text string) (*models.PromptRecord, error) {
	clean, err := validation.ValidatePrompt(text, s.limits.MaxPromptLength)
	if err != nil {
		s.logger.Info("Prompt rejected",
			zap.String("event", "validation"),
			zap.String("prompt", validation.SanitizeForLogging(text, validation.DefaultLogLength)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	response, err := s.generator.Generate(ctx, clean)
	if err != nil {
		s.logger.Error("Response generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	vec, err := s.embedder.Embed(ctx, clean)
	if err != nil {
		s.logger.Error("Embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if !vector.IsUnit(vec, unitTolerance) {
		s.logger.Warn("Embedding is not unit-norm, scores will not be cosine similarities",
			zap.String("model", s.embedder.ModelName()),
			zap.Float64("norm", vector.L2Norm(vec)))
	}

	rec := &models.PromptRecord{
		ID:        s.newID(),
		Prompt:    clean,
		Response:  response,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("Saving prompt record failed", zap.String("id", rec.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if err := s.index.Add(rec.ID, vec); err != nil {
		var perr *vector.PersistenceError
		if errors.As(err, &perr) {
			s.logger.Error("Vector snapshot write failed, entry indexed in memory only",
				zap.String("event", "snapshot_lag"),
				zap.String("id", rec.ID),
				zap.Error(err))
			return rec, nil
		}
		s.logger.Error("Record stored but vector not indexed",
			zap.String("event", "store_drift"),
			zap.String("id", rec.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPartialWrite, err)
	}

	s.logger.Debug("Prompt created",
		zap.String("id", rec.ID),
		zap.String("prompt", validation.SanitizeForLogging(clean, validation.DefaultLogLength)))
	return rec, nil
}

// Similar returns up to q.K stored prompts most similar to q.Query, best first. Indexed ids
// with no stored record are skipped.
func (s *Service) Similar(ctx context.Context, q models.SimilarQuery) ([]*models.SimilarResult, error) {
	clean, err := validation.ValidatePrompt(q.Query, s.limits.MaxPromptLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	q.Query = clean
	if err := q.Validate(s.limits.MaxResults); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, &validation.Error{Message: err.Error()})
	}

	vec, err := s.embedder.Embed(ctx, q.Query)
	if err != nil {
		s.logger.Error("Embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	hits, err := s.index.Search(vec, q.K)
	if err != nil {
		s.logger.Error("Vector search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}
	if len(hits) == 0 {
		return []*models.SimilarResult{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Loading similar records failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	results := make([]*models.SimilarResult, 0, len(hits))
	for _, h := range hits {
		rec, ok := records[h.ID]
		if !ok {
			s.logger.Warn("Indexed id has no stored record",
				zap.String("event", "store_drift"),
				zap.String("id", h.ID))
			continue
		}
		results = append(results, &models.SimilarResult{PromptRecord: *rec, Score: h.Score})
	}
	return results, nil
}

// List returns one page of stored prompts, newest first.
func (s *Service) List(ctx context.Context, q models.PageQuery) (*models.PromptPage, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, &validation.Error{Message: err.Error()})
	}
	items, total, err := s.store.FindPage(ctx, q.Offset(), q.PageSize)
	if err != nil {
		s.logger.Error("Listing prompts failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return models.NewPromptPage(items, total, q), nil
}

// Get returns the stored prompt with id.
func (s *Service) Get(ctx context.Context, id string) (*models.PromptRecord, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return rec, nil
}
