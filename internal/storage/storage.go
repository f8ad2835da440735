// Package storage persists prompt records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/semprompt/internal/models"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("prompt record not found")
	// ErrDuplicate is returned by Save when the id is already stored.
	ErrDuplicate = errors.New("prompt record already exists")
)

// Store defines prompt record persistence.
type Store interface {
	Save(ctx context.Context, rec *models.PromptRecord) error
	FindByID(ctx context.Context, id string) (*models.PromptRecord, error)
	// FindByIDs returns the records that exist, keyed by id. Missing ids are absent from the map.
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.PromptRecord, error)
	// FindPage returns records newest first, plus the total record count.
	FindPage(ctx context.Context, offset, limit int) ([]*models.PromptRecord, int64, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
