package models

import "fmt"

const (
	// DefaultK is the number of similar prompts returned when k is not given.
	DefaultK = 3
	// DefaultPageSize is used when page_size is not given.
	DefaultPageSize = 10
	// MaxPageSize caps page_size.
	MaxPageSize = 100
)

// SimilarQuery is a similarity search request.
type SimilarQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate sets the default k and rejects k outside [1, maxK].
func (q *SimilarQuery) Validate(maxK int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K == 0 {
		q.K = DefaultK
	}
	if q.K < 1 || (maxK > 0 && q.K > maxK) {
		return fmt.Errorf("k must be between 1 and %d, got %d", maxK, q.K)
	}
	return nil
}

// PageQuery selects one page of stored prompts. Page is 1-based.
type PageQuery struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Validate fills defaults for unset fields and rejects out-of-range values.
func (q *PageQuery) Validate() error {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", q.Page)
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", MaxPageSize, q.PageSize)
	}
	return nil
}

// Offset returns the number of records before the page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// NewPromptPage builds a page from items and the total record count.
func NewPromptPage(items []*PromptRecord, total int64, q PageQuery) *PromptPage {
	if items == nil {
		items = []*PromptRecord{}
	}
	return &PromptPage{
		Items:    items,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		HasNext:  int64(q.Page*q.PageSize) < total,
		HasPrev:  q.Page > 1,
	}
}
