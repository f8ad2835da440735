// Package models defines the records and request/response shapes shared across packages.
package models

import "time"

// PromptRecord is a stored prompt with its generated response.
type PromptRecord struct {
	ID        string    `json:"id" db:"id"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Response  string    `json:"response" db:"response"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PromptInput is the body of a create request.
type PromptInput struct {
	Prompt string `json:"prompt"`
}

// SimilarResult is a stored prompt returned by a similarity search.
type SimilarResult struct {
	PromptRecord
	Score float64 `json:"score"`
}

// PromptPage is one page of stored prompts, newest first.
type PromptPage struct {
	Items    []*PromptRecord `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasNext  bool            `json:"has_next"`
	HasPrev  bool            `json:"has_prev"`
}
