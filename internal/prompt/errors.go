package prompt

import "errors"

// Errors returned by Service. Each wraps the underlying cause, so errors.Is and errors.As
// reach both the kind and the cause.
var (
	ErrValidation = errors.New("validation failed")
	ErrGeneration = errors.New("response generation failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrRepository = errors.New("record store failed")
	ErrIndex      = errors.New("vector index failed")
	// ErrPartialWrite means the record was stored but its vector was not indexed.
	ErrPartialWrite = errors.New("record stored but not indexed")
)
