package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on an index after Close.
	ErrClosed = errors.New("vector index is closed")
	// ErrLocked is returned when another process holds the snapshot lock.
	ErrLocked = errors.New("vector index snapshot is locked by another process")
	// errCorruptSnapshot marks a snapshot that exists but cannot be decoded.
	errCorruptSnapshot = errors.New("corrupt snapshot")
)

// InvalidVectorError reports a query or vector that violates the index preconditions:
// wrong dimension, a non-finite component, k < 1, or an id longer than a snapshot can hold.
type InvalidVectorError struct {
	Reason   string
	Expected int
	Got      int
}

func (e *InvalidVectorError) Error() string {
	if e.Expected != 0 || e.Got != 0 {
		return fmt.Sprintf("invalid vector: %s (expected %d, got %d)", e.Reason, e.Expected, e.Got)
	}
	return "invalid vector: " + e.Reason
}

// DuplicateIDError is returned by Add when the id is already indexed.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id: %q already indexed", e.ID)
}

// IndexInitError is returned by Open when the index cannot be brought to the ready state.
type IndexInitError struct {
	Path string
	Err  error
}

func (e *IndexInitError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("init vector index: %v", e.Err)
	}
	return fmt.Sprintf("init vector index %s: %v", e.Path, e.Err)
}

func (e *IndexInitError) Unwrap() error { return e.Err }

// PersistenceError is returned when writing the snapshot fails. Entries added before the
// failure stay in memory and are written by the next successful flush.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist vector index %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DimensionMismatchError is wrapped by IndexInitError when the snapshot on disk was
// written for a different dimension.
type DimensionMismatchError struct {
	Snapshot int
	Expected int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: file has %d, index expects %d", e.Snapshot, e.Expected)
}
