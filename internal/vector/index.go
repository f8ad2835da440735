package vector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64 // inner product; cosine similarity for unit vectors
}

// Stats is a point-in-time view of the index.
type Stats struct {
	Count         int       `json:"count"`
	Dimension     int       `json:"dimension"`
	Path          string    `json:"path"`
	PendingOps    int       `json:"pending_ops"`
	FlushInterval int       `json:"flush_interval"`
	Flushes       uint64    `json:"flushes"`
	FlushFailures uint64    `json:"flush_failures"`
	LastFlush     time.Time `json:"last_flush,omitempty"`
	Compression   string    `json:"compression"`
	CorruptBackup string    `json:"corrupt_backup,omitempty"`
}

// Option configures an Index at Open.
type Option func(*Index)

// WithCompression selects the codec for snapshot bodies written by this index. Reading
// follows the codec recorded in each snapshot's header.
func WithCompression(c Compression) Option {
	return func(ix *Index) { ix.compression = c }
}

// WithStrictLoad makes Open fail on an unreadable snapshot instead of starting empty.
func WithStrictLoad() Option {
	return func(ix *Index) { ix.strict = true }
}

// WithLogger sets the logger used for load and flush events.
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// Index is an exact inner-product index over fixed-dimension float32 vectors, persisted as a
// single snapshot file. All methods are safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	dimension     int
	path          string
	flushInterval int
	compression   Compression
	strict        bool
	logger        *zap.Logger
	lock          *flock.Flock

	ids     []string
	vectors [][]float32
	byID    map[string]int

	pendingOps    int
	flushes       uint64
	flushFailures uint64
	lastFlush     time.Time
	corruptBackup string
	closed        bool
}

// Open returns an index for dimension-D vectors backed by the snapshot at path. An empty path
// gives a memory-only index. flushInterval is the number of adds between automatic flushes;
// zero disables automatic flushing.
func Open(path string, dimension, flushInterval int, opts ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, &IndexInitError{Path: path, Err: fmt.Errorf("dimension must be positive, got %d", dimension)}
	}
	if flushInterval < 0 {
		return nil, &IndexInitError{Path: path, Err: fmt.Errorf("flush interval must not be negative, got %d", flushInterval)}
	}
	ix := &Index{
		dimension:     dimension,
		path:          path,
		flushInterval: flushInterval,
		compression:   CompressionNone,
		logger:        zap.NewNop(),
		ids:           make([]string, 0),
		vectors:       make([][]float32, 0),
		byID:          make(map[string]int),
	}
	for _, opt := range opts {
		opt(ix)
	}
	codec, err := ParseCompression(string(ix.compression))
	if err != nil {
		return nil, &IndexInitError{Path: path, Err: err}
	}
	ix.compression = codec
	if path == "" {
		return ix, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &IndexInitError{Path: path, Err: fmt.Errorf("create index dir: %w", err)}
	}
	lock := flock.New(path + ".lock")
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, &IndexInitError{Path: path, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	if !acquired {
		return nil, &IndexInitError{Path: path, Err: ErrLocked}
	}
	ix.lock = lock

	if err := ix.load(); err != nil {
		_ = lock.Unlock()
		return nil, &IndexInitError{Path: path, Err: err}
	}
	return ix, nil
}

// load restores the snapshot, if any. Called from Open before the index is shared.
func (ix *Index) load() error {
	f, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	ids, vectors, err := decodeSnapshot(f, ix.dimension)
	f.Close()
	if err == nil {
		for i, id := range ids {
			ix.byID[id] = i
		}
		ix.ids = ids
		ix.vectors = vectors
		ix.logger.Debug("Vector index restored",
			zap.String("path", ix.path),
			zap.Int("count", len(ids)))
		return nil
	}

	var dimErr *DimensionMismatchError
	if errors.As(err, &dimErr) || ix.strict {
		return err
	}
	backup := fmt.Sprintf("%s.corrupt-%d", ix.path, time.Now().UnixNano())
	if rerr := os.Rename(ix.path, backup); rerr != nil {
		return fmt.Errorf("%w (move aside: %v)", err, rerr)
	}
	ix.corruptBackup = backup
	ix.logger.Warn("Unreadable vector snapshot moved aside, starting empty",
		zap.String("path", ix.path),
		zap.String("backup", backup),
		zap.Error(err))
	return nil
}

// Add indexes vector under id. The vector is copied. When the number of adds since the last
// successful flush reaches the flush interval, the snapshot is written before Add returns; if
// that write fails the entry stays indexed and a *PersistenceError is returned.
func (ix *Index) Add(id string, vector []float32) error {
	if len(id) > maxIDLen {
		return &InvalidVectorError{Reason: "id too long", Expected: maxIDLen, Got: len(id)}
	}
	if err := ix.checkVector(vector); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	if _, ok := ix.byID[id]; ok {
		return &DuplicateIDError{ID: id}
	}
	vec := make([]float32, ix.dimension)
	copy(vec, vector)
	ix.byID[id] = len(ix.ids)
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, vec)
	ix.pendingOps++

	if ix.flushInterval > 0 && ix.pendingOps >= ix.flushInterval {
		return ix.flushLocked()
	}
	return nil
}

// Search returns the min(k, Count()) entries with the highest inner product against query,
// best first. Equal scores keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, &InvalidVectorError{Reason: fmt.Sprintf("k must be at least 1, got %d", k)}
	}
	if err := ix.checkVector(query); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, ErrClosed
	}
	if len(ix.ids) == 0 {
		return []Result{}, nil
	}

	top := newTopK(min(k, len(ix.ids)))
	for seq, vec := range ix.vectors {
		top.offer(candidate{seq: seq, score: InnerProduct(query, vec)})
	}
	hits := top.sorted()
	results := make([]Result, len(hits))
	for i, c := range hits {
		results[i] = Result{ID: ix.ids[c.seq], Score: c.score}
	}
	return results, nil
}

// Flush writes the snapshot now.
func (ix *Index) Flush() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	return ix.flushLocked()
}

func (ix *Index) flushLocked() error {
	if ix.path == "" {
		ix.pendingOps = 0
		return nil
	}
	start := time.Now()
	err := writeFileAtomic(ix.path, func(w io.Writer) error {
		return encodeSnapshot(w, ix.dimension, ix.ids, ix.vectors, ix.compression)
	})
	if err != nil {
		ix.flushFailures++
		return &PersistenceError{Path: ix.path, Op: "flush", Err: err}
	}
	ix.pendingOps = 0
	ix.flushes++
	ix.lastFlush = time.Now().UTC()
	ix.logger.Debug("Vector index flushed",
		zap.String("path", ix.path),
		zap.Int("count", len(ix.ids)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Count returns the number of indexed entries.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Dimension returns the vector dimension fixed at Open.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Stats returns a consistent snapshot of the index counters.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Count:         len(ix.ids),
		Dimension:     ix.dimension,
		Path:          ix.path,
		PendingOps:    ix.pendingOps,
		FlushInterval: ix.flushInterval,
		Flushes:       ix.flushes,
		FlushFailures: ix.flushFailures,
		LastFlush:     ix.lastFlush,
		Compression:   string(ix.compression),
		CorruptBackup: ix.corruptBackup,
	}
}

// Close flushes pending adds and releases the snapshot lock. Calling Close again is a no-op.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true

	var flushErr error
	if ix.pendingOps > 0 {
		flushErr = ix.flushLocked()
	}
	if ix.lock != nil {
		if err := ix.lock.Unlock(); err != nil && flushErr == nil {
			return fmt.Errorf("release index lock: %w", err)
		}
	}
	return flushErr
}

func (ix *Index) checkVector(v []float32) error {
	if len(v) != ix.dimension {
		return &InvalidVectorError{Reason: "dimension mismatch", Expected: ix.dimension, Got: len(v)}
	}
	if !allFinite(v) {
		return &InvalidVectorError{Reason: "non-finite component"}
	}
	return nil
}
