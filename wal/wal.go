// Package wal implements a durable, append-only write-ahead log: an
// ordered sequence of opaque byte-payload entries identified by a
// monotonically increasing LSN, together with a commit/recovery
// protocol for the uncommitted tail left behind by a crash.
//
// A WAL is the pairing of a log file (an opaque concatenation of entry
// payloads) and an index file (a header plus a dense array of byte
// offsets mapping LSN to position in the log file). See index.go for the
// index file's on-disk layout.
package wal

import (
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anikak11/durawal/randfile"
)

const defaultIndexSuffix = ".lix"

// Options configures Create, Open, and OpenOrCreate.
type Options struct {
	// Path is the log file's path. Required.
	Path string
	// IndexPath overrides the index file's path. Defaults to Path+".lix".
	IndexPath string
	// Writable opens the WAL for writing as well as reading. Ignored by
	// Create, which is always writable.
	Writable bool
	// Logger receives one line per create/open/recover/truncate decision.
	// Defaults to a no-op logger.
	Logger *zap.Logger
	// CacheSize, if > 0, enables a bounded read-through cache (in bytes
	// of cached payload) of recently read entries. 0 disables it.
	CacheSize int64
}

func (o Options) indexPath() string {
	if o.IndexPath != "" {
		return o.IndexPath
	}
	return o.Path + defaultIndexSuffix
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// Metrics are read-only counters of the WAL's own operations, not of
// anything about the payloads themselves.
type Metrics struct {
	WriteCount    int64
	ReadCount     int64
	CommitCount   int64
	TruncateCount int64
	BytesWritten  int64
}

// WAL composes one random-access log file and one index file.
type WAL struct {
	mu  sync.Mutex
	log randfile.File
	idx *Index

	logger *zap.Logger
	cache  *entryCache

	closed  bool
	metrics Metrics
}

// Create creates a new log file and index file and returns a WAL opened
// over them. It fails if either file already exists.
func Create(opts Options) (*WAL, error) {
	if opts.Path == "" {
		return nil, assertf("Path is required")
	}
	logf, err := randfile.Create(opts.Path)
	if err != nil {
		return nil, err
	}
	idx, err := CreateIndex(opts.indexPath(), 0, 0)
	if err != nil {
		logf.Close()
		return nil, err
	}
	cache, err := newEntryCache(opts.CacheSize)
	if err != nil {
		logf.Close()
		idx.Close()
		return nil, err
	}
	w := &WAL{log: logf, idx: idx, logger: opts.logger(), cache: cache}
	w.logger.Info("created", zap.String("path", opts.Path), zap.String("index", opts.indexPath()))
	return w, nil
}

// Open opens an existing log file and index file. It fails with
// ErrNotFound if either file is absent.
func Open(opts Options) (*WAL, error) {
	if opts.Path == "" {
		return nil, assertf("Path is required")
	}
	logf, err := randfile.Open(opts.Path, opts.Writable)
	if err != nil {
		return nil, err
	}
	idx, err := OpenIndex(opts.indexPath(), opts.Writable)
	if err != nil {
		logf.Close()
		return nil, err
	}
	cache, err := newEntryCache(opts.CacheSize)
	if err != nil {
		logf.Close()
		idx.Close()
		return nil, err
	}
	w := &WAL{log: logf, idx: idx, logger: opts.logger(), cache: cache}
	w.logger.Info("opened",
		zap.String("path", opts.Path),
		zap.String("index", opts.indexPath()),
		zap.Int32("next", idx.Head()),
		zap.Int32("commit", idx.CommitHead()),
	)
	return w, nil
}

// OpenOrCreate opens the WAL at Path, falling back to Create if it does
// not yet exist and Writable is true.
func OpenOrCreate(opts Options) (*WAL, error) {
	w, err := Open(opts)
	if err == nil {
		return w, nil
	}
	if !isNotFound(err) || !opts.Writable {
		return nil, err
	}
	return Create(opts)
}

func isNotFound(err error) bool {
	return errors.Is(err, randfile.ErrNotFound)
}

// Name returns the log file's path.
func (w *WAL) Name() string {
	return w.log.Name()
}

// Index exposes the underlying index, for callers that need direct
// access to offset/length bookkeeping.
func (w *WAL) Index() *Index {
	return w.idx
}

// Writable reports whether the WAL was opened for writing.
func (w *WAL) Writable() bool {
	return w.log.Writable()
}

// Size returns the log file's current size in bytes.
func (w *WAL) Size() (int64, error) {
	return w.log.Size()
}

// Next returns the LSN the next Write call will assign.
func (w *WAL) Next() int32 {
	return w.idx.Head()
}

// CommitHead returns the last committed LSN, or -1 if none.
func (w *WAL) CommitHead() int32 {
	return w.idx.CommitHead()
}

// Metrics returns a snapshot of this WAL's own operation counters.
func (w *WAL) Metrics() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// Write appends payload to the log and returns the LSN it was assigned.
// payload must be non-empty.
func (w *WAL) Write(payload []byte) (int32, error) {
	if len(payload) == 0 {
		return 0, assertf("payload must be a non-empty byte buffer")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}

	head := w.idx.Head()
	startOffset, err := w.idx.Offset(head)
	if err != nil {
		return 0, err
	}
	if err := w.log.WriteAt(startOffset, payload); err != nil {
		return 0, err
	}
	endOffset := startOffset + int64(len(payload))
	lsn, err := w.idx.Increment(endOffset)
	if err != nil {
		return 0, err
	}
	w.cache.set(lsn, payload)
	w.metrics.WriteCount++
	w.metrics.BytesWritten += int64(len(payload))
	return lsn, nil
}

// Read returns the exact payload written at lsn.
func (w *WAL) Read(lsn int32) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	return w.readLocked(lsn)
}

func (w *WAL) readLocked(lsn int32) ([]byte, error) {
	if payload, ok := w.cache.get(lsn); ok {
		w.metrics.ReadCount++
		return payload, nil
	}
	rec, err := w.idx.Get(lsn)
	if err != nil {
		return nil, err
	}
	payload, err := w.log.ReadAt(rec.Offset, int(rec.Length))
	if err != nil {
		return nil, err
	}
	w.cache.set(lsn, payload)
	w.metrics.ReadCount++
	return payload, nil
}

// ReadRange returns a lazy cursor over count entries starting at first.
// If count is nil, it defaults to every entry from first to the current
// write head.
func (w *WAL) ReadRange(first int32, count *int32) (*RangeCursor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	n := w.idx.Head() - first
	if count != nil {
		n = *count
	}
	records, err := w.idx.GetRange(first, n)
	if err != nil {
		return nil, err
	}
	return newRangeCursor(w.log, records, first), nil
}

// Commit records lsn as committed. See Index.Commit for the exact
// idempotency and ordering rules.
func (w *WAL) Commit(lsn int32) (int32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	l, err := w.idx.Commit(lsn)
	if err != nil {
		return 0, err
	}
	w.metrics.CommitCount++
	return l, nil
}

// IsCommitted reports whether lsn is strictly before the commit head
// (see Index.IsCommitted for the preserved off-by-one semantics).
func (w *WAL) IsCommitted(lsn int32) bool {
	return w.idx.IsCommitted(lsn)
}

// IsCommittedOrEarlier reports whether lsn is at or before the commit
// head.
func (w *WAL) IsCommittedOrEarlier(lsn int32) bool {
	return w.idx.IsCommittedOrEarlier(lsn)
}

// Truncate discards every LSN at or after fromLsn and returns the log
// file's new size.
func (w *WAL) Truncate(fromLsn int32) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	if err := w.truncateLocked(fromLsn); err != nil {
		return 0, err
	}
	size, err := w.log.Size()
	if err != nil {
		return 0, err
	}
	w.logger.Info("truncated", zap.String("path", w.log.Name()), zap.Int32("fromLSN", fromLsn), zap.Int64("size", size))
	return size, nil
}

// Sync flushes and fsyncs both the log and index files.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.log.Sync(); err != nil {
		return err
	}
	return w.idx.Sync()
}

// Close closes both the log and index files. Closing twice is a no-op.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var g errgroup.Group
	g.Go(w.log.Close)
	g.Go(w.idx.Close)
	w.cache.close()
	return g.Wait()
}
