// Package indexer is the public face of the engine. An Indexer composes the
// analyzer, index core, storage backend, fragmentation tracker and search
// cursor behind one goroutine-safe handle keyed by object identifiers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/fragmentation"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

type Indexer struct {
	mu      sync.Mutex
	idx     *index.Index
	memory  *storage.Memory
	tracker *fragmentation.Tracker
	opts    Options
	closed  bool
	epoch   uint64
	logger  *slog.Logger
}

// Stats is a point-in-time summary of an indexer.
type Stats struct {
	Type              index.Type `json:"type"`
	Documents         int        `json:"documents"`
	MaximumDocumentID uint32     `json:"maximum_document_id"`
	Terms             int        `json:"terms"`
	Tombstones        int        `json:"tombstones"`
	Uncompacted       *int       `json:"uncompacted,omitempty"`
	PendingRecords    int        `json:"pending_records"`
	StorageBytes      int64      `json:"storage_bytes"`
	Generation        uint64     `json:"generation"`
	Epoch             uint64     `json:"epoch"`
}

// NewInMemory creates an index with no storage at all. Flush is a no-op and
// everything is lost on Close.
func NewInMemory(ctx context.Context, opts Options) (*Indexer, error) {
	idx, err := index.New(nil, opts.indexOptions())
	if err != nil {
		return nil, apperrors.Wrap("create", apperrors.ErrOpenFailed, "", err)
	}
	return finish(ctx, idx, nil, opts)
}

// NewMemoryBacked creates an index stored in a byte buffer that Export can
// hand out and OpenImage can reopen.
func NewMemoryBacked(ctx context.Context, opts Options) (*Indexer, error) {
	mem, err := storage.NewMemory(opts.Codec)
	if err != nil {
		return nil, apperrors.Wrap("create", apperrors.ErrOpenFailed, "", err)
	}
	idx, err := index.New(mem, opts.indexOptions())
	if err != nil {
		return nil, apperrors.Wrap("create", apperrors.ErrOpenFailed, "", err)
	}
	return finish(ctx, idx, mem, opts)
}

// OpenImage reopens an image produced by Export.
func OpenImage(ctx context.Context, image []byte, opts Options) (*Indexer, error) {
	mem, err := storage.OpenMemory(image)
	if err != nil {
		return nil, apperrors.Wrap("open", apperrors.ErrOpenFailed, "", err)
	}
	idx, err := index.Open(mem)
	if err != nil {
		return nil, apperrors.Wrap("open", apperrors.ErrOpenFailed, "", err)
	}
	return finish(ctx, idx, mem, opts)
}

// Create makes a new file-backed index at path. Unless overwrite is set, a
// path that already holds an index fails with ErrAlreadyExists. A failed
// Create leaves nothing at path.
func Create(ctx context.Context, path string, opts Options, overwrite bool) (*Indexer, error) {
	if err := opts.indexOptions().Analysis.Validate(); err != nil {
		return nil, apperrors.Wrap("create", apperrors.ErrOpenFailed, path, err)
	}
	mode := storage.CreateNew
	if overwrite {
		mode = storage.Overwrite
	}
	fb, err := storage.OpenFile(path, mode, opts.Codec)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.Wrap("create", apperrors.ErrAlreadyExists, path, err)
		}
		return nil, apperrors.Wrap("create", apperrors.ErrOpenFailed, path, err)
	}
	x, err := NewWithBackend(ctx, fb, opts)
	if err != nil {
		if derr := storage.Destroy(path); derr != nil {
			return nil, errors.Join(err, fmt.Errorf("removing partial index: %w", derr))
		}
		return nil, err
	}
	return x, nil
}

// Open reopens the file-backed index at path.
func Open(ctx context.Context, path string, opts Options) (*Indexer, error) {
	fb, err := storage.OpenFile(path, storage.OpenExisting, opts.Codec)
	if err != nil {
		return nil, apperrors.Wrap("open", apperrors.ErrOpenFailed, path, err)
	}
	return OpenBackend(ctx, fb, opts)
}

// NewWithBackend creates an empty index in backend. The backend is closed if
// creation fails.
func NewWithBackend(ctx context.Context, backend storage.Backend, opts Options) (*Indexer, error) {
	idx, err := index.New(backend, opts.indexOptions())
	if err != nil {
		backend.Close()
		return nil, apperrors.Wrap("create", apperrors.ErrOpenFailed, backend.Name(), err)
	}
	return finish(ctx, idx, nil, opts)
}

// OpenBackend loads the index held by backend. The backend is closed if
// loading fails.
func OpenBackend(ctx context.Context, backend storage.Backend, opts Options) (*Indexer, error) {
	idx, err := index.Open(backend)
	if err != nil {
		backend.Close()
		return nil, apperrors.Wrap("open", apperrors.ErrOpenFailed, backend.Name(), err)
	}
	return finish(ctx, idx, nil, opts)
}

// Destroy removes the file-backed index at path.
func Destroy(path string) error {
	if err := storage.Destroy(path); err != nil {
		return apperrors.Wrap("destroy", apperrors.ErrOpenFailed, path, err)
	}
	return nil
}

func finish(ctx context.Context, idx *index.Index, mem *storage.Memory, opts Options) (*Indexer, error) {
	x := &Indexer{
		idx:     idx,
		memory:  mem,
		tracker: fragmentation.NewTracker(opts.Preserver),
		opts:    opts,
		logger:  opts.logger(),
	}
	if err := x.tracker.Restore(ctx, idx.Tombstones()); err != nil {
		idx.Close()
		return nil, apperrors.Wrap("open", apperrors.ErrOpenFailed, "", fmt.Errorf("restoring fragmentation state: %w", err))
	}
	x.updateGauges()
	x.logger.Info("indexer ready",
		"type", idx.Type(),
		"documents", idx.DocumentCount(),
		"autoflush", opts.Autoflush,
		"fragmentation_tracked", x.tracker.Enabled(),
	)
	return x, nil
}

func (x *Indexer) lock() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return apperrors.ErrClosed
	}
	return nil
}

// IndexDocument stores text as the content of id, replacing any previous
// content.
func (x *Indexer) IndexDocument(id docid.ObjectID, text string) (err error) {
	start := time.Now()
	defer func() { x.opts.Metrics.ObserveOp("index", start, err) }()

	url, err := docid.New(id)
	if err != nil {
		return apperrors.Wrap("index", apperrors.ErrIndexingFailed, uri(id), err)
	}
	if err := x.lock(); err != nil {
		return err
	}
	defer x.mu.Unlock()

	undo, err := x.idx.IndexDocument(url, text)
	if err != nil {
		return err
	}
	if err := x.autoflush(undo); err != nil {
		return apperrors.Wrap("index", apperrors.ErrIndexingFailed, url.String(), err)
	}
	x.mutated()
	return nil
}

// RemoveDocument removes id from the index. Removing an unknown document
// succeeds.
func (x *Indexer) RemoveDocument(id docid.ObjectID) (err error) {
	start := time.Now()
	defer func() { x.opts.Metrics.ObserveOp("remove", start, err) }()

	url, err := docid.New(id)
	if err != nil {
		return apperrors.Wrap("remove", apperrors.ErrRemovalFailed, uri(id), err)
	}
	if err := x.lock(); err != nil {
		return err
	}
	defer x.mu.Unlock()

	before := x.idx.Tombstones()
	undo, err := x.idx.RemoveDocument(url)
	if err != nil {
		return err
	}
	if err := x.autoflush(undo); err != nil {
		return apperrors.Wrap("remove", apperrors.ErrRemovalFailed, url.String(), err)
	}
	if removed := x.idx.Tombstones() - before; removed > 0 {
		x.tracker.Removed(removed)
		x.mutated()
	}
	return nil
}

// SetDocumentProperties replaces the property set of an indexed document.
func (x *Indexer) SetDocumentProperties(id docid.ObjectID, props map[string]any) (err error) {
	start := time.Now()
	defer func() { x.opts.Metrics.ObserveOp("properties", start, err) }()

	url, err := docid.New(id)
	if err != nil {
		return apperrors.Wrap("properties", apperrors.ErrIndexingFailed, uri(id), err)
	}
	if err := x.lock(); err != nil {
		return err
	}
	defer x.mu.Unlock()

	undo, err := x.idx.SetProperties(url, props)
	if err != nil {
		return err
	}
	if err := x.autoflush(undo); err != nil {
		return apperrors.Wrap("properties", apperrors.ErrIndexingFailed, url.String(), err)
	}
	x.epoch++
	return nil
}

// DocumentProperties returns a copy of the properties of id. ok is false
// when none are set.
func (x *Indexer) DocumentProperties(id docid.ObjectID) (props index.Properties, ok bool, err error) {
	url, err := docid.New(id)
	if err != nil {
		return nil, false, apperrors.Wrap("properties", apperrors.ErrInvalidDocumentID, uri(id), err)
	}
	if err := x.lock(); err != nil {
		return nil, false, err
	}
	defer x.mu.Unlock()
	props, ok = x.idx.Properties(url)
	return props, ok, nil
}

// Flush writes pending mutations to storage.
func (x *Indexer) Flush() (err error) {
	start := time.Now()
	if err := x.lock(); err != nil {
		return err
	}
	defer x.mu.Unlock()
	if x.idx.Pending() == 0 {
		return nil
	}
	defer func() { x.opts.Metrics.ObserveOp("flush", start, err) }()
	if err := x.idx.Flush(); err != nil {
		x.logger.Error("flush failed", "pending", x.idx.Pending(), "error", err)
		return err
	}
	x.updateGauges()
	return nil
}

func (x *Indexer) DocumentCount() (int, error) {
	if err := x.lock(); err != nil {
		return 0, err
	}
	defer x.mu.Unlock()
	return x.idx.DocumentCount(), nil
}

func (x *Indexer) MaximumDocumentID() (uint32, error) {
	if err := x.lock(); err != nil {
		return 0, err
	}
	defer x.mu.Unlock()
	return x.idx.MaximumDocumentID(), nil
}

// UncompactedDocuments reports the removed documents not yet reclaimed.
// tracked is false when no preserver was configured.
func (x *Indexer) UncompactedDocuments() (count int, tracked bool, err error) {
	if err := x.lock(); err != nil {
		return 0, false, err
	}
	defer x.mu.Unlock()
	count, tracked = x.tracker.Count()
	return count, tracked, nil
}

// Compact reclaims the storage of removed documents. It blocks every other
// operation for its duration.
func (x *Indexer) Compact(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { x.opts.Metrics.ObserveOp("compact", start, err) }()
	if err := x.lock(); err != nil {
		return err
	}
	defer x.mu.Unlock()

	if err := x.idx.Compact(); err != nil {
		x.logger.Error("compaction failed", "error", err)
		return err
	}
	x.tracker.Compacted(ctx)
	x.mutated()
	return nil
}

// Export returns the image of a memory-backed index after flushing it.
func (x *Indexer) Export() ([]byte, error) {
	if err := x.lock(); err != nil {
		return nil, err
	}
	defer x.mu.Unlock()
	if x.memory == nil {
		return nil, apperrors.Wrap("export", apperrors.ErrInvalidInput, "", fmt.Errorf("index is not memory-backed"))
	}
	if err := x.idx.Flush(); err != nil {
		return nil, err
	}
	return x.memory.Bytes(), nil
}

// Epoch increases with every change that can alter search results.
func (x *Indexer) Epoch() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.epoch
}

func (x *Indexer) Stats() (Stats, error) {
	if err := x.lock(); err != nil {
		return Stats{}, err
	}
	defer x.mu.Unlock()
	s := Stats{
		Type:              x.idx.Type(),
		Documents:         x.idx.DocumentCount(),
		MaximumDocumentID: x.idx.MaximumDocumentID(),
		Terms:             x.idx.TermCount(),
		Tombstones:        x.idx.Tombstones(),
		PendingRecords:    x.idx.Pending(),
		StorageBytes:      x.idx.StorageSize(),
		Generation:        x.idx.Generation(),
		Epoch:             x.epoch,
	}
	if n, ok := x.tracker.Count(); ok {
		s.Uncompacted = &n
	}
	return s, nil
}

// Close flushes pending mutations, stores the fragmentation state and
// releases the storage. Every later call fails with ErrClosed. If the final
// flush fails the indexer stays open, with the mutations still pending, so
// Close can be retried.
func (x *Indexer) Close(ctx context.Context) error {
	if err := x.lock(); err != nil {
		return err
	}
	defer x.mu.Unlock()
	start := time.Now()
	err := x.idx.Flush()
	x.opts.Metrics.ObserveOp("flush", start, err)
	if err != nil {
		x.logger.Error("final flush failed, indexer left open", "pending", x.idx.Pending(), "error", err)
		return err
	}
	x.closed = true

	var errs []error
	if err := x.tracker.Persist(ctx); err != nil {
		errs = append(errs, fmt.Errorf("persisting fragmentation state: %w", err))
	}
	if err := x.idx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		x.logger.Error("indexer closed with errors", "error", err)
		return err
	}
	x.logger.Info("indexer closed")
	return nil
}

// autoflush flushes after a mutation when configured to, undoing the
// mutation if the flush fails.
func (x *Indexer) autoflush(undo index.Undo) error {
	if x.opts.Autoflush != AutoflushAfterEachMutation {
		return nil
	}
	start := time.Now()
	err := x.idx.Flush()
	x.opts.Metrics.ObserveOp("flush", start, err)
	if err != nil {
		undo()
		x.logger.Warn("autoflush failed, mutation rolled back", "error", err)
		return err
	}
	return nil
}

func (x *Indexer) mutated() {
	x.epoch++
	x.updateGauges()
}

func (x *Indexer) updateGauges() {
	uncompacted := -1
	if n, ok := x.tracker.Count(); ok {
		uncompacted = n
	}
	x.opts.Metrics.SetIndexState(x.idx.DocumentCount(), uncompacted, x.idx.StorageSize())
}

func uri(id docid.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.URI()
}
