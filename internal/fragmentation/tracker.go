package fragmentation

import (
	"context"
	"log/slog"
)

// Tracker counts documents removed since the last compaction. Without a
// preserver it tracks nothing and Count reports ok=false.
type Tracker struct {
	preserver Preserver
	count     int
	logger    *slog.Logger
}

func NewTracker(p Preserver) *Tracker {
	return &Tracker{
		preserver: p,
		logger:    slog.Default().With("component", "fragmentation"),
	}
}

func (t *Tracker) Enabled() bool { return t.preserver != nil }

func (t *Tracker) Count() (int, bool) {
	if t.preserver == nil {
		return 0, false
	}
	return t.count, true
}

// Restore loads the preserved count. The index core's tombstone count is
// authoritative: a preserved value that disagrees with it is replaced.
func (t *Tracker) Restore(ctx context.Context, coreCount int) error {
	if t.preserver == nil {
		return nil
	}
	stored, ok, err := t.preserver.Retrieve(ctx)
	if err != nil {
		return err
	}
	t.count = coreCount
	if ok && stored == coreCount {
		return nil
	}
	if ok {
		t.logger.Warn("preserved fragmentation state disagrees with index",
			"preserved", stored,
			"index", coreCount,
		)
	}
	return t.preserver.Store(ctx, coreCount)
}

// Removed records n more tombstoned documents.
func (t *Tracker) Removed(n int) {
	if t.preserver != nil {
		t.count += n
	}
}

// Persist stores the current count.
func (t *Tracker) Persist(ctx context.Context) error {
	if t.preserver == nil {
		return nil
	}
	return t.preserver.Store(ctx, t.count)
}

// Compacted resets the count after a successful compaction. A failure to
// store the reset is logged and otherwise ignored.
func (t *Tracker) Compacted(ctx context.Context) {
	if t.preserver == nil {
		return
	}
	t.count = 0
	if err := t.preserver.Store(ctx, 0); err != nil {
		t.logger.Error("failed to store fragmentation state after compaction", "error", err)
	}
}
