// Package fragmentation tracks how many removed documents still occupy index
// storage, persists that count outside the index through a Preserver, and
// decides when a compaction is worth running.
package fragmentation

import (
	"context"
	"sync"
)

// Preserver stores the uncompacted-document count between process runs.
// Retrieve reports ok=false when nothing was stored yet.
type Preserver interface {
	Store(ctx context.Context, count int) error
	Retrieve(ctx context.Context) (count int, ok bool, err error)
}

// Memory keeps the count in process memory.
type Memory struct {
	mu    sync.Mutex
	count int
	set   bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Store(_ context.Context, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count, m.set = count, true
	return nil
}

func (m *Memory) Retrieve(context.Context) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, m.set, nil
}
