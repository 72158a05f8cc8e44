// Package maintenance runs the daemon's background work: periodic flushes
// and policy-driven compaction.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/fragmentation"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

type Flusher interface {
	Flush() error
}

type Index interface {
	Flusher
	Compact(ctx context.Context) error
	DocumentCount() (int, error)
	UncompactedDocuments() (count int, tracked bool, err error)
}

// RunFlushLoop flushes every interval until ctx is cancelled, then flushes
// once more. A non-positive interval disables the loop.
func RunFlushLoop(ctx context.Context, index Flusher, interval time.Duration) error {
	logger := slog.Default().With("component", "flush-loop")
	if interval <= 0 {
		logger.Info("periodic flush disabled")
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("flush loop stopping, performing final flush")
			if err := index.Flush(); err != nil && !errors.Is(err, apperrors.ErrClosed) {
				logger.Error("final flush failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := index.Flush(); err != nil {
				logger.Error("periodic flush failed", "error", err)
			}
		}
	}
}

// Compactor serializes compactions: concurrent requests share one run.
type Compactor struct {
	index  Index
	policy fragmentation.Policy
	group  singleflight.Group
	logger *slog.Logger
}

func NewCompactor(index Index, policy fragmentation.Policy) *Compactor {
	return &Compactor{
		index:  index,
		policy: policy,
		logger: slog.Default().With("component", "compactor"),
	}
}

// Compact compacts unconditionally.
func (c *Compactor) Compact(ctx context.Context) error {
	_, err, shared := c.group.Do("compact", func() (any, error) {
		start := time.Now()
		if err := c.index.Compact(ctx); err != nil {
			return nil, err
		}
		c.logger.Info("compaction finished", "duration_ms", time.Since(start).Milliseconds())
		return nil, nil
	})
	if shared {
		c.logger.Debug("compaction request joined a running compaction")
	}
	return err
}

// MaybeCompact compacts when the policy says the index is fragmented
// enough. Without fragmentation tracking it never compacts.
func (c *Compactor) MaybeCompact(ctx context.Context) (bool, error) {
	uncompacted, tracked, err := c.index.UncompactedDocuments()
	if err != nil || !tracked {
		return false, err
	}
	live, err := c.index.DocumentCount()
	if err != nil {
		return false, err
	}
	if !c.policy.ShouldCompact(uncompacted, live) {
		return false, nil
	}
	c.logger.Info("fragmentation threshold reached",
		"uncompacted", uncompacted,
		"live", live,
		"min_uncompacted", c.policy.MinUncompacted,
		"max_ratio", c.policy.MaxRatio,
	)
	if err := c.Compact(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Run checks the policy every interval until ctx is cancelled. A
// non-positive interval disables automatic compaction.
func (c *Compactor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		c.logger.Info("automatic compaction disabled")
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.MaybeCompact(ctx); err != nil {
				c.logger.Error("automatic compaction failed", "error", err)
			}
		}
	}
}
