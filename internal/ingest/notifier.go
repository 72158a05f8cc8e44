package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

const (
	defaultBufferSize = 10000
	publishTimeout    = 5 * time.Second
)

// Notifier publishes completion events in the background. Track never
// blocks: when the buffer is full, or after Close, the event is dropped,
// counted and logged.
type Notifier struct {
	publisher kafka.Publisher
	eventCh   chan Event
	logger    *slog.Logger
	done      chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewNotifier(publisher kafka.Publisher, bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Notifier{
		publisher: publisher,
		eventCh:   make(chan Event, bufferSize),
		logger:    slog.Default().With("component", "ingest-notifier"),
		done:      make(chan struct{}),
	}
}

// Start runs the publish loop until Close. Cancelling ctx does not stop the
// loop: requests still in flight during shutdown keep tracking events, and
// those are published with a per-event timeout until Close.
func (n *Notifier) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	go func() {
		defer close(n.done)
		for event := range n.eventCh {
			pctx, cancel := context.WithTimeout(base, publishTimeout)
			n.publish(pctx, event)
			cancel()
		}
	}()
	n.logger.Info("ingest notifier started", "buffer_size", cap(n.eventCh))
}

func (n *Notifier) Track(event Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.drop(event, "notifier closed")
		return
	}
	select {
	case n.eventCh <- event:
	default:
		n.drop(event, "buffer full")
	}
}

// Dropped reports how many events were never handed to the publisher.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting events, publishes what is buffered and waits for
// the publish loop to finish. It must be called after Start; later calls
// are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.eventCh)
	n.mu.Unlock()
	<-n.done
	if d := n.dropped.Load(); d > 0 {
		n.logger.Warn("ingest notifier closed with dropped events", "dropped", d)
	}
}

func (n *Notifier) drop(event Event, reason string) {
	n.dropped.Add(1)
	n.logger.Warn("completion event dropped", "reason", reason, "uri", event.URI, "op", event.Op)
}

func (n *Notifier) publish(ctx context.Context, event Event) {
	if err := n.publisher.Publish(ctx, kafka.Event{Key: event.URI, Value: event}); err != nil {
		n.logger.Error("failed to publish completion event", "uri", event.URI, "error", err)
	}
}
